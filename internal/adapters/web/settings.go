package web

import (
	"net/http"

	"invoicing-backend/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.svc.GetOrganization(r.Context(), orgCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, org)
}

type settingsDTO struct {
	Name                 string          `json:"name" validate:"required"`
	InvoicePrefix        string          `json:"invoice_prefix" validate:"required"`
	StampEnabled         bool            `json:"stamp_enabled"`
	StampAmount          decimal.Decimal `json:"stamp_amount"`
	WithholdingRate      decimal.Decimal `json:"withholding_rate"`
	WithholdingThreshold decimal.Decimal `json:"withholding_threshold"`
	MaxDiscountPercent   decimal.Decimal `json:"max_discount_percent"`
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var dto settingsDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	org, err := h.svc.UpdateSettings(r.Context(), orgCode(r), core.OrgSettingsInput{
		Name:                 dto.Name,
		InvoicePrefix:        dto.InvoicePrefix,
		StampEnabled:         dto.StampEnabled,
		StampAmount:          dto.StampAmount,
		WithholdingRate:      dto.WithholdingRate,
		WithholdingThreshold: dto.WithholdingThreshold,
		MaxDiscountPercent:   dto.MaxDiscountPercent,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, org)
}

func (h *Handler) listCustomTaxes(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.svc.ListCustomTaxes(r.Context(), orgCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, taxes)
}

type customTaxDTO struct {
	Name        string          `json:"name" validate:"required"`
	ValueType   string          `json:"value_type" validate:"required,oneof=fixed percentage"`
	Value       decimal.Decimal `json:"value"`
	Application string          `json:"application_type" validate:"required,oneof=add deduct"`
	Order       string          `json:"application_order" validate:"required,oneof=before_stamp after_stamp"`
	Position    int             `json:"position"`
}

func (h *Handler) addCustomTax(w http.ResponseWriter, r *http.Request) {
	var dto customTaxDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	err := h.svc.AddCustomTax(r.Context(), orgCode(r), core.CustomTaxInput{
		Name:        dto.Name,
		ValueType:   core.TaxValueType(dto.ValueType),
		Value:       dto.Value,
		Application: core.TaxApplication(dto.Application),
		Order:       core.TaxOrder(dto.Order),
		Position:    dto.Position,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removeCustomTax(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.svc.RemoveCustomTax(r.Context(), orgCode(r), name); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
