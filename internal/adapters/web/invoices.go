package web

import (
	"net/http"
	"strconv"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

// invoiceLineDTO mirrors core.InvoiceLineRequest for JSON binding.
type invoiceLineDTO struct {
	ProductID       *int64          `json:"product_id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPriceHT     decimal.Decimal `json:"unit_price_ht"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ReservationID   *int64          `json:"reservation_id"`
}

type createInvoiceDTO struct {
	ClientID        int64            `json:"client_id" validate:"required"`
	IssueDate       string           `json:"issue_date"`
	DueDate         *string          `json:"due_date"`
	Notes           string           `json:"notes"`
	WithholdingRate decimal.Decimal  `json:"withholding_rate"`
	ExchangeRate    decimal.Decimal  `json:"exchange_rate"`
	Lines           []invoiceLineDTO `json:"lines" validate:"required,min=1"`
}

type updateInvoiceDTO struct {
	IssueDate       string           `json:"issue_date"`
	DueDate         *string          `json:"due_date"`
	Notes           string           `json:"notes"`
	WithholdingRate decimal.Decimal  `json:"withholding_rate"`
	ExchangeRate    decimal.Decimal  `json:"exchange_rate"`
	Lines           []invoiceLineDTO `json:"lines" validate:"required,min=1"`
}

func lineRequests(dtos []invoiceLineDTO) []core.InvoiceLineRequest {
	lines := make([]core.InvoiceLineRequest, 0, len(dtos))
	for _, l := range dtos {
		lines = append(lines, core.InvoiceLineRequest{
			ProductID:       l.ProductID,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPriceHT:     l.UnitPriceHT,
			VATRate:         l.VATRate,
			DiscountPercent: l.DiscountPercent,
			ReservationID:   l.ReservationID,
		})
	}
	return lines
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	var clientID *int64
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, "invalid client_id filter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		clientID = &id
	}
	var paymentStatus *string
	if v := r.URL.Query().Get("payment_status"); v != "" {
		paymentStatus = &v
	}

	invoices, err := h.svc.ListInvoices(r.Context(), orgCode(r), clientID, paymentStatus)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, invoices)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var dto createInvoiceDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), orgCode(r), core.CreateInvoiceInput{
		ClientID:        dto.ClientID,
		IssueDate:       dto.IssueDate,
		DueDate:         dto.DueDate,
		Notes:           dto.Notes,
		WithholdingRate: dto.WithholdingRate,
		ExchangeRate:    dto.ExchangeRate,
		Lines:           lineRequests(dto.Lines),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

type previewInvoiceDTO struct {
	ClientID        int64            `json:"client_id" validate:"required"`
	WithholdingRate decimal.Decimal  `json:"withholding_rate"`
	Lines           []invoiceLineDTO `json:"lines" validate:"required,min=1"`
}

// previewInvoice runs the calculators over unsaved lines: the live totals
// panel behind the invoice form.
func (h *Handler) previewInvoice(w http.ResponseWriter, r *http.Request) {
	var dto previewInvoiceDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	inputs := make([]core.LineInput, 0, len(dto.Lines))
	for _, l := range dto.Lines {
		inputs = append(inputs, core.LineInput{
			Quantity:        l.Quantity,
			UnitPriceHT:     l.UnitPriceHT,
			VATRate:         l.VATRate,
			DiscountPercent: l.DiscountPercent,
		})
	}
	preview, err := h.svc.PreviewInvoiceTotals(r.Context(), orgCode(r), dto.ClientID, inputs, dto.WithholdingRate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, preview)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto updateInvoiceDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	inv, err := h.svc.UpdateInvoice(r.Context(), orgCode(r), id, core.UpdateInvoiceInput{
		IssueDate:       dto.IssueDate,
		DueDate:         dto.DueDate,
		Notes:           dto.Notes,
		WithholdingRate: dto.WithholdingRate,
		ExchangeRate:    dto.ExchangeRate,
		Lines:           lineRequests(dto.Lines),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), orgCode(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
