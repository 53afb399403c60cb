package web

import (
	"net/http"
	"strconv"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

type productDTO struct {
	Name                string          `json:"name" validate:"required"`
	Description         string          `json:"description"`
	UnitPriceHT         decimal.Decimal `json:"unit_price_ht"`
	VATRate             decimal.Decimal `json:"vat_rate"`
	InitialStock        decimal.Decimal `json:"initial_stock"`
	UnlimitedStock      bool            `json:"unlimited_stock"`
	AllowOutOfStockSale bool            `json:"allow_out_of_stock_sale"`
}

func (d productDTO) input() core.ProductInput {
	return core.ProductInput{
		Name:                d.Name,
		Description:         d.Description,
		UnitPriceHT:         d.UnitPriceHT,
		VATRate:             d.VATRate,
		UnlimitedStock:      d.UnlimitedStock,
		AllowOutOfStockSale: d.AllowOutOfStockSale,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	products, err := h.svc.ListProducts(r.Context(), orgCode(r), includeInactive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var dto productDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), orgCode(r), dto.input(), dto.InitialStock)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto productDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), orgCode(r), id, dto.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateProduct(r.Context(), orgCode(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockAdjustDTO struct {
	Delta decimal.Decimal `json:"delta"`
	Notes string          `json:"notes"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto stockAdjustDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	p, err := h.svc.AdjustStock(r.Context(), orgCode(r), id, dto.Delta, dto.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) listStockMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	movements, err := h.svc.ListStockMovements(r.Context(), orgCode(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, movements)
}

type reservationDTO struct {
	ClientID  int64           `json:"client_id" validate:"required"`
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	var clientID *int64
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, "invalid client_id filter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		clientID = &id
	}
	reservations, err := h.svc.ListReservations(r.Context(), orgCode(r), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, reservations)
}

func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	var dto reservationDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	res, err := h.svc.ReserveStock(r.Context(), orgCode(r), dto.ClientID, dto.ProductID, dto.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelReservation(r.Context(), orgCode(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
