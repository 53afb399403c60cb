package web

import (
	"net/http"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

type clientDTO struct {
	Name     string `json:"name" validate:"required"`
	TaxID    string `json:"tax_id"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Foreign  bool   `json:"is_foreign"`
	Currency string `json:"currency"`
}

func (d clientDTO) input() core.ClientInput {
	return core.ClientInput{
		Name:     d.Name,
		TaxID:    d.TaxID,
		Email:    d.Email,
		Phone:    d.Phone,
		Address:  d.Address,
		Foreign:  d.Foreign,
		Currency: d.Currency,
	}
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	clients, err := h.svc.ListClients(r.Context(), orgCode(r), includeInactive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, clients)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var dto clientDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	c, err := h.svc.CreateClient(r.Context(), orgCode(r), dto.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto clientDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	c, err := h.svc.UpdateClient(r.Context(), orgCode(r), id, dto.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) deactivateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateClient(r.Context(), orgCode(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type depositDTO struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

func (h *Handler) recordDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto depositDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	c, err := h.svc.RecordDeposit(r.Context(), orgCode(r), id, dto.Amount, dto.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}
