package web

import (
	"net/http"

	"invoicing-backend/internal/core"
)

type supplierDTO struct {
	Name     string `json:"name" validate:"required"`
	TaxID    string `json:"tax_id"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

func (d supplierDTO) input() core.SupplierInput {
	return core.SupplierInput{
		Name:     d.Name,
		TaxID:    d.TaxID,
		Email:    d.Email,
		Phone:    d.Phone,
		Address:  d.Address,
		Category: d.Category,
		Notes:    d.Notes,
	}
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	suppliers, err := h.svc.ListSuppliers(r.Context(), orgCode(r), includeInactive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var dto supplierDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	sp, err := h.svc.CreateSupplier(r.Context(), orgCode(r), dto.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sp)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sp, err := h.svc.GetSupplier(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sp)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto supplierDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	sp, err := h.svc.UpdateSupplier(r.Context(), orgCode(r), id, dto.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sp)
}

func (h *Handler) deactivateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeactivateSupplier(r.Context(), orgCode(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
