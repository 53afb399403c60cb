package web

import "net/http"

type generateInvoiceDTO struct {
	Request string `json:"request" validate:"required"`
}

// generateInvoiceDraft turns a natural-language request into an invoice
// draft. The response is a proposal; nothing is persisted until the operator
// submits it through the invoice endpoint.
func (h *Handler) generateInvoiceDraft(w http.ResponseWriter, r *http.Request) {
	var dto generateInvoiceDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	result, err := h.svc.GenerateInvoiceDraft(r.Context(), orgCode(r), dto.Request)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

type searchDTO struct {
	Query string `json:"query" validate:"required"`
}

func (h *Handler) searchInvoices(w http.ResponseWriter, r *http.Request) {
	var dto searchDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	result, err := h.svc.SearchInvoices(r.Context(), orgCode(r), dto.Query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) searchSuppliers(w http.ResponseWriter, r *http.Request) {
	var dto searchDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	result, err := h.svc.SearchSuppliers(r.Context(), orgCode(r), dto.Query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
