package web

import (
	"net/http"
	"strconv"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

type createCreditNoteDTO struct {
	Mode            string                     `json:"mode" validate:"required,oneof=per_line total_target"`
	LineDiscounts   map[string]decimal.Decimal `json:"line_discounts"`
	TargetTotalHT   decimal.Decimal            `json:"target_total_ht"`
	WithholdingRate decimal.Decimal            `json:"withholding_rate"`
	Reason          string                     `json:"reason"`
}

// creditNoteInput converts the DTO; JSON object keys are strings, so the
// per-line discount map is re-keyed to invoice line IDs here.
func creditNoteInput(dto createCreditNoteDTO) (core.CreateCreditNoteInput, error) {
	in := core.CreateCreditNoteInput{
		Mode:            core.CreditMode(dto.Mode),
		TargetTotalHT:   dto.TargetTotalHT,
		WithholdingRate: dto.WithholdingRate,
		Reason:          dto.Reason,
	}
	if len(dto.LineDiscounts) > 0 {
		in.LineDiscounts = make(map[int64]decimal.Decimal, len(dto.LineDiscounts))
		for k, v := range dto.LineDiscounts {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				return in, err
			}
			in.LineDiscounts[id] = v
		}
	}
	return in, nil
}

func (h *Handler) listCreditNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	notes, err := h.svc.ListCreditNotes(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, notes)
}

func (h *Handler) previewCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto createCreditNoteDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	in, err := creditNoteInput(dto)
	if err != nil {
		writeError(w, r, "invalid line discount key", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	preview, err := h.svc.PreviewCreditNote(r.Context(), orgCode(r), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, preview)
}

func (h *Handler) createCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto createCreditNoteDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}
	in, err := creditNoteInput(dto)
	if err != nil {
		writeError(w, r, "invalid line discount key", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	cn, err := h.svc.CreateCreditNote(r.Context(), orgCode(r), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, cn)
}

func (h *Handler) getCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cn, err := h.svc.GetCreditNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, cn)
}
