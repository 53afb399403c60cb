package web

import (
	"net/http"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

type paymentSubLineDTO struct {
	Method    string          `json:"method" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type recordPaymentDTO struct {
	Method             string              `json:"method" validate:"required"`
	Amount             decimal.Decimal     `json:"amount"`
	PaymentDate        string              `json:"payment_date"`
	Reference          string              `json:"reference"`
	SubLines           []paymentSubLineDTO `json:"sub_lines"`
	FromCreditBalance  decimal.Decimal     `json:"from_credit_balance"`
	FromDepositBalance decimal.Decimal     `json:"from_deposit_balance"`
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payments)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var dto recordPaymentDTO
	if !h.decodeJSON(w, r, &dto) {
		return
	}

	subLines := make([]core.PaymentSubLine, 0, len(dto.SubLines))
	for _, s := range dto.SubLines {
		subLines = append(subLines, core.PaymentSubLine{
			Method:    core.PaymentMethod(s.Method),
			Amount:    s.Amount,
			Reference: s.Reference,
		})
	}

	p, err := h.svc.RecordPayment(r.Context(), orgCode(r), id, core.RecordPaymentInput{
		PaymentInput: core.PaymentInput{
			Method:             core.PaymentMethod(dto.Method),
			Amount:             dto.Amount,
			Reference:          dto.Reference,
			SubLines:           subLines,
			FromCreditBalance:  dto.FromCreditBalance,
			FromDepositBalance: dto.FromDepositBalance,
		},
		PaymentDate: dto.PaymentDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePayment(r.Context(), orgCode(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
