package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CreateCreditNoteInput selects the credit mode and its parameters.
// WithholdingRate is the rate to apply to the invoice's new totals; pass the
// invoice's original rate to keep withholding, or zero to cancel it (the usual
// choice when the credit drops the invoice below the exemption threshold).
type CreateCreditNoteInput struct {
	Mode CreditMode
	// per_line mode: canonical HT discount per invoice line ID. Lines absent
	// from the map are left untouched.
	LineDiscounts map[int64]decimal.Decimal
	// total_target mode: the invoice's new HT total after the credit.
	TargetTotalHT   decimal.Decimal
	WithholdingRate decimal.Decimal
	Reason          string
}

// CreditNotePreview is the dry-run result the operator reviews before
// validating: the prorated lines, the financial outcome, and whether the
// withholding exemption threshold was crossed.
type CreditNotePreview struct {
	Lines            []ProratedLine `json:"lines"`
	Outcome          CreditOutcome  `json:"outcome"`
	ThresholdCrossed bool           `json:"threshold_crossed"`
}

// CreditNoteService issues credit notes against validated invoices. Credit
// notes are append-only: they are never edited or deleted, and each one
// computes against the invoice's remaining (not original) amounts.
type CreditNoteService interface {
	PreviewCreditNote(ctx context.Context, orgCode string, invoiceID int64, in CreateCreditNoteInput) (*CreditNotePreview, error)
	CreateCreditNote(ctx context.Context, orgCode string, invoiceID int64, in CreateCreditNoteInput) (*CreditNote, error)
	GetCreditNote(ctx context.Context, creditNoteID int64) (*CreditNote, error)
	ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error)
}

type creditNoteService struct {
	pool      *pgxpool.Pool
	sequences SequenceService
}

func NewCreditNoteService(pool *pgxpool.Pool, sequences SequenceService) CreditNoteService {
	return &creditNoteService{pool: pool, sequences: sequences}
}

// remainingLines rebuilds each invoice line's balance by subtracting the sums
// already credited against it by previous credit notes.
func remainingLines(ctx context.Context, q pgxRowQuerier, invoiceID int64, foreign bool) ([]RemainingLine, error) {
	rows, err := q.Query(ctx, `
		SELECT il.id, il.vat_rate,
		       il.line_total_ht - COALESCE(SUM(cnl.credited_ht), 0),
		       il.line_total_ttc - COALESCE(SUM(cnl.credited_ttc), 0)
		FROM invoice_lines il
		LEFT JOIN credit_note_lines cnl ON cnl.invoice_line_id = il.id
		WHERE il.invoice_id = $1
		GROUP BY il.id, il.vat_rate, il.line_total_ht, il.line_total_ttc, il.line_number
		ORDER BY il.line_number
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query remaining line balances: %w", err)
	}
	defer rows.Close()

	var lines []RemainingLine
	for rows.Next() {
		l := RemainingLine{Foreign: foreign}
		if err := rows.Scan(&l.InvoiceLineID, &l.VATRate, &l.RemainingHT, &l.RemainingTTC); err != nil {
			return nil, fmt.Errorf("failed to scan remaining line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// creditState loads the invoice snapshot a credit note computes against and
// locks the row when q is a transaction.
func creditState(ctx context.Context, q pgxQuerier, orgID int, invoiceID int64, lock bool) (CreditInvoiceState, decimal.Decimal, error) {
	query := `
		SELECT c.is_foreign, i.net_payable, i.total_credited, i.paid_amount,
		       i.payment_status, i.stamp_duty_amount, i.total_ttc, i.status
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.org_id = $1 AND i.id = $2
	`
	if lock {
		query += " FOR UPDATE OF i"
	}
	var st CreditInvoiceState
	var originalTTC decimal.Decimal
	var status InvoiceStatus
	err := q.QueryRow(ctx, query, orgID, invoiceID).Scan(
		&st.Foreign, &st.NetPayable, &st.PreviousTotalCredited, &st.PaidAmount,
		&st.PaymentStatus, &st.StampDuty, &originalTTC, &status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return st, decimal.Zero, fmt.Errorf("invoice %d not found", invoiceID)
		}
		return st, decimal.Zero, fmt.Errorf("failed to load invoice %d: %w", invoiceID, err)
	}
	if status == InvoiceStatusCancelled {
		return st, decimal.Zero, fmt.Errorf("invoice %d is cancelled and cannot be credited", invoiceID)
	}
	return st, originalTTC, nil
}

// prorateForInput runs the selected credit mode over the remaining lines.
func prorateForInput(lines []RemainingLine, in CreateCreditNoteInput) ([]ProratedLine, error) {
	switch in.Mode {
	case CreditModePerLine:
		if len(in.LineDiscounts) == 0 {
			return nil, fmt.Errorf("per_line credit note requires at least one line discount")
		}
		return ApplyLineDiscounts(lines, in.LineDiscounts), nil
	case CreditModeTotalTarget:
		return ProrateToTarget(lines, in.TargetTotalHT)
	default:
		return nil, fmt.Errorf("unknown credit mode %q", in.Mode)
	}
}

func (s *creditNoteService) PreviewCreditNote(ctx context.Context, orgCode string, invoiceID int64, in CreateCreditNoteInput) (*CreditNotePreview, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	st, originalTTC, err := creditState(ctx, s.pool, org.ID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	lines, err := remainingLines(ctx, s.pool, invoiceID, st.Foreign)
	if err != nil {
		return nil, err
	}
	prorated, err := prorateForInput(lines, in)
	if err != nil {
		return nil, err
	}
	outcome := ComputeCreditOutcome(st, prorated, in.WithholdingRate)
	return &CreditNotePreview{
		Lines:            prorated,
		Outcome:          outcome,
		ThresholdCrossed: CrossesWithholdingThreshold(originalTTC, outcome.NewTotalTTC, org.WithholdingThreshold),
	}, nil
}

func (s *creditNoteService) CreateCreditNote(ctx context.Context, orgCode string, invoiceID int64, in CreateCreditNoteInput) (*CreditNote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}
	st, _, err := creditState(ctx, tx, org.ID, invoiceID, true)
	if err != nil {
		return nil, err
	}
	lines, err := remainingLines(ctx, tx, invoiceID, st.Foreign)
	if err != nil {
		return nil, err
	}
	prorated, err := prorateForInput(lines, in)
	if err != nil {
		return nil, err
	}
	if st.Foreign && in.WithholdingRate.IsPositive() {
		return nil, fmt.Errorf("withholding does not apply to foreign clients")
	}

	outcome := ComputeCreditOutcome(st, prorated, in.WithholdingRate)
	if !outcome.CreditAmount.IsPositive() {
		return nil, fmt.Errorf("credit note would credit %s; nothing to credit", outcome.CreditAmount.StringFixed(3))
	}

	number, err := s.sequences.NextCreditNoteNumberTx(ctx, tx, org.ID, time.Now().Year())
	if err != nil {
		return nil, err
	}

	var creditNoteID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_notes (org_id, invoice_id, credit_note_number, mode,
			subtotal_ht, total_vat, total_ttc,
			withholding_rate, withholding_amount,
			new_net_payable, credit_amount, financial_credit, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, org.ID, invoiceID, number, in.Mode,
		outcome.NewSubtotalHT, outcome.NewTotalVAT, outcome.NewTotalTTC,
		in.WithholdingRate, outcome.WithholdingAmount,
		outcome.NewNetPayable, outcome.CreditAmount, outcome.FinancialCredit, in.Reason,
	).Scan(&creditNoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert credit note: %w", err)
	}

	for _, l := range prorated {
		if l.CreditedHT.IsZero() && l.CreditedTTC.IsZero() {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO credit_note_lines (credit_note_id, invoice_line_id, vat_rate,
				credited_ht, credited_vat, credited_ttc)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, creditNoteID, l.InvoiceLineID, l.VATRate, l.CreditedHT, l.CreditedVAT, l.CreditedTTC); err != nil {
			return nil, fmt.Errorf("failed to insert credit note line: %w", err)
		}
	}

	newTotalCredited := st.PreviousTotalCredited.Add(outcome.CreditAmount)
	newStatus := PaymentStatusFor(st.PaidAmount, st.NetPayable.Sub(newTotalCredited))
	if _, err := tx.Exec(ctx, `
		UPDATE invoices
		SET total_credited = $1,
		    credit_note_count = credit_note_count + 1,
		    withholding_rate = $2,
		    withholding_amount = $3,
		    payment_status = $4
		WHERE id = $5
	`, newTotalCredited, in.WithholdingRate, outcome.WithholdingAmount, newStatus, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to update invoice after credit note: %w", err)
	}

	// Overpayment caused by the credit becomes spendable client balance in the
	// credit-note bucket.
	if outcome.FinancialCredit.IsPositive() {
		if _, err := tx.Exec(ctx, `
			UPDATE clients SET credit_balance = credit_balance + $1
			WHERE id = (SELECT client_id FROM invoices WHERE id = $2)
		`, outcome.FinancialCredit, invoiceID); err != nil {
			return nil, fmt.Errorf("failed to credit client balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit note: %w", err)
	}
	return s.GetCreditNote(ctx, creditNoteID)
}

func (s *creditNoteService) GetCreditNote(ctx context.Context, creditNoteID int64) (*CreditNote, error) {
	var cn CreditNote
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, invoice_id, credit_note_number, mode,
		       subtotal_ht, total_vat, total_ttc,
		       withholding_rate, withholding_amount,
		       new_net_payable, credit_amount, financial_credit, reason, created_at
		FROM credit_notes WHERE id = $1
	`, creditNoteID).Scan(
		&cn.ID, &cn.OrgID, &cn.InvoiceID, &cn.CreditNoteNumber, &cn.Mode,
		&cn.SubtotalHT, &cn.TotalVAT, &cn.TotalTTC,
		&cn.WithholdingRate, &cn.WithholdingAmount,
		&cn.NewNetPayable, &cn.CreditAmount, &cn.FinancialCredit, &cn.Reason, &cn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("credit note %d not found", creditNoteID)
		}
		return nil, fmt.Errorf("failed to fetch credit note %d: %w", creditNoteID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, credit_note_id, invoice_line_id, vat_rate, credited_ht, credited_vat, credited_ttc
		FROM credit_note_lines WHERE credit_note_id = $1 ORDER BY id
	`, creditNoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit note lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l CreditNoteLine
		if err := rows.Scan(&l.ID, &l.CreditNoteID, &l.InvoiceLineID, &l.VATRate, &l.CreditedHT, &l.CreditedVAT, &l.CreditedTTC); err != nil {
			return nil, fmt.Errorf("failed to scan credit note line: %w", err)
		}
		cn.Lines = append(cn.Lines, l)
	}
	return &cn, nil
}

func (s *creditNoteService) ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, invoice_id, credit_note_number, mode,
		       subtotal_ht, total_vat, total_ttc,
		       withholding_rate, withholding_amount,
		       new_net_payable, credit_amount, financial_credit, reason, created_at
		FROM credit_notes WHERE invoice_id = $1 ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit notes: %w", err)
	}
	defer rows.Close()

	var notes []CreditNote
	for rows.Next() {
		var cn CreditNote
		if err := rows.Scan(
			&cn.ID, &cn.OrgID, &cn.InvoiceID, &cn.CreditNoteNumber, &cn.Mode,
			&cn.SubtotalHT, &cn.TotalVAT, &cn.TotalTTC,
			&cn.WithholdingRate, &cn.WithholdingAmount,
			&cn.NewNetPayable, &cn.CreditAmount, &cn.FinancialCredit, &cn.Reason, &cn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credit note: %w", err)
		}
		notes = append(notes, cn)
	}
	return notes, nil
}
