package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceService hands out document numbers that are gapless per
// organization, per document kind, per calendar year:
//
//	invoice:     {prefix}-{year}-{counter %05d}
//	credit note: AV-{year}-{counter %05d}
type SequenceService interface {
	// NextInvoiceNumberTx allocates the next invoice number inside the
	// caller's transaction, so a failed invoice insert rolls the counter back.
	NextInvoiceNumberTx(ctx context.Context, tx pgx.Tx, orgID int, year int) (string, error)
	// NextCreditNoteNumberTx allocates the next credit note number inside the
	// caller's transaction.
	NextCreditNoteNumberTx(ctx context.Context, tx pgx.Tx, orgID int, year int) (string, error)
}

type sequenceService struct {
	pool *pgxpool.Pool
}

func NewSequenceService(pool *pgxpool.Pool) SequenceService {
	return &sequenceService{pool: pool}
}

func (s *sequenceService) NextInvoiceNumberTx(ctx context.Context, tx pgx.Tx, orgID int, year int) (string, error) {
	var prefix string
	if err := tx.QueryRow(ctx, "SELECT invoice_prefix FROM organizations WHERE id = $1", orgID).Scan(&prefix); err != nil {
		return "", fmt.Errorf("failed to resolve invoice prefix for org %d: %w", orgID, err)
	}
	n, err := nextNumberTx(ctx, tx, orgID, "invoice", year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, year, n), nil
}

func (s *sequenceService) NextCreditNoteNumberTx(ctx context.Context, tx pgx.Tx, orgID int, year int) (string, error) {
	n, err := nextNumberTx(ctx, tx, orgID, "credit_note", year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AV-%d-%05d", year, n), nil
}

// nextNumberTx bumps the (org, kind, year) counter with an upsert. The RETURNING
// row carries the new value; concurrent callers serialize on the row lock the
// UPDATE takes, which is what makes the sequence gapless.
func nextNumberTx(ctx context.Context, tx pgx.Tx, orgID int, kind string, year int) (int64, error) {
	var last int64
	err := tx.QueryRow(ctx, `
		INSERT INTO number_sequences (org_id, kind, year, last_number)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (org_id, kind, year)
		DO UPDATE SET last_number = number_sequences.last_number + 1
		RETURNING last_number
	`, orgID, kind, year).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s number for org %d year %d: %w", kind, orgID, year, err)
	}
	return last, nil
}
