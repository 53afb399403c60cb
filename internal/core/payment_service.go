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

// RecordPaymentInput is a payment as submitted against an invoice.
type RecordPaymentInput struct {
	PaymentInput
	PaymentDate string // YYYY-MM-DD, defaults to today
}

// PaymentService records and reverses payments. Each write updates the
// invoice's paid amount and payment status inside the same transaction, and
// balance payments move money out of (or back into) the client's two
// provenance buckets.
type PaymentService interface {
	RecordPayment(ctx context.Context, orgCode string, invoiceID int64, in RecordPaymentInput) (*Payment, error)
	DeletePayment(ctx context.Context, orgCode string, paymentID int64) error
	GetPayment(ctx context.Context, paymentID int64) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
}

type paymentService struct {
	pool *pgxpool.Pool
}

func NewPaymentService(pool *pgxpool.Pool) PaymentService {
	return &paymentService{pool: pool}
}

func (s *paymentService) RecordPayment(ctx context.Context, orgCode string, invoiceID int64, in RecordPaymentInput) (*Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}

	var clientID int64
	var status InvoiceStatus
	var netPayable, totalCredited, paid decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT client_id, status, net_payable, total_credited, paid_amount
		FROM invoices WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`, org.ID, invoiceID).Scan(&clientID, &status, &netPayable, &totalCredited, &paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}
	if status == InvoiceStatusCancelled {
		return nil, fmt.Errorf("invoice %d is cancelled and cannot accept payments", invoiceID)
	}

	var creditBalance, depositBalance decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT credit_balance, deposit_balance FROM clients WHERE id = $1 FOR UPDATE",
		clientID,
	).Scan(&creditBalance, &depositBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to lock client %d balances: %w", clientID, err)
	}

	// Balance payments with no explicit split draw credit-note balance first.
	if in.Method == PaymentMethodBalance && in.FromCreditBalance.IsZero() && in.FromDepositBalance.IsZero() {
		fromCredit, fromDeposit, err := SplitBalanceDraw(in.Amount, creditBalance, depositBalance)
		if err != nil {
			return nil, err
		}
		in.FromCreditBalance = fromCredit
		in.FromDepositBalance = fromDeposit
	}

	if err := ValidatePayment(in.PaymentInput, creditBalance, depositBalance); err != nil {
		return nil, err
	}

	owed := RemainingBalance(netPayable.Sub(totalCredited), paid)
	if in.Amount.GreaterThan(owed) {
		return nil, fmt.Errorf("payment %s exceeds remaining balance %s",
			in.Amount.StringFixed(3), owed.StringFixed(3))
	}

	paymentDate := in.PaymentDate
	if paymentDate == "" {
		paymentDate = time.Now().Format("2006-01-02")
	}

	var paymentID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (org_id, invoice_id, method, amount, payment_date,
			reference, credit_balance_used, deposit_balance_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, org.ID, invoiceID, in.Method, in.Amount, paymentDate,
		in.Reference, in.FromCreditBalance, in.FromDepositBalance,
	).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	for i, sub := range in.SubLines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO payment_sublines (payment_id, method, amount, reference)
			VALUES ($1, $2, $3, $4)
		`, paymentID, sub.Method, sub.Amount, sub.Reference); err != nil {
			return nil, fmt.Errorf("failed to insert payment sub-line %d: %w", i+1, err)
		}
	}

	if in.Method == PaymentMethodBalance {
		if _, err := tx.Exec(ctx, `
			UPDATE clients
			SET credit_balance = credit_balance - $1,
			    deposit_balance = deposit_balance - $2
			WHERE id = $3
		`, in.FromCreditBalance, in.FromDepositBalance, clientID); err != nil {
			return nil, fmt.Errorf("failed to deduct client balances: %w", err)
		}
	}

	newPaid := paid.Add(in.Amount)
	if _, err := tx.Exec(ctx,
		"UPDATE invoices SET paid_amount = $1, payment_status = $2 WHERE id = $3",
		newPaid, PaymentStatusFor(newPaid, netPayable.Sub(totalCredited)), invoiceID,
	); err != nil {
		return nil, fmt.Errorf("failed to update invoice payment state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return s.GetPayment(ctx, paymentID)
}

// DeletePayment reverses a payment: the invoice's paid amount drops and any
// balance draw flows back into the bucket it came from.
func (s *paymentService) DeletePayment(ctx context.Context, orgCode string, paymentID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return err
	}

	var invoiceID int64
	var amount, fromCredit, fromDeposit decimal.Decimal
	var method PaymentMethod
	err = tx.QueryRow(ctx, `
		SELECT invoice_id, method, amount, credit_balance_used, deposit_balance_used
		FROM payments WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`, org.ID, paymentID).Scan(&invoiceID, &method, &amount, &fromCredit, &fromDeposit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payment %d not found", paymentID)
		}
		return fmt.Errorf("failed to lock payment %d: %w", paymentID, err)
	}

	var clientID int64
	var netPayable, totalCredited, paid decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT client_id, net_payable, total_credited, paid_amount
		FROM invoices WHERE id = $1 FOR UPDATE
	`, invoiceID).Scan(&clientID, &netPayable, &totalCredited, &paid)
	if err != nil {
		return fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE id = $1", paymentID); err != nil {
		return fmt.Errorf("failed to delete payment %d: %w", paymentID, err)
	}

	if method == PaymentMethodBalance {
		if _, err := tx.Exec(ctx, `
			UPDATE clients
			SET credit_balance = credit_balance + $1,
			    deposit_balance = deposit_balance + $2
			WHERE id = $3
		`, fromCredit, fromDeposit, clientID); err != nil {
			return fmt.Errorf("failed to restore client balances: %w", err)
		}
	}

	newPaid := paid.Sub(amount)
	if newPaid.IsNegative() {
		newPaid = decimal.Zero
	}
	if _, err := tx.Exec(ctx,
		"UPDATE invoices SET paid_amount = $1, payment_status = $2 WHERE id = $3",
		newPaid, PaymentStatusFor(newPaid, netPayable.Sub(totalCredited)), invoiceID,
	); err != nil {
		return fmt.Errorf("failed to update invoice payment state: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID int64) (*Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, invoice_id, method, amount, payment_date::text,
		       reference, credit_balance_used, deposit_balance_used, created_at
		FROM payments WHERE id = $1
	`, paymentID).Scan(
		&p.ID, &p.OrgID, &p.InvoiceID, &p.Method, &p.Amount, &p.PaymentDate,
		&p.Reference, &p.CreditBalanceUsed, &p.DepositBalanceUsed, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %d not found", paymentID)
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT method, amount, reference FROM payment_sublines WHERE payment_id = $1 ORDER BY id",
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment sub-lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sub PaymentSubLine
		if err := rows.Scan(&sub.Method, &sub.Amount, &sub.Reference); err != nil {
			return nil, fmt.Errorf("failed to scan payment sub-line: %w", err)
		}
		p.SubLines = append(p.SubLines, sub)
	}
	return &p, nil
}

func (s *paymentService) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, invoice_id, method, amount, payment_date::text,
		       reference, credit_balance_used, deposit_balance_used, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.OrgID, &p.InvoiceID, &p.Method, &p.Amount, &p.PaymentDate,
			&p.Reference, &p.CreditBalanceUsed, &p.DepositBalanceUsed, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}
