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

// InvoiceLineRequest is one line as submitted. If UnitPriceHT is zero and the
// line references a product, the product's default price and VAT rate are
// used. Lines backed by a reservation must request exactly the reserved
// quantity.
type InvoiceLineRequest struct {
	ProductID       *int64
	Description     string
	Quantity        decimal.Decimal
	UnitPriceHT     decimal.Decimal
	VATRate         decimal.Decimal
	DiscountPercent decimal.Decimal
	ReservationID   *int64
}

// CreateInvoiceInput is the input for creating an invoice.
type CreateInvoiceInput struct {
	ClientID        int64
	IssueDate       string // YYYY-MM-DD
	DueDate         *string
	Notes           string
	WithholdingRate decimal.Decimal // zero means no withholding
	ExchangeRate    decimal.Decimal // foreign clients only; zero means 1
	Lines           []InvoiceLineRequest
}

// UpdateInvoiceInput fully replaces an invoice's lines (delete-all,
// insert-all) and re-derives every total. WithholdingRate and ExchangeRate
// are immutable once any payment exists against the invoice.
type UpdateInvoiceInput struct {
	IssueDate       string
	DueDate         *string
	Notes           string
	WithholdingRate decimal.Decimal
	ExchangeRate    decimal.Decimal
	Lines           []InvoiceLineRequest
}

// InvoiceService owns the invoice lifecycle. Every multi-step write — header,
// lines, custom taxes, stock movements, product stock updates, reservation
// consumption — happens inside a single transaction.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, orgCode string, in CreateInvoiceInput) (*Invoice, error)
	UpdateInvoice(ctx context.Context, orgCode string, invoiceID int64, in UpdateInvoiceInput) (*Invoice, error)
	DeleteInvoice(ctx context.Context, orgCode string, invoiceID int64) error
	GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, orgCode, number string) (*Invoice, error)
	ListInvoices(ctx context.Context, orgCode string, clientID *int64, paymentStatus *string) ([]Invoice, error)
}

type invoiceService struct {
	pool      *pgxpool.Pool
	sequences SequenceService
}

func NewInvoiceService(pool *pgxpool.Pool, sequences SequenceService) InvoiceService {
	return &invoiceService{pool: pool, sequences: sequences}
}

// resolveOrg loads the organization config by code.
func resolveOrg(ctx context.Context, q pgxQuerier, orgCode string) (*Organization, error) {
	var o Organization
	err := q.QueryRow(ctx, `
		SELECT id, org_code, name, base_currency, invoice_prefix,
		       stamp_enabled, stamp_amount, withholding_rate, withholding_threshold,
		       max_discount_percent, created_at
		FROM organizations WHERE org_code = $1
	`, orgCode).Scan(
		&o.ID, &o.OrgCode, &o.Name, &o.BaseCurrency, &o.InvoicePrefix,
		&o.StampEnabled, &o.StampAmount, &o.WithholdingRate, &o.WithholdingThreshold,
		&o.MaxDiscountPercent, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("organization %s not found", orgCode)
		}
		return nil, fmt.Errorf("failed to resolve organization %s: %w", orgCode, err)
	}
	return &o, nil
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// lookup helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is the multi-row sibling of pgxQuerier.
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadActiveTaxes fetches the org's custom taxes ordered by phase position.
func loadActiveTaxes(ctx context.Context, q pgxRowQuerier, orgID int) ([]CustomTax, error) {
	rows, err := q.Query(ctx, `
		SELECT name, value_type, value, application_type, application_order
		FROM custom_taxes
		WHERE org_id = $1 AND is_active = true
		ORDER BY position, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom taxes: %w", err)
	}
	defer rows.Close()

	var taxes []CustomTax
	for rows.Next() {
		var t CustomTax
		if err := rows.Scan(&t.Name, &t.ValueType, &t.Value, &t.Application, &t.Order); err != nil {
			return nil, fmt.Errorf("failed to scan custom tax: %w", err)
		}
		taxes = append(taxes, t)
	}
	return taxes, nil
}

// resolvedLine is an InvoiceLineRequest with product defaults filled in and
// totals computed.
type resolvedLine struct {
	req   InvoiceLineRequest
	total LineTotal
}

// resolveLines fills product defaults, validates every line, verifies
// reservation-backed lines, and computes line totals.
func resolveLines(ctx context.Context, tx pgx.Tx, org *Organization, clientID int64, foreign bool, reqs []InvoiceLineRequest) ([]resolvedLine, []LineInput, error) {
	if len(reqs) == 0 {
		return nil, nil, fmt.Errorf("invoice must have at least one line")
	}

	resolved := make([]resolvedLine, 0, len(reqs))
	inputs := make([]LineInput, 0, len(reqs))
	for i, req := range reqs {
		if req.ProductID != nil {
			var name string
			var defaultPrice, defaultVAT decimal.Decimal
			err := tx.QueryRow(ctx,
				"SELECT name, unit_price_ht, vat_rate FROM products WHERE org_id = $1 AND id = $2 AND is_active = true",
				org.ID, *req.ProductID,
			).Scan(&name, &defaultPrice, &defaultVAT)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, nil, fmt.Errorf("line %d: product %d not found", i+1, *req.ProductID)
				}
				return nil, nil, fmt.Errorf("line %d: failed to resolve product: %w", i+1, err)
			}
			if req.Description == "" {
				req.Description = name
			}
			if req.UnitPriceHT.IsZero() {
				req.UnitPriceHT = defaultPrice
				req.VATRate = defaultVAT
			}
		}

		if req.ReservationID != nil {
			if req.ProductID == nil {
				return nil, nil, fmt.Errorf("line %d: reservation line must reference a product", i+1)
			}
			var resQty decimal.Decimal
			var resStatus string
			err := tx.QueryRow(ctx, `
				SELECT quantity, status FROM reservations
				WHERE id = $1 AND org_id = $2 AND client_id = $3 AND product_id = $4
				FOR UPDATE
			`, *req.ReservationID, org.ID, clientID, *req.ProductID).Scan(&resQty, &resStatus)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, nil, fmt.Errorf("line %d: reservation %d not found for this client and product", i+1, *req.ReservationID)
				}
				return nil, nil, fmt.Errorf("line %d: failed to lock reservation: %w", i+1, err)
			}
			if resStatus != "active" {
				return nil, nil, fmt.Errorf("line %d: reservation %d is %s, not active", i+1, *req.ReservationID, resStatus)
			}
			// Reservation lines carry a fixed, non-editable quantity.
			if !req.Quantity.Equal(resQty) {
				return nil, nil, fmt.Errorf("line %d: reservation quantity is fixed at %s, got %s", i+1, resQty, req.Quantity)
			}
		}

		in := LineInput{
			Quantity:        req.Quantity,
			UnitPriceHT:     req.UnitPriceHT,
			VATRate:         req.VATRate,
			DiscountPercent: req.DiscountPercent,
		}
		if err := ValidateLineInput(in, org.MaxDiscountPercent); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		resolved = append(resolved, resolvedLine{req: req, total: ComputeLineTotal(in, foreign)})
		inputs = append(inputs, in)
	}
	return resolved, inputs, nil
}

// applyStock decrements product stock for every product line, enforcing the
// shared-stock cap across repeated product lines. originals carries the
// quantities the invoice already held before an edit (empty on create).
// Reservation lines consume their reservation: both reserved and on-hand
// stock drop, and the reservation flips to consumed.
func applyStock(ctx context.Context, tx pgx.Tx, org *Organization, invoiceID int64, lines []resolvedLine, originals map[int64]decimal.Decimal) error {
	// Requested totals per product across non-reservation lines.
	requested := make(map[int64]decimal.Decimal)
	for _, rl := range lines {
		if rl.req.ProductID != nil && rl.req.ReservationID == nil {
			requested[*rl.req.ProductID] = requested[*rl.req.ProductID].Add(rl.req.Quantity)
		}
	}

	for productID, total := range requested {
		var current, reserved decimal.Decimal
		var unlimited, allowOOS bool
		err := tx.QueryRow(ctx, `
			SELECT current_stock, reserved_stock, unlimited_stock, allow_out_of_stock_sale
			FROM products WHERE org_id = $1 AND id = $2
			FOR UPDATE
		`, org.ID, productID).Scan(&current, &reserved, &unlimited, &allowOOS)
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
		if unlimited {
			continue
		}

		available := current.Sub(reserved).Add(originals[productID])
		if !allowOOS && total.GreaterThan(available) {
			return fmt.Errorf("insufficient stock for product %d: available %s, requested %s",
				productID, available.StringFixed(3), total.StringFixed(3))
		}

		if _, err := tx.Exec(ctx,
			"UPDATE products SET current_stock = current_stock - $1 WHERE id = $2",
			total, productID,
		); err != nil {
			return fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (org_id, product_id, invoice_id, movement_type, quantity, notes)
			VALUES ($1, $2, $3, 'OUT', $4, $5)
		`, org.ID, productID, invoiceID, total.Neg(),
			fmt.Sprintf("Invoice %d: %s units sold", invoiceID, total.String()),
		); err != nil {
			return fmt.Errorf("failed to insert stock movement for product %d: %w", productID, err)
		}
	}

	// Consume reservations: the held stock ships with the invoice.
	for _, rl := range lines {
		if rl.req.ReservationID == nil {
			continue
		}
		productID := *rl.req.ProductID
		if _, err := tx.Exec(ctx,
			"UPDATE reservations SET status = 'consumed' WHERE id = $1",
			*rl.req.ReservationID,
		); err != nil {
			return fmt.Errorf("failed to consume reservation %d: %w", *rl.req.ReservationID, err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET current_stock = current_stock - $1,
			    reserved_stock = GREATEST(reserved_stock - $1, 0)
			WHERE id = $2
		`, rl.req.Quantity, productID); err != nil {
			return fmt.Errorf("failed to ship reserved stock for product %d: %w", productID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (org_id, product_id, invoice_id, movement_type, quantity, notes)
			VALUES ($1, $2, $3, 'RESERVATION_RELEASE', $4, $5)
		`, org.ID, productID, invoiceID, rl.req.Quantity.Neg(),
			fmt.Sprintf("Invoice %d: reservation %d consumed", invoiceID, *rl.req.ReservationID),
		); err != nil {
			return fmt.Errorf("failed to insert reservation movement: %w", err)
		}
	}
	return nil
}

// restoreStock hands back the stock an invoice's persisted lines consumed.
// Used on edit (before re-applying the new lines) and on delete. Reservation
// lines are not restored: the reservation was consumed and stays consumed.
func restoreStock(ctx context.Context, tx pgx.Tx, orgID int, invoiceID int64) (map[int64]decimal.Decimal, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, reservation_id
		FROM invoice_lines
		WHERE invoice_id = $1 AND product_id IS NOT NULL
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines for stock restore: %w", err)
	}
	defer rows.Close()

	originals := make(map[int64]decimal.Decimal)
	type restoreRow struct {
		productID int64
		qty       decimal.Decimal
	}
	var toRestore []restoreRow
	for rows.Next() {
		var productID int64
		var qty decimal.Decimal
		var reservationID *int64
		if err := rows.Scan(&productID, &qty, &reservationID); err != nil {
			return nil, fmt.Errorf("failed to scan line for stock restore: %w", err)
		}
		if reservationID != nil {
			continue
		}
		originals[productID] = originals[productID].Add(qty)
		toRestore = append(toRestore, restoreRow{productID: productID, qty: qty})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines for stock restore: %w", err)
	}

	for _, r := range toRestore {
		if _, err := tx.Exec(ctx,
			"UPDATE products SET current_stock = current_stock + $1 WHERE id = $2",
			r.qty, r.productID,
		); err != nil {
			return nil, fmt.Errorf("failed to restore stock for product %d: %w", r.productID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (org_id, product_id, invoice_id, movement_type, quantity, notes)
			VALUES ($1, $2, $3, 'RETURN', $4, $5)
		`, orgID, r.productID, invoiceID, r.qty,
			fmt.Sprintf("Invoice %d: %s units returned to stock", invoiceID, r.qty.String()),
		); err != nil {
			return nil, fmt.Errorf("failed to insert return movement: %w", err)
		}
	}
	return originals, nil
}

// invoiceFinancials computes the header totals for a set of line inputs.
func invoiceFinancials(org *Organization, foreign bool, inputs []LineInput, taxes []CustomTax, withholdingRate decimal.Decimal) (InvoiceTotals, WithholdingResult, decimal.Decimal, error) {
	totals := AggregateTotals(inputs, foreign, StampDuty{Enabled: org.StampEnabled, Amount: org.StampAmount}, taxes)

	if foreign {
		if withholdingRate.IsPositive() {
			return totals, WithholdingResult{}, decimal.Zero, fmt.Errorf("withholding does not apply to foreign clients")
		}
		return totals, WithholdingResult{AdjustedNetPayable: ForeignNetPayable(totals)}, ForeignNetPayable(totals), nil
	}

	wh := ApplyWithholding(totals, withholdingRate)
	return totals, wh, wh.AdjustedNetPayable, nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, orgCode string, in CreateInvoiceInput) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}

	var foreign bool
	var clientCurrency string
	err = tx.QueryRow(ctx,
		"SELECT is_foreign, currency FROM clients WHERE org_id = $1 AND id = $2 AND is_active = true",
		org.ID, in.ClientID,
	).Scan(&foreign, &clientCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d not found for organization %s", in.ClientID, orgCode)
		}
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}

	exchangeRate := in.ExchangeRate
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}
	currency := org.BaseCurrency
	if foreign {
		currency = clientCurrency
	} else if !exchangeRate.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("exchange rate applies to foreign clients only")
	}

	issueDate := in.IssueDate
	if issueDate == "" {
		issueDate = time.Now().Format("2006-01-02")
	}
	issued, err := time.Parse("2006-01-02", issueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid issue date %q: %w", issueDate, err)
	}

	resolved, inputs, err := resolveLines(ctx, tx, org, in.ClientID, foreign, in.Lines)
	if err != nil {
		return nil, err
	}

	var taxes []CustomTax
	if !foreign {
		taxes, err = loadActiveTaxes(ctx, tx, org.ID)
		if err != nil {
			return nil, err
		}
	}

	totals, wh, netPayable, err := invoiceFinancials(org, foreign, inputs, taxes, in.WithholdingRate)
	if err != nil {
		return nil, err
	}

	number, err := s.sequences.NextInvoiceNumberTx(ctx, tx, org.ID, issued.Year())
	if err != nil {
		return nil, err
	}

	var invoiceID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (org_id, invoice_number, client_id, status, payment_status,
			issue_date, due_date, currency, exchange_rate,
			subtotal_ht, total_vat, total_discount, total_ttc, stamp_duty_amount,
			withholding_rate, withholding_amount, net_payable, notes)
		VALUES ($1, $2, $3, 'validated', 'unpaid', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`, org.ID, number, in.ClientID, issueDate, in.DueDate, currency, exchangeRate,
		totals.SubtotalHT, totals.TotalVAT, totals.TotalDiscount, totals.TotalTTC, totals.StampDuty,
		in.WithholdingRate, wh.Amount, netPayable, in.Notes,
	).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	if err := insertLines(ctx, tx, invoiceID, resolved); err != nil {
		return nil, err
	}
	if err := insertInvoiceTaxes(ctx, tx, invoiceID, totals.AppliedTaxes); err != nil {
		return nil, err
	}
	if err := applyStock(ctx, tx, org, invoiceID, resolved, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice creation: %w", err)
	}
	return s.GetInvoice(ctx, invoiceID)
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []resolvedLine) error {
	for i, rl := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_number, product_id, description,
				quantity, unit_price_ht, vat_rate, discount_percent,
				line_total_ht, line_vat, line_total_ttc, reservation_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, invoiceID, i+1, rl.req.ProductID, rl.req.Description,
			rl.req.Quantity, rl.req.UnitPriceHT, rl.req.VATRate, rl.req.DiscountPercent,
			rl.total.HT, rl.total.VAT, rl.total.TTC, rl.req.ReservationID)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line %d: %w", i+1, err)
		}
	}
	return nil
}

func insertInvoiceTaxes(ctx context.Context, tx pgx.Tx, invoiceID int64, taxes []AppliedTax) error {
	for _, t := range taxes {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_taxes (invoice_id, name, application_type, application_order, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, invoiceID, t.Name, t.Application, t.Order, t.Amount)
		if err != nil {
			return fmt.Errorf("failed to insert invoice tax %q: %w", t.Name, err)
		}
	}
	return nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, orgCode string, invoiceID int64, in UpdateInvoiceInput) (*Invoice, error) {
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
	var paid, oldWithholdingRate, oldExchangeRate, totalCredited decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT client_id, status, paid_amount, withholding_rate, exchange_rate, total_credited
		FROM invoices WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`, org.ID, invoiceID).Scan(&clientID, &status, &paid, &oldWithholdingRate, &oldExchangeRate, &totalCredited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}
	if status == InvoiceStatusCancelled {
		return nil, fmt.Errorf("invoice %d is cancelled and cannot be edited", invoiceID)
	}
	if totalCredited.IsPositive() {
		return nil, fmt.Errorf("invoice %d has credit notes and cannot be edited", invoiceID)
	}

	exchangeRate := in.ExchangeRate
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}
	// Lock rule: once any payment exists, withholding rate and exchange rate
	// are frozen.
	if paid.IsPositive() {
		if !in.WithholdingRate.Equal(oldWithholdingRate) {
			return nil, fmt.Errorf("withholding rate is locked: invoice %d already has payments", invoiceID)
		}
		if !exchangeRate.Equal(oldExchangeRate) {
			return nil, fmt.Errorf("exchange rate is locked: invoice %d already has payments", invoiceID)
		}
	}

	var foreign bool
	if err := tx.QueryRow(ctx, "SELECT is_foreign FROM clients WHERE id = $1", clientID).Scan(&foreign); err != nil {
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}

	// Hand back the stock the persisted lines consumed, remembering the
	// original per-product totals so the shared-stock cap honours them.
	originals, err := restoreStock(ctx, tx, org.ID, invoiceID)
	if err != nil {
		return nil, err
	}

	// Lines are fully replaced on edit.
	if _, err := tx.Exec(ctx, "DELETE FROM invoice_lines WHERE invoice_id = $1", invoiceID); err != nil {
		return nil, fmt.Errorf("failed to delete invoice lines: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM invoice_taxes WHERE invoice_id = $1", invoiceID); err != nil {
		return nil, fmt.Errorf("failed to delete invoice taxes: %w", err)
	}

	resolved, inputs, err := resolveLines(ctx, tx, org, clientID, foreign, in.Lines)
	if err != nil {
		return nil, err
	}

	var taxes []CustomTax
	if !foreign {
		taxes, err = loadActiveTaxes(ctx, tx, org.ID)
		if err != nil {
			return nil, err
		}
	}

	totals, wh, netPayable, err := invoiceFinancials(org, foreign, inputs, taxes, in.WithholdingRate)
	if err != nil {
		return nil, err
	}

	issueDate := in.IssueDate
	if issueDate == "" {
		issueDate = time.Now().Format("2006-01-02")
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET issue_date = $1, due_date = $2, notes = $3, exchange_rate = $4,
		    subtotal_ht = $5, total_vat = $6, total_discount = $7, total_ttc = $8,
		    stamp_duty_amount = $9, withholding_rate = $10, withholding_amount = $11,
		    net_payable = $12, payment_status = $13
		WHERE id = $14
	`, issueDate, in.DueDate, in.Notes, exchangeRate,
		totals.SubtotalHT, totals.TotalVAT, totals.TotalDiscount, totals.TotalTTC,
		totals.StampDuty, in.WithholdingRate, wh.Amount,
		netPayable, PaymentStatusFor(paid, netPayable), invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}

	if err := insertLines(ctx, tx, invoiceID, resolved); err != nil {
		return nil, err
	}
	if err := insertInvoiceTaxes(ctx, tx, invoiceID, totals.AppliedTaxes); err != nil {
		return nil, err
	}
	if err := applyStock(ctx, tx, org, invoiceID, resolved, originals); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice update: %w", err)
	}
	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, orgCode string, invoiceID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return err
	}

	var paid, credited decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT paid_amount, total_credited FROM invoices WHERE org_id = $1 AND id = $2 FOR UPDATE",
		org.ID, invoiceID,
	).Scan(&paid, &credited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %d not found", invoiceID)
		}
		return fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}
	if paid.IsPositive() {
		return fmt.Errorf("invoice %d has payments and cannot be deleted", invoiceID)
	}
	if credited.IsPositive() {
		return fmt.Errorf("invoice %d has credit notes and cannot be deleted", invoiceID)
	}

	if _, err := restoreStock(ctx, tx, org.ID, invoiceID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM invoices WHERE id = $1", invoiceID); err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", invoiceID, err)
	}
	return tx.Commit(ctx)
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	var inv Invoice
	err := s.pool.QueryRow(ctx, `
		SELECT i.id, i.org_id, i.invoice_number, i.client_id, c.name, c.is_foreign,
		       i.status, i.payment_status, i.issue_date::text, i.due_date::text,
		       i.currency, i.exchange_rate,
		       i.subtotal_ht, i.total_vat, i.total_discount, i.total_ttc,
		       i.stamp_duty_amount, i.withholding_rate, i.withholding_amount,
		       i.net_payable, i.paid_amount, i.total_credited, i.credit_note_count,
		       i.notes, i.created_at
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.id = $1
	`, invoiceID).Scan(
		&inv.ID, &inv.OrgID, &inv.InvoiceNumber, &inv.ClientID, &inv.ClientName, &inv.ClientForeign,
		&inv.Status, &inv.PaymentStatus, &inv.IssueDate, &inv.DueDate,
		&inv.Currency, &inv.ExchangeRate,
		&inv.SubtotalHT, &inv.TotalVAT, &inv.TotalDiscount, &inv.TotalTTC,
		&inv.StampDutyAmount, &inv.WithholdingRate, &inv.WithholdingAmount,
		&inv.NetPayable, &inv.PaidAmount, &inv.TotalCredited, &inv.CreditNoteCount,
		&inv.Notes, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	lines, err := fetchInvoiceLines(ctx, s.pool, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines

	taxes, err := fetchInvoiceTaxes(ctx, s.pool, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Taxes = taxes
	return &inv, nil
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, orgCode, number string) (*Invoice, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.pool.QueryRow(ctx,
		"SELECT id FROM invoices WHERE org_id = $1 AND invoice_number = $2",
		org.ID, number,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s not found for organization %s", number, orgCode)
		}
		return nil, fmt.Errorf("failed to look up invoice by number: %w", err)
	}
	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) ListInvoices(ctx context.Context, orgCode string, clientID *int64, paymentStatus *string) ([]Invoice, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT i.id, i.org_id, i.invoice_number, i.client_id, c.name, c.is_foreign,
		       i.status, i.payment_status, i.issue_date::text, i.due_date::text,
		       i.currency, i.exchange_rate,
		       i.subtotal_ht, i.total_vat, i.total_discount, i.total_ttc,
		       i.stamp_duty_amount, i.withholding_rate, i.withholding_amount,
		       i.net_payable, i.paid_amount, i.total_credited, i.credit_note_count,
		       i.notes, i.created_at
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.org_id = $1
	`
	args := []any{org.ID}
	if clientID != nil {
		args = append(args, *clientID)
		query += fmt.Sprintf(" AND i.client_id = $%d", len(args))
	}
	if paymentStatus != nil {
		args = append(args, *paymentStatus)
		query += fmt.Sprintf(" AND i.payment_status = $%d", len(args))
	}
	query += " ORDER BY i.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.ID, &inv.OrgID, &inv.InvoiceNumber, &inv.ClientID, &inv.ClientName, &inv.ClientForeign,
			&inv.Status, &inv.PaymentStatus, &inv.IssueDate, &inv.DueDate,
			&inv.Currency, &inv.ExchangeRate,
			&inv.SubtotalHT, &inv.TotalVAT, &inv.TotalDiscount, &inv.TotalTTC,
			&inv.StampDutyAmount, &inv.WithholdingRate, &inv.WithholdingAmount,
			&inv.NetPayable, &inv.PaidAmount, &inv.TotalCredited, &inv.CreditNoteCount,
			&inv.Notes, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func fetchInvoiceLines(ctx context.Context, q pgxRowQuerier, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, line_number, product_id, description,
		       quantity, unit_price_ht, vat_rate, discount_percent,
		       line_total_ht, line_vat, line_total_ttc, reservation_id
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY line_number
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.LineNumber, &l.ProductID, &l.Description,
			&l.Quantity, &l.UnitPriceHT, &l.VATRate, &l.DiscountPercent,
			&l.LineTotalHT, &l.LineVAT, &l.LineTotalTTC, &l.ReservationID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func fetchInvoiceTaxes(ctx context.Context, q pgxRowQuerier, invoiceID int64) ([]InvoiceTax, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, name, application_type, application_order, amount
		FROM invoice_taxes
		WHERE invoice_id = $1
		ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice taxes: %w", err)
	}
	defer rows.Close()

	var taxes []InvoiceTax
	for rows.Next() {
		var t InvoiceTax
		if err := rows.Scan(&t.ID, &t.InvoiceID, &t.Name, &t.ApplicationType, &t.ApplicationOrder, &t.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice tax: %w", err)
		}
		taxes = append(taxes, t)
	}
	return taxes, nil
}
