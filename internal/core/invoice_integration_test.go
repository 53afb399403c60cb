package core_test

import (
	"context"
	"os"
	"testing"

	"invoicing-backend/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// setupTestDB connects to the dedicated test database and reseeds a clean org
// with one local client, one foreign client, and two products. The schema
// (migrations/001_schema.sql) must already be applied.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE payment_sublines, payments, credit_note_lines, credit_notes,
			invoice_taxes, invoice_lines, invoices, stock_movements, reservations,
			custom_taxes, products, suppliers, clients, number_sequences, organizations
			RESTART IDENTITY CASCADE;

		INSERT INTO organizations (id, org_code, name, base_currency, invoice_prefix,
			stamp_enabled, stamp_amount, withholding_rate, withholding_threshold, max_discount_percent)
		VALUES (1, 'TN01', 'Test Org', 'TND', 'FAC', true, 1.000, 1.5, 1000.000, 50);

		INSERT INTO clients (id, org_id, name, is_foreign, currency) VALUES
		(1, 1, 'Client Local SARL', false, 'TND'),
		(2, 1, 'Overseas GmbH',     true,  'EUR');

		INSERT INTO products (id, org_id, name, unit_price_ht, vat_rate, current_stock) VALUES
		(1, 1, 'Widget',   100.000, 19, 50),
		(2, 1, 'Gadget',    40.000,  7, 5);

		SELECT setval('clients_id_seq', 10);
		SELECT setval('products_id_seq', 10);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

func pid(id int64) *int64 { return &id }

func TestInvoiceService_FullLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sequences := core.NewSequenceService(pool)
	invoices := core.NewInvoiceService(pool, sequences)
	payments := core.NewPaymentService(pool)

	// 1. Create: 2 × Widget @ 100, 19% VAT, stamp 1.000.
	inv, err := invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:  1,
		IssueDate: "2026-03-01",
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if inv.InvoiceNumber != "FAC-2026-00001" {
		t.Errorf("invoice number = %q, want FAC-2026-00001", inv.InvoiceNumber)
	}
	if !inv.SubtotalHT.Equal(decimal.NewFromInt(200)) || !inv.TotalVAT.Equal(decimal.NewFromInt(38)) {
		t.Errorf("totals = %s/%s, want 200/38", inv.SubtotalHT, inv.TotalVAT)
	}
	if !inv.NetPayable.Equal(decimal.NewFromInt(239)) {
		t.Errorf("net payable = %s, want 239 (238 + stamp)", inv.NetPayable)
	}

	// Stock dropped 50 -> 48.
	var stock decimal.Decimal
	if err := pool.QueryRow(ctx, "SELECT current_stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("stock query failed: %v", err)
	}
	if !stock.Equal(decimal.NewFromInt(48)) {
		t.Errorf("stock = %s, want 48", stock)
	}

	// 2. Partial payment.
	_, err = payments.RecordPayment(ctx, "TN01", inv.ID, core.RecordPaymentInput{
		PaymentInput: core.PaymentInput{Method: core.PaymentMethodCash, Amount: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	inv, err = invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if inv.PaymentStatus != core.PaymentStatusPartial {
		t.Errorf("payment status = %s, want partial", inv.PaymentStatus)
	}

	// 3. Edit after payment: changing lines is fine, changing the withholding
	// rate is not.
	_, err = invoices.UpdateInvoice(ctx, "TN01", inv.ID, core.UpdateInvoiceInput{
		IssueDate:       "2026-03-01",
		WithholdingRate: decimal.NewFromFloat(1.5),
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(2)},
		},
	})
	if err == nil {
		t.Error("expected withholding lock error after payment")
	}

	inv, err = invoices.UpdateInvoice(ctx, "TN01", inv.ID, core.UpdateInvoiceInput{
		IssueDate: "2026-03-01",
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(3)},
		},
	})
	if err != nil {
		t.Fatalf("UpdateInvoice failed: %v", err)
	}
	if !inv.SubtotalHT.Equal(decimal.NewFromInt(300)) {
		t.Errorf("subtotal after edit = %s, want 300", inv.SubtotalHT)
	}
	// Stock restored then re-applied: 50 - 3 = 47.
	if err := pool.QueryRow(ctx, "SELECT current_stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("stock query failed: %v", err)
	}
	if !stock.Equal(decimal.NewFromInt(47)) {
		t.Errorf("stock after edit = %s, want 47", stock)
	}

	// 4. Delete is blocked while payments exist.
	if err := invoices.DeleteInvoice(ctx, "TN01", inv.ID); err == nil {
		t.Error("expected delete to fail while a payment exists")
	}
}

func TestInvoiceService_StockEnforcement(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	invoices := core.NewInvoiceService(pool, core.NewSequenceService(pool))

	// Gadget has 5 in stock; two lines of 3 oversubscribe it.
	_, err := invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:  1,
		IssueDate: "2026-03-01",
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(2), Quantity: decimal.NewFromInt(3)},
			{ProductID: pid(2), Quantity: decimal.NewFromInt(3)},
		},
	})
	if err == nil {
		t.Fatal("expected insufficient stock error for 3+3 against 5")
	}

	// 3+2 fits exactly.
	inv, err := invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:  1,
		IssueDate: "2026-03-01",
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(2), Quantity: decimal.NewFromInt(3)},
			{ProductID: pid(2), Quantity: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	var stock decimal.Decimal
	if err := pool.QueryRow(ctx, "SELECT current_stock FROM products WHERE id = 2").Scan(&stock); err != nil {
		t.Fatalf("stock query failed: %v", err)
	}
	if !stock.IsZero() {
		t.Errorf("stock = %s, want 0", stock)
	}

	// Deleting the invoice returns the stock.
	if err := invoices.DeleteInvoice(ctx, "TN01", inv.ID); err != nil {
		t.Fatalf("DeleteInvoice failed: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT current_stock FROM products WHERE id = 2").Scan(&stock); err != nil {
		t.Fatalf("stock query failed: %v", err)
	}
	if !stock.Equal(decimal.NewFromInt(5)) {
		t.Errorf("stock after delete = %s, want 5", stock)
	}
}

func TestInvoiceService_ForeignClient(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	invoices := core.NewInvoiceService(pool, core.NewSequenceService(pool))

	inv, err := invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:     2,
		IssueDate:    "2026-03-01",
		ExchangeRate: decimal.NewFromFloat(3.4),
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if !inv.TotalVAT.IsZero() || !inv.StampDutyAmount.IsZero() {
		t.Errorf("foreign invoice got VAT %s stamp %s, want zero", inv.TotalVAT, inv.StampDutyAmount)
	}
	if !inv.NetPayable.Equal(decimal.NewFromInt(200)) {
		t.Errorf("net payable = %s, want 200", inv.NetPayable)
	}
	if inv.Currency != "EUR" {
		t.Errorf("currency = %s, want EUR", inv.Currency)
	}

	// Withholding on a foreign client is rejected.
	_, err = invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:        2,
		IssueDate:       "2026-03-01",
		WithholdingRate: decimal.NewFromFloat(1.5),
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(1)},
		},
	})
	if err == nil {
		t.Error("expected error applying withholding to a foreign client")
	}
}

func TestCreditNoteService_RemainingBalance(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sequences := core.NewSequenceService(pool)
	invoices := core.NewInvoiceService(pool, sequences)
	creditNotes := core.NewCreditNoteService(pool, sequences)

	inv, err := invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:  1,
		IssueDate: "2026-03-01",
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	// 200/38/238 + stamp = 239.

	// First credit: target half the HT.
	cn, err := creditNotes.CreateCreditNote(ctx, "TN01", inv.ID, core.CreateCreditNoteInput{
		Mode:          core.CreditModeTotalTarget,
		TargetTotalHT: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateCreditNote failed: %v", err)
	}
	if cn.CreditNoteNumber != "AV-2026-00001" {
		t.Errorf("credit note number = %q, want AV-2026-00001", cn.CreditNoteNumber)
	}
	if !cn.SubtotalHT.Equal(decimal.NewFromInt(100)) || !cn.TotalVAT.Equal(decimal.NewFromInt(19)) {
		t.Errorf("new totals = %s/%s, want 100/19", cn.SubtotalHT, cn.TotalVAT)
	}
	// New payable 119 + stamp = 120; credit = 239 - 120 = 119.
	if !cn.CreditAmount.Equal(decimal.NewFromInt(119)) {
		t.Errorf("credit amount = %s, want 119", cn.CreditAmount)
	}

	// Second credit operates on the remainder (100 HT left).
	cn2, err := creditNotes.CreateCreditNote(ctx, "TN01", inv.ID, core.CreateCreditNoteInput{
		Mode:          core.CreditModeTotalTarget,
		TargetTotalHT: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("second CreateCreditNote failed: %v", err)
	}
	if !cn2.SubtotalHT.Equal(decimal.NewFromInt(50)) {
		t.Errorf("second credit new HT = %s, want 50", cn2.SubtotalHT)
	}

	inv, err = invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if inv.CreditNoteCount != 2 {
		t.Errorf("credit note count = %d, want 2", inv.CreditNoteCount)
	}
}

func TestPaymentService_BalanceBuckets(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sequences := core.NewSequenceService(pool)
	invoices := core.NewInvoiceService(pool, sequences)
	payments := core.NewPaymentService(pool)
	clients := core.NewClientService(pool)

	// Seed the two buckets: 50 credit, 40 deposit.
	if _, err := pool.Exec(ctx, "UPDATE clients SET credit_balance = 50, deposit_balance = 40 WHERE id = 1"); err != nil {
		t.Fatalf("failed to seed balances: %v", err)
	}

	inv, err := invoices.CreateInvoice(ctx, "TN01", core.CreateInvoiceInput{
		ClientID:  1,
		IssueDate: "2026-03-01",
		Lines: []core.InvoiceLineRequest{
			{ProductID: pid(1), Quantity: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	// Balance payment of 80: 50 from credit, 30 from deposit.
	p, err := payments.RecordPayment(ctx, "TN01", inv.ID, core.RecordPaymentInput{
		PaymentInput: core.PaymentInput{Method: core.PaymentMethodBalance, Amount: decimal.NewFromInt(80)},
	})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if !p.CreditBalanceUsed.Equal(decimal.NewFromInt(50)) || !p.DepositBalanceUsed.Equal(decimal.NewFromInt(30)) {
		t.Errorf("draw = %s/%s, want 50/30", p.CreditBalanceUsed, p.DepositBalanceUsed)
	}

	c, err := clients.GetClient(ctx, 1)
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if !c.CreditBalance.IsZero() || !c.DepositBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balances = %s/%s, want 0/10", c.CreditBalance, c.DepositBalance)
	}

	// Deleting the payment restores each bucket.
	if err := payments.DeletePayment(ctx, "TN01", p.ID); err != nil {
		t.Fatalf("DeletePayment failed: %v", err)
	}
	c, err = clients.GetClient(ctx, 1)
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if !c.CreditBalance.Equal(decimal.NewFromInt(50)) || !c.DepositBalance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balances after delete = %s/%s, want 50/40", c.CreditBalance, c.DepositBalance)
	}
}
