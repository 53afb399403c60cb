package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusValidated InvoiceStatus = "validated"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Invoice is the persisted invoice header. All monetary totals are derivable
// from the lines plus stamp duty and custom taxes minus withholding; the
// services recompute them on every write rather than trusting stored values.
type Invoice struct {
	ID                int64           `json:"id"`
	OrgID             int             `json:"org_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	ClientID          int64           `json:"client_id"`
	ClientName        string          `json:"client_name"` // joined from clients
	ClientForeign     bool            `json:"client_foreign"`
	Status            InvoiceStatus   `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	IssueDate         string          `json:"issue_date"` // YYYY-MM-DD
	DueDate           *string         `json:"due_date,omitempty"`
	Currency          string          `json:"currency"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	SubtotalHT        decimal.Decimal `json:"subtotal_ht"`
	TotalVAT          decimal.Decimal `json:"total_vat"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	TotalTTC          decimal.Decimal `json:"total_ttc"`
	StampDutyAmount   decimal.Decimal `json:"stamp_duty_amount"`
	WithholdingRate   decimal.Decimal `json:"withholding_rate"`
	WithholdingAmount decimal.Decimal `json:"withholding_amount"`
	NetPayable        decimal.Decimal `json:"net_payable"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	TotalCredited     decimal.Decimal `json:"total_credited"`
	CreditNoteCount   int             `json:"credit_note_count"`
	Notes             string          `json:"notes"`
	Lines             []InvoiceLine   `json:"lines"`
	Taxes             []InvoiceTax    `json:"taxes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// InvoiceLine belongs to exactly one invoice. The three derived totals are a
// deterministic function of quantity, unit price, VAT rate, discount and the
// client's foreign flag.
type InvoiceLine struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	LineNumber      int             `json:"line_number"`
	ProductID       *int64          `json:"product_id,omitempty"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPriceHT     decimal.Decimal `json:"unit_price_ht"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotalHT     decimal.Decimal `json:"line_total_ht"`
	LineVAT         decimal.Decimal `json:"line_vat"`
	LineTotalTTC    decimal.Decimal `json:"line_total_ttc"`
	ReservationID   *int64          `json:"reservation_id,omitempty"`
}

// InvoiceTax is a custom tax applied to one invoice, with the computed amount
// frozen at invoice time.
type InvoiceTax struct {
	ID               int64           `json:"id"`
	InvoiceID        int64           `json:"invoice_id"`
	Name             string          `json:"name"`
	ApplicationType  TaxApplication  `json:"application_type"`
	ApplicationOrder TaxOrder        `json:"application_order"`
	Amount           decimal.Decimal `json:"amount"`
}

// CreditNote reduces a previously issued invoice's payable amount. Credit
// notes are append-only: each operates on the invoice's remaining balance
// (original minus previously credited), never on the original amounts.
type CreditNote struct {
	ID                int64            `json:"id"`
	OrgID             int              `json:"org_id"`
	InvoiceID         int64            `json:"invoice_id"`
	CreditNoteNumber  string           `json:"credit_note_number"`
	Mode              CreditMode       `json:"mode"`
	SubtotalHT        decimal.Decimal  `json:"subtotal_ht"`
	TotalVAT          decimal.Decimal  `json:"total_vat"`
	TotalTTC          decimal.Decimal  `json:"total_ttc"`
	WithholdingRate   decimal.Decimal  `json:"withholding_rate"`
	WithholdingAmount decimal.Decimal  `json:"withholding_amount"`
	NewNetPayable     decimal.Decimal  `json:"new_net_payable"`
	CreditAmount      decimal.Decimal  `json:"credit_amount"`
	FinancialCredit   decimal.Decimal  `json:"financial_credit"`
	Reason            string           `json:"reason"`
	Lines             []CreditNoteLine `json:"lines"`
	CreatedAt         time.Time        `json:"created_at"`
}

// CreditNoteLine records the amounts credited against one invoice line.
type CreditNoteLine struct {
	ID            int64           `json:"id"`
	CreditNoteID  int64           `json:"credit_note_id"`
	InvoiceLineID int64           `json:"invoice_line_id"`
	VATRate       decimal.Decimal `json:"vat_rate"`
	CreditedHT    decimal.Decimal `json:"credited_ht"`
	CreditedVAT   decimal.Decimal `json:"credited_vat"`
	CreditedTTC   decimal.Decimal `json:"credited_ttc"`
}

// Payment is one payment recorded against an invoice. Mixed payments carry
// sub-lines; balance payments record how much was drawn from each of the
// client's balance buckets.
type Payment struct {
	ID                 int64            `json:"id"`
	OrgID              int              `json:"org_id"`
	InvoiceID          int64            `json:"invoice_id"`
	Method             PaymentMethod    `json:"method"`
	Amount             decimal.Decimal  `json:"amount"`
	PaymentDate        string           `json:"payment_date"` // YYYY-MM-DD
	Reference          string           `json:"reference"`
	CreditBalanceUsed  decimal.Decimal  `json:"credit_balance_used"`
	DepositBalanceUsed decimal.Decimal  `json:"deposit_balance_used"`
	SubLines           []PaymentSubLine `json:"sub_lines,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}
