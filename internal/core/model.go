package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Organization holds org-level billing configuration: fiscal stamp settings,
// default withholding, the invoice numbering prefix, and the base currency
// used for foreign-invoice conversion (TND).
type Organization struct {
	ID                   int             `json:"id"`
	OrgCode              string          `json:"org_code"`
	Name                 string          `json:"name"`
	BaseCurrency         string          `json:"base_currency"`
	InvoicePrefix        string          `json:"invoice_prefix"`
	StampEnabled         bool            `json:"stamp_enabled"`
	StampAmount          decimal.Decimal `json:"stamp_amount"`
	WithholdingRate      decimal.Decimal `json:"withholding_rate"`
	WithholdingThreshold decimal.Decimal `json:"withholding_threshold"`
	MaxDiscountPercent   decimal.Decimal `json:"max_discount_percent"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Client is a billing customer. Foreign clients are invoiced without VAT,
// stamp duty, or withholding, in their own currency.
//
// CreditBalance and DepositBalance are provenance buckets of the client's
// account balance: the first accumulates refunds from credit notes, the second
// direct deposits. Balance payments draw against each bucket independently.
type Client struct {
	ID             int64           `json:"id"`
	OrgID          int             `json:"org_id"`
	Name           string          `json:"name"`
	TaxID          string          `json:"tax_id"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	Foreign        bool            `json:"is_foreign"`
	Currency       string          `json:"currency"`
	CreditBalance  decimal.Decimal `json:"credit_balance"`
	DepositBalance decimal.Decimal `json:"deposit_balance"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Supplier is a purchasing counterparty, managed as master data and searchable
// through the AI supplier search.
type Supplier struct {
	ID        int64     `json:"id"`
	OrgID     int       `json:"org_id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Category  string    `json:"category"`
	Notes     string    `json:"notes"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a sellable item. The stock fields feed the stock constraint
// solver: UnlimitedStock and AllowOutOfStockSale both exempt the product from
// quantity clamping.
type Product struct {
	ID                  int64           `json:"id"`
	OrgID               int             `json:"org_id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	UnitPriceHT         decimal.Decimal `json:"unit_price_ht"`
	VATRate             decimal.Decimal `json:"vat_rate"`
	CurrentStock        decimal.Decimal `json:"current_stock"`
	ReservedStock       decimal.Decimal `json:"reserved_stock"`
	UnlimitedStock      bool            `json:"unlimited_stock"`
	AllowOutOfStockSale bool            `json:"allow_out_of_stock_sale"`
	IsActive            bool            `json:"is_active"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Reservation is a pre-allocated stock hold for a client. An invoice line
// backed by a reservation carries the reserved quantity as a fixed,
// non-editable cap and is exempt from stock clamping.
type Reservation struct {
	ID        int64           `json:"id"`
	OrgID     int             `json:"org_id"`
	ClientID  int64           `json:"client_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    string          `json:"status"` // 'active', 'consumed', 'cancelled'
	CreatedAt time.Time       `json:"created_at"`
}

// StockMovement is an audit record of every stock mutation.
type StockMovement struct {
	ID           int64           `json:"id"`
	OrgID        int             `json:"org_id"`
	ProductID    int64           `json:"product_id"`
	InvoiceID    *int64          `json:"invoice_id,omitempty"`
	MovementType string          `json:"movement_type"` // OUT, RETURN, ADJUSTMENT, RESERVATION, RESERVATION_RELEASE
	Quantity     decimal.Decimal `json:"quantity"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
}
