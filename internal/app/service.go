package app

import (
	"context"

	"invoicing-backend/internal/ai"
	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface every adapter (HTTP, CLI) calls.
// It decouples presentation from business logic: implementations contain no
// response formatting and no display logic of any kind.
type ApplicationService interface {
	// GetOrganization returns the org's billing configuration.
	GetOrganization(ctx context.Context, orgCode string) (*core.Organization, error)

	// UpdateSettings replaces the org's billing configuration.
	UpdateSettings(ctx context.Context, orgCode string, in core.OrgSettingsInput) (*core.Organization, error)

	// ListCustomTaxes returns the org's active custom taxes in application order.
	ListCustomTaxes(ctx context.Context, orgCode string) ([]core.CustomTax, error)

	// AddCustomTax registers a new custom tax; it applies to future invoices only.
	AddCustomTax(ctx context.Context, orgCode string, in core.CustomTaxInput) error

	// RemoveCustomTax deactivates a custom tax by name.
	RemoveCustomTax(ctx context.Context, orgCode, name string) error

	// Invoices.
	CreateInvoice(ctx context.Context, orgCode string, in core.CreateInvoiceInput) (*core.Invoice, error)
	UpdateInvoice(ctx context.Context, orgCode string, invoiceID int64, in core.UpdateInvoiceInput) (*core.Invoice, error)
	DeleteInvoice(ctx context.Context, orgCode string, invoiceID int64) error
	GetInvoice(ctx context.Context, invoiceID int64) (*core.Invoice, error)
	ListInvoices(ctx context.Context, orgCode string, clientID *int64, paymentStatus *string) ([]core.Invoice, error)

	// PreviewInvoiceTotals computes totals for unsaved lines without writing
	// anything — the live recalculation behind the invoice form.
	PreviewInvoiceTotals(ctx context.Context, orgCode string, clientID int64, lines []core.LineInput, withholdingRate decimal.Decimal) (*InvoicePreviewResult, error)

	// Credit notes.
	PreviewCreditNote(ctx context.Context, orgCode string, invoiceID int64, in core.CreateCreditNoteInput) (*core.CreditNotePreview, error)
	CreateCreditNote(ctx context.Context, orgCode string, invoiceID int64, in core.CreateCreditNoteInput) (*core.CreditNote, error)
	GetCreditNote(ctx context.Context, creditNoteID int64) (*core.CreditNote, error)
	ListCreditNotes(ctx context.Context, invoiceID int64) ([]core.CreditNote, error)

	// Payments.
	RecordPayment(ctx context.Context, orgCode string, invoiceID int64, in core.RecordPaymentInput) (*core.Payment, error)
	DeletePayment(ctx context.Context, orgCode string, paymentID int64) error
	ListPayments(ctx context.Context, invoiceID int64) ([]core.Payment, error)

	// Clients.
	CreateClient(ctx context.Context, orgCode string, in core.ClientInput) (*core.Client, error)
	UpdateClient(ctx context.Context, orgCode string, clientID int64, in core.ClientInput) (*core.Client, error)
	DeactivateClient(ctx context.Context, orgCode string, clientID int64) error
	GetClient(ctx context.Context, clientID int64) (*core.Client, error)
	ListClients(ctx context.Context, orgCode string, includeInactive bool) ([]core.Client, error)
	RecordDeposit(ctx context.Context, orgCode string, clientID int64, amount decimal.Decimal, notes string) (*core.Client, error)

	// Suppliers.
	CreateSupplier(ctx context.Context, orgCode string, in core.SupplierInput) (*core.Supplier, error)
	UpdateSupplier(ctx context.Context, orgCode string, supplierID int64, in core.SupplierInput) (*core.Supplier, error)
	DeactivateSupplier(ctx context.Context, orgCode string, supplierID int64) error
	GetSupplier(ctx context.Context, supplierID int64) (*core.Supplier, error)
	ListSuppliers(ctx context.Context, orgCode string, includeInactive bool) ([]core.Supplier, error)

	// Products, stock, reservations.
	CreateProduct(ctx context.Context, orgCode string, in core.ProductInput, initialStock decimal.Decimal) (*core.Product, error)
	UpdateProduct(ctx context.Context, orgCode string, productID int64, in core.ProductInput) (*core.Product, error)
	DeactivateProduct(ctx context.Context, orgCode string, productID int64) error
	GetProduct(ctx context.Context, productID int64) (*core.Product, error)
	ListProducts(ctx context.Context, orgCode string, includeInactive bool) ([]core.Product, error)
	AdjustStock(ctx context.Context, orgCode string, productID int64, delta decimal.Decimal, notes string) (*core.Product, error)
	ListStockMovements(ctx context.Context, orgCode string, productID int64) ([]core.StockMovement, error)
	ReserveStock(ctx context.Context, orgCode string, clientID, productID int64, quantity decimal.Decimal) (*core.Reservation, error)
	CancelReservation(ctx context.Context, orgCode string, reservationID int64) error
	ListReservations(ctx context.Context, orgCode string, clientID *int64) ([]core.Reservation, error)

	// GenerateInvoiceDraft interprets a natural-language request into a draft
	// with client and product names resolved against master data. Nothing is
	// persisted; the operator confirms via CreateInvoice.
	GenerateInvoiceDraft(ctx context.Context, orgCode, request string) (*InvoiceDraftResult, error)

	// SearchInvoices answers a natural-language query with matching invoices.
	SearchInvoices(ctx context.Context, orgCode, query string) (*InvoiceSearchResult, error)

	// SearchSuppliers answers a natural-language query with matching suppliers.
	SearchSuppliers(ctx context.Context, orgCode, query string) (*SupplierSearchResult, error)
}

// InvoicePreviewResult is returned by PreviewInvoiceTotals.
type InvoicePreviewResult struct {
	Totals      core.InvoiceTotals     `json:"totals"`
	Withholding core.WithholdingResult `json:"withholding"`
	NetPayable  decimal.Decimal        `json:"net_payable"`
}

// InvoiceDraftResult is returned by GenerateInvoiceDraft: the raw model draft
// plus the resolved create request when client and products matched.
type InvoiceDraftResult struct {
	Draft   *ai.InvoiceDraft          `json:"draft"`
	Client  *core.Client              `json:"client,omitempty"`
	Request *core.CreateInvoiceInput  `json:"request,omitempty"`
	Lines   []core.InvoiceLineRequest `json:"lines"`
}

// InvoiceSearchResult is returned by SearchInvoices.
type InvoiceSearchResult struct {
	Invoices    []core.Invoice `json:"invoices"`
	Explanation string         `json:"explanation"`
}

// SupplierSearchResult is returned by SearchSuppliers.
type SupplierSearchResult struct {
	Suppliers   []core.Supplier `json:"suppliers"`
	Explanation string          `json:"explanation"`
}
