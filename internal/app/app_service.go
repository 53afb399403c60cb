package app

import (
	"context"
	"encoding/json"
	"fmt"

	"invoicing-backend/internal/ai"
	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

type appService struct {
	orgs        core.OrgService
	invoices    core.InvoiceService
	creditNotes core.CreditNoteService
	payments    core.PaymentService
	clients     core.ClientService
	suppliers   core.SupplierService
	products    core.ProductService
	agent       ai.AgentService
}

// NewAppService constructs an appService that satisfies ApplicationService.
// agent may be nil; the AI operations then return a descriptive error.
func NewAppService(
	orgs core.OrgService,
	invoices core.InvoiceService,
	creditNotes core.CreditNoteService,
	payments core.PaymentService,
	clients core.ClientService,
	suppliers core.SupplierService,
	products core.ProductService,
	agent ai.AgentService,
) ApplicationService {
	return &appService{
		orgs:        orgs,
		invoices:    invoices,
		creditNotes: creditNotes,
		payments:    payments,
		clients:     clients,
		suppliers:   suppliers,
		products:    products,
		agent:       agent,
	}
}

func (s *appService) GetOrganization(ctx context.Context, orgCode string) (*core.Organization, error) {
	return s.orgs.GetOrganization(ctx, orgCode)
}

func (s *appService) UpdateSettings(ctx context.Context, orgCode string, in core.OrgSettingsInput) (*core.Organization, error) {
	return s.orgs.UpdateSettings(ctx, orgCode, in)
}

func (s *appService) ListCustomTaxes(ctx context.Context, orgCode string) ([]core.CustomTax, error) {
	return s.orgs.ListCustomTaxes(ctx, orgCode)
}

func (s *appService) AddCustomTax(ctx context.Context, orgCode string, in core.CustomTaxInput) error {
	return s.orgs.AddCustomTax(ctx, orgCode, in)
}

func (s *appService) RemoveCustomTax(ctx context.Context, orgCode, name string) error {
	return s.orgs.RemoveCustomTax(ctx, orgCode, name)
}

func (s *appService) CreateInvoice(ctx context.Context, orgCode string, in core.CreateInvoiceInput) (*core.Invoice, error) {
	return s.invoices.CreateInvoice(ctx, orgCode, in)
}

func (s *appService) UpdateInvoice(ctx context.Context, orgCode string, invoiceID int64, in core.UpdateInvoiceInput) (*core.Invoice, error) {
	return s.invoices.UpdateInvoice(ctx, orgCode, invoiceID, in)
}

func (s *appService) DeleteInvoice(ctx context.Context, orgCode string, invoiceID int64) error {
	return s.invoices.DeleteInvoice(ctx, orgCode, invoiceID)
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int64) (*core.Invoice, error) {
	return s.invoices.GetInvoice(ctx, invoiceID)
}

func (s *appService) ListInvoices(ctx context.Context, orgCode string, clientID *int64, paymentStatus *string) ([]core.Invoice, error) {
	return s.invoices.ListInvoices(ctx, orgCode, clientID, paymentStatus)
}

// PreviewInvoiceTotals runs the pure calculators over unsaved lines: the live
// totals panel of the invoice form, with no writes.
func (s *appService) PreviewInvoiceTotals(ctx context.Context, orgCode string, clientID int64, lines []core.LineInput, withholdingRate decimal.Decimal) (*InvoicePreviewResult, error) {
	org, err := s.orgs.GetOrganization(ctx, orgCode)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for i, l := range lines {
		if err := core.ValidateLineInput(l, org.MaxDiscountPercent); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	var taxes []core.CustomTax
	if !client.Foreign {
		taxes, err = s.orgs.ListCustomTaxes(ctx, orgCode)
		if err != nil {
			return nil, err
		}
	}
	totals := core.AggregateTotals(lines, client.Foreign,
		core.StampDuty{Enabled: org.StampEnabled, Amount: org.StampAmount}, taxes)

	result := &InvoicePreviewResult{Totals: totals}
	if client.Foreign {
		if withholdingRate.IsPositive() {
			return nil, fmt.Errorf("withholding does not apply to foreign clients")
		}
		result.NetPayable = core.ForeignNetPayable(totals)
		result.Withholding = core.WithholdingResult{AdjustedNetPayable: result.NetPayable}
	} else {
		result.Withholding = core.ApplyWithholding(totals, withholdingRate)
		result.NetPayable = result.Withholding.AdjustedNetPayable
	}
	return result, nil
}

func (s *appService) PreviewCreditNote(ctx context.Context, orgCode string, invoiceID int64, in core.CreateCreditNoteInput) (*core.CreditNotePreview, error) {
	return s.creditNotes.PreviewCreditNote(ctx, orgCode, invoiceID, in)
}

func (s *appService) CreateCreditNote(ctx context.Context, orgCode string, invoiceID int64, in core.CreateCreditNoteInput) (*core.CreditNote, error) {
	return s.creditNotes.CreateCreditNote(ctx, orgCode, invoiceID, in)
}

func (s *appService) GetCreditNote(ctx context.Context, creditNoteID int64) (*core.CreditNote, error) {
	return s.creditNotes.GetCreditNote(ctx, creditNoteID)
}

func (s *appService) ListCreditNotes(ctx context.Context, invoiceID int64) ([]core.CreditNote, error) {
	return s.creditNotes.ListCreditNotes(ctx, invoiceID)
}

func (s *appService) RecordPayment(ctx context.Context, orgCode string, invoiceID int64, in core.RecordPaymentInput) (*core.Payment, error) {
	return s.payments.RecordPayment(ctx, orgCode, invoiceID, in)
}

func (s *appService) DeletePayment(ctx context.Context, orgCode string, paymentID int64) error {
	return s.payments.DeletePayment(ctx, orgCode, paymentID)
}

func (s *appService) ListPayments(ctx context.Context, invoiceID int64) ([]core.Payment, error) {
	return s.payments.ListPayments(ctx, invoiceID)
}

func (s *appService) CreateClient(ctx context.Context, orgCode string, in core.ClientInput) (*core.Client, error) {
	return s.clients.CreateClient(ctx, orgCode, in)
}

func (s *appService) UpdateClient(ctx context.Context, orgCode string, clientID int64, in core.ClientInput) (*core.Client, error) {
	return s.clients.UpdateClient(ctx, orgCode, clientID, in)
}

func (s *appService) DeactivateClient(ctx context.Context, orgCode string, clientID int64) error {
	return s.clients.DeactivateClient(ctx, orgCode, clientID)
}

func (s *appService) GetClient(ctx context.Context, clientID int64) (*core.Client, error) {
	return s.clients.GetClient(ctx, clientID)
}

func (s *appService) ListClients(ctx context.Context, orgCode string, includeInactive bool) ([]core.Client, error) {
	return s.clients.ListClients(ctx, orgCode, includeInactive)
}

func (s *appService) RecordDeposit(ctx context.Context, orgCode string, clientID int64, amount decimal.Decimal, notes string) (*core.Client, error) {
	return s.clients.RecordDeposit(ctx, orgCode, clientID, amount, notes)
}

func (s *appService) CreateSupplier(ctx context.Context, orgCode string, in core.SupplierInput) (*core.Supplier, error) {
	return s.suppliers.CreateSupplier(ctx, orgCode, in)
}

func (s *appService) UpdateSupplier(ctx context.Context, orgCode string, supplierID int64, in core.SupplierInput) (*core.Supplier, error) {
	return s.suppliers.UpdateSupplier(ctx, orgCode, supplierID, in)
}

func (s *appService) DeactivateSupplier(ctx context.Context, orgCode string, supplierID int64) error {
	return s.suppliers.DeactivateSupplier(ctx, orgCode, supplierID)
}

func (s *appService) GetSupplier(ctx context.Context, supplierID int64) (*core.Supplier, error) {
	return s.suppliers.GetSupplier(ctx, supplierID)
}

func (s *appService) ListSuppliers(ctx context.Context, orgCode string, includeInactive bool) ([]core.Supplier, error) {
	return s.suppliers.ListSuppliers(ctx, orgCode, includeInactive)
}

func (s *appService) CreateProduct(ctx context.Context, orgCode string, in core.ProductInput, initialStock decimal.Decimal) (*core.Product, error) {
	return s.products.CreateProduct(ctx, orgCode, in, initialStock)
}

func (s *appService) UpdateProduct(ctx context.Context, orgCode string, productID int64, in core.ProductInput) (*core.Product, error) {
	return s.products.UpdateProduct(ctx, orgCode, productID, in)
}

func (s *appService) DeactivateProduct(ctx context.Context, orgCode string, productID int64) error {
	return s.products.DeactivateProduct(ctx, orgCode, productID)
}

func (s *appService) GetProduct(ctx context.Context, productID int64) (*core.Product, error) {
	return s.products.GetProduct(ctx, productID)
}

func (s *appService) ListProducts(ctx context.Context, orgCode string, includeInactive bool) ([]core.Product, error) {
	return s.products.ListProducts(ctx, orgCode, includeInactive)
}

func (s *appService) AdjustStock(ctx context.Context, orgCode string, productID int64, delta decimal.Decimal, notes string) (*core.Product, error) {
	return s.products.AdjustStock(ctx, orgCode, productID, delta, notes)
}

func (s *appService) ListStockMovements(ctx context.Context, orgCode string, productID int64) ([]core.StockMovement, error) {
	return s.products.ListStockMovements(ctx, orgCode, productID)
}

func (s *appService) ReserveStock(ctx context.Context, orgCode string, clientID, productID int64, quantity decimal.Decimal) (*core.Reservation, error) {
	return s.products.ReserveStock(ctx, orgCode, clientID, productID, quantity)
}

func (s *appService) CancelReservation(ctx context.Context, orgCode string, reservationID int64) error {
	return s.products.CancelReservation(ctx, orgCode, reservationID)
}

func (s *appService) ListReservations(ctx context.Context, orgCode string, clientID *int64) ([]core.Reservation, error) {
	return s.products.ListReservations(ctx, orgCode, clientID)
}

func (s *appService) GenerateInvoiceDraft(ctx context.Context, orgCode, request string) (*InvoiceDraftResult, error) {
	if s.agent == nil {
		return nil, fmt.Errorf("AI assistant is not configured")
	}

	clients, err := s.clients.ListClients(ctx, orgCode, false)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListProducts(ctx, orgCode, false)
	if err != nil {
		return nil, err
	}

	draft, err := s.agent.GenerateInvoice(ctx, request,
		clientCatalog(clients), productCatalog(products))
	if err != nil {
		return nil, err
	}

	lines, err := ai.ResolveDraftLines(draft, products)
	if err != nil {
		return nil, err
	}

	result := &InvoiceDraftResult{Draft: draft, Lines: lines}
	if client := ai.ResolveDraftClient(draft, clients); client != nil {
		result.Client = client
		result.Request = &core.CreateInvoiceInput{
			ClientID:  client.ID,
			IssueDate: draft.IssueDate,
			Notes:     draft.Notes,
			Lines:     lines,
		}
	}
	return result, nil
}

func (s *appService) SearchInvoices(ctx context.Context, orgCode, query string) (*InvoiceSearchResult, error) {
	if s.agent == nil {
		return nil, fmt.Errorf("AI assistant is not configured")
	}

	invoices, err := s.invoices.ListInvoices(ctx, orgCode, nil, nil)
	if err != nil {
		return nil, err
	}

	index, err := invoiceIndex(invoices)
	if err != nil {
		return nil, err
	}
	found, err := s.agent.SearchInvoices(ctx, query, index)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]core.Invoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}
	result := &InvoiceSearchResult{Explanation: found.Explanation}
	for _, id := range found.FilteredInvoiceIDs {
		if inv, ok := byID[id]; ok {
			result.Invoices = append(result.Invoices, inv)
		}
	}
	return result, nil
}

func (s *appService) SearchSuppliers(ctx context.Context, orgCode, query string) (*SupplierSearchResult, error) {
	if s.agent == nil {
		return nil, fmt.Errorf("AI assistant is not configured")
	}

	suppliers, err := s.suppliers.ListSuppliers(ctx, orgCode, false)
	if err != nil {
		return nil, err
	}

	index, err := supplierIndex(suppliers)
	if err != nil {
		return nil, err
	}
	found, err := s.agent.SearchSuppliers(ctx, query, index)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]core.Supplier, len(suppliers))
	for _, sp := range suppliers {
		byID[sp.ID] = sp
	}
	result := &SupplierSearchResult{Explanation: found.Explanation}
	for _, id := range found.FilteredSupplierIDs {
		if sp, ok := byID[id]; ok {
			result.Suppliers = append(result.Suppliers, sp)
		}
	}
	return result, nil
}

// clientCatalog renders the client list for the model prompt.
func clientCatalog(clients []core.Client) string {
	out := ""
	for _, c := range clients {
		kind := "local"
		if c.Foreign {
			kind = "foreign, " + c.Currency
		}
		out += fmt.Sprintf("- %s (%s)\n", c.Name, kind)
	}
	return out
}

// productCatalog renders the product list with prices and VAT rates.
func productCatalog(products []core.Product) string {
	out := ""
	for _, p := range products {
		out += fmt.Sprintf("- %s: %s HT, VAT %s%%\n", p.Name, p.UnitPriceHT.StringFixed(3), p.VATRate)
	}
	return out
}

// invoiceIndex serializes the searchable invoice fields as compact JSON.
func invoiceIndex(invoices []core.Invoice) (string, error) {
	type entry struct {
		ID            int64  `json:"id"`
		Number        string `json:"number"`
		Client        string `json:"client"`
		IssueDate     string `json:"issue_date"`
		TotalTTC      string `json:"total_ttc"`
		NetPayable    string `json:"net_payable"`
		PaymentStatus string `json:"payment_status"`
		Notes         string `json:"notes,omitempty"`
	}
	entries := make([]entry, 0, len(invoices))
	for _, inv := range invoices {
		entries = append(entries, entry{
			ID:            inv.ID,
			Number:        inv.InvoiceNumber,
			Client:        inv.ClientName,
			IssueDate:     inv.IssueDate,
			TotalTTC:      inv.TotalTTC.StringFixed(3),
			NetPayable:    inv.NetPayable.StringFixed(3),
			PaymentStatus: string(inv.PaymentStatus),
			Notes:         inv.Notes,
		})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to build invoice index: %w", err)
	}
	return string(b), nil
}

// supplierIndex serializes the searchable supplier fields as compact JSON.
func supplierIndex(suppliers []core.Supplier) (string, error) {
	type entry struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category,omitempty"`
		Notes    string `json:"notes,omitempty"`
	}
	entries := make([]entry, 0, len(suppliers))
	for _, sp := range suppliers {
		entries = append(entries, entry{ID: sp.ID, Name: sp.Name, Category: sp.Category, Notes: sp.Notes})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to build supplier index: %w", err)
	}
	return string(b), nil
}
