package ai

import (
	"context"
	"fmt"
)

// InvoiceSearchResult is the structured answer to a natural-language invoice
// search: the matching invoice IDs plus a human-readable explanation of how
// the query was interpreted.
type InvoiceSearchResult struct {
	FilteredInvoiceIDs []int64 `json:"filtered_invoice_ids" jsonschema_description:"IDs of the invoices matching the query, empty when none match"`
	Explanation        string  `json:"explanation" jsonschema_description:"Short explanation of how the query was interpreted"`
}

// SupplierSearchResult mirrors InvoiceSearchResult for supplier queries.
type SupplierSearchResult struct {
	FilteredSupplierIDs []int64 `json:"filtered_supplier_ids" jsonschema_description:"IDs of the suppliers matching the query, empty when none match"`
	Explanation         string  `json:"explanation" jsonschema_description:"Short explanation of how the query was interpreted"`
}

// SearchInvoices interprets a natural-language query against a compact JSON
// index of the org's invoices (id, number, client, dates, totals, statuses)
// and returns the matching IDs. The index is built by the caller so the model
// never sees more than the queried org's data.
func (a *Agent) SearchInvoices(ctx context.Context, query string, invoiceIndex string) (*InvoiceSearchResult, error) {
	prompt := fmt.Sprintf(`You are a search assistant for a billing application.
Given the invoice index below, return the IDs of the invoices matching the query.
Rules:
1. Return ONLY IDs present in the index.
2. Interpret dates, amounts, client names, and payment statuses from the query.
3. When nothing matches, return an empty list and say so in the explanation.

Invoice index:
%s

Query: %s`, invoiceIndex, query)

	var result InvoiceSearchResult
	if err := a.structured(ctx, prompt, "invoice_search_result",
		"Invoice IDs matching a natural-language search query", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchSuppliers interprets a natural-language query against a JSON index of
// the org's suppliers (id, name, category, notes).
func (a *Agent) SearchSuppliers(ctx context.Context, query string, supplierIndex string) (*SupplierSearchResult, error) {
	prompt := fmt.Sprintf(`You are a search assistant for a billing application.
Given the supplier index below, return the IDs of the suppliers matching the query.
Rules:
1. Return ONLY IDs present in the index.
2. Interpret names, categories, and free-text notes from the query.
3. When nothing matches, return an empty list and say so in the explanation.

Supplier index:
%s

Query: %s`, supplierIndex, query)

	var result SupplierSearchResult
	if err := a.structured(ctx, prompt, "supplier_search_result",
		"Supplier IDs matching a natural-language search query", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
