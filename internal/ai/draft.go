package ai

import (
	"fmt"
	"strings"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// draftLineRequest parses one draft line's decimal strings into a line
// request. The invoice service re-validates everything; this only guards
// against unparseable model output.
func draftLineRequest(dl InvoiceDraftLine) (core.InvoiceLineRequest, error) {
	qty, err := decimal.NewFromString(dl.Quantity)
	if err != nil {
		return core.InvoiceLineRequest{}, fmt.Errorf("bad quantity %q: %w", dl.Quantity, err)
	}
	price, err := decimal.NewFromString(dl.UnitPriceHT)
	if err != nil {
		return core.InvoiceLineRequest{}, fmt.Errorf("bad unit price %q: %w", dl.UnitPriceHT, err)
	}
	rate, err := decimal.NewFromString(dl.VATRate)
	if err != nil {
		return core.InvoiceLineRequest{}, fmt.Errorf("bad VAT rate %q: %w", dl.VATRate, err)
	}
	disc, err := decimal.NewFromString(dl.DiscountPercent)
	if err != nil {
		return core.InvoiceLineRequest{}, fmt.Errorf("bad discount %q: %w", dl.DiscountPercent, err)
	}
	return core.InvoiceLineRequest{
		Description:     dl.ProductName,
		Quantity:        qty,
		UnitPriceHT:     price,
		VATRate:         rate,
		DiscountPercent: disc,
	}, nil
}

// ResolveDraftClient matches the draft's client name against the client list,
// case-insensitive. Returns nil when no client matches.
func ResolveDraftClient(draft *InvoiceDraft, clients []core.Client) *core.Client {
	want := normalizeName(draft.ClientName)
	for i := range clients {
		if normalizeName(clients[i].Name) == want {
			return &clients[i]
		}
	}
	return nil
}
