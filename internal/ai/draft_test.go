package ai

import (
	"testing"

	"invoicing-backend/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDraftNormalize(t *testing.T) {
	draft := InvoiceDraft{
		ClientName: "Client Local SARL",
		Lines: []InvoiceDraftLine{
			{ProductName: "Licence logicielle"},
			{ProductName: "Formation", Quantity: "3", UnitPriceHT: "250", VATRate: "7", DiscountPercent: "10"},
		},
	}
	draft.Normalize()

	first := draft.Lines[0]
	if first.Quantity != "1" || first.UnitPriceHT != "0" || first.VATRate != "19" || first.DiscountPercent != "0" {
		t.Errorf("defaults not applied: %+v", first)
	}
	second := draft.Lines[1]
	if second.Quantity != "3" || second.VATRate != "7" {
		t.Errorf("explicit values overwritten: %+v", second)
	}
}

func TestDraftValidate(t *testing.T) {
	valid := func() InvoiceDraft {
		return InvoiceDraft{
			ClientName: "Acme",
			Lines:      []InvoiceDraftLine{{ProductName: "Widget", Quantity: "1", UnitPriceHT: "0", VATRate: "19", DiscountPercent: "0"}},
			Confidence: 0.9,
		}
	}

	d := valid()
	if err := d.Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	d = valid()
	d.ClientName = ""
	if err := d.Validate(); err == nil {
		t.Error("expected error for missing client name")
	}

	d = valid()
	d.Lines = nil
	if err := d.Validate(); err == nil {
		t.Error("expected error for empty lines")
	}

	d = valid()
	d.Lines[0].ProductName = ""
	if err := d.Validate(); err == nil {
		t.Error("expected error for line without product name")
	}

	d = valid()
	d.Confidence = 1.5
	if err := d.Validate(); err == nil {
		t.Error("expected error for confidence outside [0, 1]")
	}
}

func TestResolveDraftLines(t *testing.T) {
	products := []core.Product{
		{ID: 7, Name: "Licence logicielle"},
		{ID: 9, Name: "Formation"},
	}
	draft := &InvoiceDraft{
		ClientName: "Acme",
		Lines: []InvoiceDraftLine{
			{ProductName: "licence LOGICIELLE", Quantity: "2", UnitPriceHT: "0", VATRate: "19", DiscountPercent: "0"},
			{ProductName: "Audit ponctuel", Quantity: "1", UnitPriceHT: "500.000", VATRate: "19", DiscountPercent: "0"},
		},
	}

	lines, err := ResolveDraftLines(draft, products)
	if err != nil {
		t.Fatalf("ResolveDraftLines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].ProductID == nil || *lines[0].ProductID != 7 {
		t.Errorf("catalog match failed: %+v", lines[0])
	}
	if !lines[0].Quantity.Equal(d("2")) {
		t.Errorf("expected quantity 2, got %s", lines[0].Quantity)
	}
	if lines[1].ProductID != nil {
		t.Errorf("unmatched name should stay free-text, got product ID %d", *lines[1].ProductID)
	}
	if lines[1].Description != "Audit ponctuel" {
		t.Errorf("expected free-text description, got %q", lines[1].Description)
	}
	if !lines[1].UnitPriceHT.Equal(d("500.000")) {
		t.Errorf("expected price 500.000, got %s", lines[1].UnitPriceHT)
	}
}

func TestResolveDraftLinesBadDecimal(t *testing.T) {
	draft := &InvoiceDraft{
		Lines: []InvoiceDraftLine{
			{ProductName: "Widget", Quantity: "two", UnitPriceHT: "0", VATRate: "19", DiscountPercent: "0"},
		},
	}
	if _, err := ResolveDraftLines(draft, nil); err == nil {
		t.Error("expected error for unparseable quantity")
	}
}

func TestResolveDraftClient(t *testing.T) {
	clients := []core.Client{
		{ID: 1, Name: "Client Local SARL"},
		{ID: 2, Name: "Acme Export GmbH"},
	}
	draft := &InvoiceDraft{ClientName: "  acme export gmbh "}
	if c := ResolveDraftClient(draft, clients); c == nil || c.ID != 2 {
		t.Errorf("expected client 2, got %+v", c)
	}
	draft.ClientName = "Unknown Client"
	if c := ResolveDraftClient(draft, clients); c != nil {
		t.Errorf("expected no match, got %+v", c)
	}
}
