package core

import "github.com/shopspring/decimal"

// StockLine is one invoice-line form row seen by the stock constraint solver:
// the requested quantity plus the product's static stock metadata. Lines
// backed by a reservation carry the reserved quantity as a fixed cap.
type StockLine struct {
	ProductID       int64
	Quantity        decimal.Decimal
	Unlimited       bool
	AllowOutOfStock bool
	CurrentStock    decimal.Decimal
	ReservedStock   decimal.Decimal
	ReservationQty  *decimal.Decimal
}

// minQuantity is the floor for every clamped line: a line can never be forced
// below one unit.
var minQuantity = decimal.NewFromInt(1)

// MaxQuantityAt computes the maximum allowed quantity for the line at idx,
// given that multiple lines referencing the same product share its available
// stock. Returns nil when the line is unbounded (unlimited stock, out-of-stock
// sale allowed).
//
// originals maps product ID to the total quantity the invoice held before the
// current edit session. On edit the backing stock was already decremented when
// the invoice was first saved, so those quantities are handed back to the cap:
//
//	cap = (current − reserved) + originalTotal
//	max = cap − (requestedTotal − thisLine.quantity), floored at 1
//
// Reservation-backed lines bypass the shared cap entirely and return their
// fixed reservation quantity.
func MaxQuantityAt(lines []StockLine, idx int, originals map[int64]decimal.Decimal) *decimal.Decimal {
	line := lines[idx]
	if line.ReservationQty != nil {
		q := *line.ReservationQty
		return &q
	}
	if line.Unlimited || line.AllowOutOfStock {
		return nil
	}

	// Total requested across all non-reservation lines for this product.
	var requestedTotal decimal.Decimal
	for _, l := range lines {
		if l.ProductID == line.ProductID && l.ReservationQty == nil {
			requestedTotal = requestedTotal.Add(l.Quantity)
		}
	}

	available := line.CurrentStock.Sub(line.ReservedStock)
	capTotal := available.Add(originals[line.ProductID])
	maxQty := capTotal.Sub(requestedTotal.Sub(line.Quantity))
	if maxQty.LessThan(minQuantity) {
		maxQty = minQuantity
	}
	return &maxQty
}

// ClampQuantityAt clips a newly edited quantity at one line index into
// [1, max] without touching any other line. This is the single-line optimistic
// clamp used after each edit, not a global rebalance.
func ClampQuantityAt(lines []StockLine, idx int, requested decimal.Decimal, originals map[int64]decimal.Decimal) decimal.Decimal {
	line := lines[idx]
	if line.ReservationQty != nil {
		// Reservation lines are fixed; edits are ignored.
		return *line.ReservationQty
	}
	if requested.LessThan(minQuantity) {
		return minQuantity
	}
	maxQty := MaxQuantityAt(lines, idx, originals)
	if maxQty != nil && requested.GreaterThan(*maxQty) {
		return *maxQty
	}
	return requested
}

// StockBubble is the ephemeral per-product aggregate shown while editing an
// invoice: how much of the product's stock the in-memory lines consume.
type StockBubble struct {
	ProductID      int64           `json:"product_id"`
	OriginalStock  decimal.Decimal `json:"original_stock"`
	QuantityUsed   decimal.Decimal `json:"quantity_used"`
	RemainingStock decimal.Decimal `json:"remaining_stock"`
}

// StockBubbles aggregates the lines per product, preserving first-seen order.
// Unlimited-stock products are excluded; reservation lines count toward usage
// but draw on already-reserved stock, so they do not reduce the remainder.
func StockBubbles(lines []StockLine, originals map[int64]decimal.Decimal) []StockBubble {
	byProduct := make(map[int64]*StockBubble)
	var order []int64

	for _, l := range lines {
		if l.Unlimited {
			continue
		}
		b, ok := byProduct[l.ProductID]
		if !ok {
			original := l.CurrentStock.Sub(l.ReservedStock).Add(originals[l.ProductID])
			b = &StockBubble{ProductID: l.ProductID, OriginalStock: original, RemainingStock: original}
			byProduct[l.ProductID] = b
			order = append(order, l.ProductID)
		}
		b.QuantityUsed = b.QuantityUsed.Add(l.Quantity)
		if l.ReservationQty == nil {
			b.RemainingStock = b.RemainingStock.Sub(l.Quantity)
		}
	}

	bubbles := make([]StockBubble, 0, len(order))
	for _, id := range order {
		bubbles = append(bubbles, *byProduct[id])
	}
	return bubbles
}
