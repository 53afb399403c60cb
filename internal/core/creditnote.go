package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type CreditMode string

const (
	CreditModePerLine     CreditMode = "per_line"
	CreditModeTotalTarget CreditMode = "total_target"
)

// RemainingLine is one invoice line's balance after all previously validated
// credit notes: the original line totals minus amounts already credited.
// Proration always operates on these remainders, never on the original line.
type RemainingLine struct {
	InvoiceLineID int64
	VATRate       decimal.Decimal
	Foreign       bool
	RemainingHT   decimal.Decimal
	RemainingTTC  decimal.Decimal
}

// LineDiscount is the three mutually consistent representations of a per-line
// credit. HT is the canonical value; TTC and Rate are derived from it, so the
// trio can never drift apart.
type LineDiscount struct {
	HT   decimal.Decimal
	TTC  decimal.Decimal
	Rate decimal.Decimal // percent of the line's remaining HT
}

// vatFactor returns 1 + rate/100, or exactly 1 for foreign lines.
func (l RemainingLine) vatFactor() decimal.Decimal {
	if l.Foreign {
		return decimal.NewFromInt(1)
	}
	return hundred.Add(l.VATRate).Div(hundred)
}

// clampHT bounds a candidate HT discount into [0, RemainingHT].
func (l RemainingLine) clampHT(ht decimal.Decimal) decimal.Decimal {
	if ht.IsNegative() {
		return decimal.Zero
	}
	if ht.GreaterThan(l.RemainingHT) {
		return l.RemainingHT
	}
	return ht
}

// discountFrom builds the derived trio from a canonical HT value.
func (l RemainingLine) discountFrom(ht decimal.Decimal) LineDiscount {
	ht = l.clampHT(ht)
	rate := decimal.Zero
	if l.RemainingHT.IsPositive() {
		rate = ht.Mul(hundred).Div(l.RemainingHT)
	}
	return LineDiscount{HT: ht, TTC: ht.Mul(l.vatFactor()), Rate: rate}
}

// DiscountFromHT recomputes the trio after the operator edited the HT field.
func DiscountFromHT(l RemainingLine, ht decimal.Decimal) LineDiscount {
	return l.discountFrom(ht)
}

// DiscountFromTTC recomputes the trio after the operator edited the TTC field.
func DiscountFromTTC(l RemainingLine, ttc decimal.Decimal) LineDiscount {
	return l.discountFrom(ttc.Div(l.vatFactor()))
}

// DiscountFromRate recomputes the trio after the operator edited the rate
// field (percent of remaining HT).
func DiscountFromRate(l RemainingLine, rate decimal.Decimal) LineDiscount {
	return l.discountFrom(l.RemainingHT.Mul(rate).Div(hundred))
}

// ProratedLine is one line's new amounts after a credit note is applied.
type ProratedLine struct {
	InvoiceLineID int64
	VATRate       decimal.Decimal
	NewHT         decimal.Decimal
	NewVAT        decimal.Decimal
	NewTTC        decimal.Decimal
	CreditedHT    decimal.Decimal
	CreditedVAT   decimal.Decimal
	CreditedTTC   decimal.Decimal
}

// prorated derives a line's new amounts from its new HT, preserving the rate.
func prorated(l RemainingLine, newHT decimal.Decimal) ProratedLine {
	var newVAT decimal.Decimal
	if !l.Foreign {
		newVAT = newHT.Mul(l.VATRate).Div(hundred)
	}
	newTTC := newHT.Add(newVAT)
	remVAT := l.RemainingTTC.Sub(l.RemainingHT)
	return ProratedLine{
		InvoiceLineID: l.InvoiceLineID,
		VATRate:       l.VATRate,
		NewHT:         newHT,
		NewVAT:        newVAT,
		NewTTC:        newTTC,
		CreditedHT:    l.RemainingHT.Sub(newHT),
		CreditedVAT:   remVAT.Sub(newVAT),
		CreditedTTC:   l.RemainingTTC.Sub(newTTC),
	}
}

// ApplyLineDiscounts turns per-line discounts (canonical HT, already bounded
// by each line's remainder) into prorated lines. Lines without a discount pass
// through unchanged.
func ApplyLineDiscounts(lines []RemainingLine, discounts map[int64]decimal.Decimal) []ProratedLine {
	out := make([]ProratedLine, 0, len(lines))
	for _, l := range lines {
		ht := l.clampHT(discounts[l.InvoiceLineID])
		out = append(out, prorated(l, l.RemainingHT.Sub(ht)))
	}
	return out
}

// ProrateToTarget applies a uniform ratio newTotalHT / remainingHT to every
// line's remaining HT, preserving each line's VAT rate. The target must lie in
// [0, remainingHT] and the remaining total must be positive.
func ProrateToTarget(lines []RemainingLine, newTotalHT decimal.Decimal) ([]ProratedLine, error) {
	var remainingHT decimal.Decimal
	for _, l := range lines {
		remainingHT = remainingHT.Add(l.RemainingHT)
	}
	if !remainingHT.IsPositive() {
		return nil, fmt.Errorf("nothing left to credit: remaining HT is %s", remainingHT)
	}
	if newTotalHT.IsNegative() || newTotalHT.GreaterThan(remainingHT) {
		return nil, fmt.Errorf("target HT %s outside [0, %s]", newTotalHT, remainingHT)
	}

	ratio := newTotalHT.Div(remainingHT)
	out := make([]ProratedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, prorated(l, l.RemainingHT.Mul(ratio)))
	}
	return out, nil
}

// CreditVATBreakdown regroups the prorated lines' new amounts by VAT rate,
// preserving first-seen order.
func CreditVATBreakdown(lines []ProratedLine) []VATGroup {
	groups := make(map[string]*VATGroup)
	var order []string
	for _, l := range lines {
		key := l.VATRate.String()
		g, ok := groups[key]
		if !ok {
			g = &VATGroup{Rate: l.VATRate}
			groups[key] = g
			order = append(order, key)
		}
		g.BaseHT = g.BaseHT.Add(l.NewHT)
		g.Amount = g.Amount.Add(l.NewVAT)
	}
	out := make([]VATGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// CrossesWithholdingThreshold reports whether a credit note pushes the invoice
// from at-or-above the withholding exemption threshold to below it. The caller
// prompts the operator exactly once per dialog session when this fires; see
// WithholdingPrompt.
func CrossesWithholdingThreshold(originalTTC, newTTC, threshold decimal.Decimal) bool {
	return originalTTC.GreaterThanOrEqual(threshold) && newTTC.LessThan(threshold)
}

// WithholdingPrompt guards the keep-or-cancel withholding question so it is
// asked at most once per credit-note session, even as the operator keeps
// editing amounts around the threshold.
type WithholdingPrompt struct {
	fired bool
}

// ShouldPrompt returns true the first time the threshold crossing is observed.
func (p *WithholdingPrompt) ShouldPrompt(originalTTC, newTTC, threshold decimal.Decimal) bool {
	if p.fired || !CrossesWithholdingThreshold(originalTTC, newTTC, threshold) {
		return false
	}
	p.fired = true
	return true
}

// CreditInvoiceState is the snapshot of the invoice a credit note computes
// against.
type CreditInvoiceState struct {
	Foreign               bool
	NetPayable            decimal.Decimal
	PreviousTotalCredited decimal.Decimal
	PaidAmount            decimal.Decimal
	PaymentStatus         PaymentStatus
	StampDuty             decimal.Decimal
}

// CreditOutcome is the financial result of a credit note.
type CreditOutcome struct {
	NewSubtotalHT     decimal.Decimal
	NewTotalVAT       decimal.Decimal
	NewTotalTTC       decimal.Decimal
	WithholdingAmount decimal.Decimal
	NewNetPayable     decimal.Decimal
	CreditAmount      decimal.Decimal
	FinancialCredit   decimal.Decimal
	VATBreakdown      []VATGroup
}

// ComputeCreditOutcome derives the credit note's financials from the prorated
// lines. withholdingRate is the original invoice rate or an operator override;
// pass zero when withholding is cancelled (threshold crossing). The credit
// amount is always measured against the remaining balance — net payable minus
// previously credited — never against the original invoice, which prevents
// double-crediting across successive credit notes. If the reduced net payable
// drops below what was already paid on a paid or partial invoice, the excess
// becomes a financial credit owed back to the client.
func ComputeCreditOutcome(inv CreditInvoiceState, lines []ProratedLine, withholdingRate decimal.Decimal) CreditOutcome {
	var out CreditOutcome
	for _, l := range lines {
		out.NewSubtotalHT = out.NewSubtotalHT.Add(l.NewHT)
		out.NewTotalVAT = out.NewTotalVAT.Add(l.NewVAT)
		out.NewTotalTTC = out.NewTotalTTC.Add(l.NewTTC)
	}
	out.VATBreakdown = CreditVATBreakdown(lines)

	if inv.Foreign {
		out.NewNetPayable = out.NewSubtotalHT
	} else if withholdingRate.IsPositive() {
		out.WithholdingAmount = out.NewSubtotalHT.Mul(withholdingRate).Div(hundred)
		out.NewNetPayable = out.NewSubtotalHT.Sub(out.WithholdingAmount).Add(out.NewTotalVAT).Add(inv.StampDuty)
	} else {
		out.NewNetPayable = out.NewTotalTTC.Add(inv.StampDuty)
	}

	out.CreditAmount = inv.NetPayable.Sub(inv.PreviousTotalCredited).Sub(out.NewNetPayable)

	if inv.PaymentStatus == PaymentStatusPaid || inv.PaymentStatus == PaymentStatusPartial {
		excess := inv.PaidAmount.Sub(out.NewNetPayable)
		if excess.IsPositive() {
			out.FinancialCredit = excess
		}
	}
	return out
}
