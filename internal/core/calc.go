package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tunisian VAT regime: the only legal rates, in percent.
var ValidVATRates = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromInt(7),
	decimal.NewFromInt(13),
	decimal.NewFromInt(19),
}

var hundred = decimal.NewFromInt(100)

type TaxValueType string

const (
	TaxValueFixed      TaxValueType = "fixed"
	TaxValuePercentage TaxValueType = "percentage"
)

type TaxApplication string

const (
	TaxApplicationAdd    TaxApplication = "add"
	TaxApplicationDeduct TaxApplication = "deduct"
)

type TaxOrder string

const (
	TaxOrderBeforeStamp TaxOrder = "before_stamp"
	TaxOrderAfterStamp  TaxOrder = "after_stamp"
)

// CustomTax is an org-configured surcharge or deduction applied when deriving
// the net payable from the TTC total. Percentage taxes apply to the running
// accumulated total, so list order matters.
type CustomTax struct {
	Name        string          `json:"name"`
	ValueType   TaxValueType    `json:"value_type"`
	Value       decimal.Decimal `json:"value"`
	Application TaxApplication  `json:"application_type"`
	Order       TaxOrder        `json:"application_order"`
}

// StampDuty is the fiscal stamp configuration. The stamp never applies to
// foreign clients.
type StampDuty struct {
	Enabled bool
	Amount  decimal.Decimal
}

// LineInput carries the editable fields of one invoice line.
type LineInput struct {
	Quantity        decimal.Decimal
	UnitPriceHT     decimal.Decimal
	VATRate         decimal.Decimal
	DiscountPercent decimal.Decimal
}

// LineTotal is the derived money trio for one line.
type LineTotal struct {
	HT  decimal.Decimal
	VAT decimal.Decimal
	TTC decimal.Decimal
}

// ValidateLineInput rejects inputs the calculators must never see: a
// non-positive quantity, a negative price, a VAT rate outside the legal set,
// or a discount outside [0, maxDiscount].
func ValidateLineInput(in LineInput, maxDiscount decimal.Decimal) error {
	if !in.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", in.Quantity)
	}
	if in.UnitPriceHT.IsNegative() {
		return fmt.Errorf("unit price cannot be negative, got %s", in.UnitPriceHT)
	}
	valid := false
	for _, r := range ValidVATRates {
		if in.VATRate.Equal(r) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("VAT rate %s is not a valid rate", in.VATRate)
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(maxDiscount) {
		return fmt.Errorf("discount %s%% outside allowed range [0, %s]", in.DiscountPercent, maxDiscount)
	}
	return nil
}

// ComputeLineTotal derives {HT, VAT, TTC} from one line. Foreign clients never
// accrue VAT regardless of the line's rate. No rounding is applied here; the
// display layer rounds to 3 decimals.
func ComputeLineTotal(in LineInput, foreign bool) LineTotal {
	ht := in.Quantity.Mul(in.UnitPriceHT).Mul(hundred.Sub(in.DiscountPercent)).Div(hundred)
	var vat decimal.Decimal
	if !foreign {
		vat = ht.Mul(in.VATRate).Div(hundred)
	}
	return LineTotal{HT: ht, VAT: vat, TTC: ht.Add(vat)}
}

// VATGroup is one row of the VAT breakdown: the net base and VAT amount
// accumulated at a single rate.
type VATGroup struct {
	Rate   decimal.Decimal `json:"rate"`
	BaseHT decimal.Decimal `json:"base_ht"`
	Amount decimal.Decimal `json:"amount"`
}

// AppliedTax is one custom tax with its computed amount, in application order.
type AppliedTax struct {
	Name        string          `json:"name"`
	Application TaxApplication  `json:"application_type"`
	Order       TaxOrder        `json:"application_order"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceTotals is the result of folding an invoice's lines.
type InvoiceTotals struct {
	SubtotalHT    decimal.Decimal
	TotalVAT      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTTC      decimal.Decimal
	StampDuty     decimal.Decimal
	NetPayable    decimal.Decimal
	VATBreakdown  []VATGroup
	AppliedTaxes  []AppliedTax
}

// AggregateTotals folds lines into invoice totals and derives the net payable:
// start from TTC, apply before_stamp taxes in order, add the stamp, apply
// after_stamp taxes. Callers supply taxes already ordered within each phase.
// Stamp duty is zero for foreign clients or when disabled.
func AggregateTotals(lines []LineInput, foreign bool, stamp StampDuty, taxes []CustomTax) InvoiceTotals {
	var t InvoiceTotals
	groups := make(map[string]*VATGroup)
	var rateOrder []string

	for _, in := range lines {
		lt := ComputeLineTotal(in, foreign)
		gross := in.Quantity.Mul(in.UnitPriceHT)

		t.SubtotalHT = t.SubtotalHT.Add(lt.HT)
		t.TotalVAT = t.TotalVAT.Add(lt.VAT)
		t.TotalDiscount = t.TotalDiscount.Add(gross.Sub(lt.HT))
		t.TotalTTC = t.TotalTTC.Add(lt.TTC)

		key := in.VATRate.String()
		g, ok := groups[key]
		if !ok {
			g = &VATGroup{Rate: in.VATRate}
			groups[key] = g
			rateOrder = append(rateOrder, key)
		}
		g.BaseHT = g.BaseHT.Add(lt.HT)
		g.Amount = g.Amount.Add(lt.VAT)
	}
	for _, key := range rateOrder {
		t.VATBreakdown = append(t.VATBreakdown, *groups[key])
	}

	if stamp.Enabled && !foreign {
		t.StampDuty = stamp.Amount
	}

	net := t.TotalTTC
	net, before := applyTaxPhase(net, taxes, TaxOrderBeforeStamp)
	net = net.Add(t.StampDuty)
	net, after := applyTaxPhase(net, taxes, TaxOrderAfterStamp)
	t.AppliedTaxes = append(before, after...)
	t.NetPayable = net
	return t
}

// applyTaxPhase accumulates the taxes of one phase onto the running total.
// Percentage taxes compute against the running total as it stood when the tax
// is reached, which is why order is part of the contract.
func applyTaxPhase(running decimal.Decimal, taxes []CustomTax, phase TaxOrder) (decimal.Decimal, []AppliedTax) {
	var applied []AppliedTax
	for _, tax := range taxes {
		if tax.Order != phase {
			continue
		}
		amount := tax.Value
		if tax.ValueType == TaxValuePercentage {
			amount = running.Mul(tax.Value).Div(hundred)
		}
		if tax.Application == TaxApplicationDeduct {
			running = running.Sub(amount)
		} else {
			running = running.Add(amount)
		}
		applied = append(applied, AppliedTax{
			Name:        tax.Name,
			Application: tax.Application,
			Order:       tax.Order,
			Amount:      amount,
		})
	}
	return running, applied
}

// WithholdingResult carries the source-withheld tax and the net payable after
// applying it.
type WithholdingResult struct {
	Amount             decimal.Decimal
	AdjustedNetPayable decimal.Decimal
}

// ApplyWithholding applies a withholding percentage to the HT base of a local
// invoice: adjusted = (HT − withholding) + VAT + stamp. A zero rate returns
// the nominal net payable unchanged.
func ApplyWithholding(t InvoiceTotals, rate decimal.Decimal) WithholdingResult {
	if rate.IsZero() {
		return WithholdingResult{Amount: decimal.Zero, AdjustedNetPayable: t.NetPayable}
	}
	wh := t.SubtotalHT.Mul(rate).Div(hundred)
	adjusted := t.SubtotalHT.Sub(wh).Add(t.TotalVAT).Add(t.StampDuty)
	return WithholdingResult{Amount: wh, AdjustedNetPayable: adjusted}
}

// ForeignNetPayable is the payable amount for a foreign client: the HT
// subtotal with no VAT, stamp, or withholding.
func ForeignNetPayable(t InvoiceTotals) decimal.Decimal {
	return t.SubtotalHT
}

// ToBaseCurrency converts a foreign-currency amount into the organization's
// base currency (TND) for balance and reporting purposes.
func ToBaseCurrency(amount, exchangeRate decimal.Decimal) decimal.Decimal {
	return amount.Mul(exchangeRate)
}

// RemainingBalance is what is still owed against the adjusted net payable,
// never negative.
func RemainingBalance(adjustedNetPayable, paid decimal.Decimal) decimal.Decimal {
	rem := adjustedNetPayable.Sub(paid)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// PaymentStatusFor compares the paid amount to the adjusted net payable (not
// the nominal one) to classify the invoice.
func PaymentStatusFor(paid, adjustedNetPayable decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentStatusUnpaid
	case paid.GreaterThanOrEqual(adjustedNetPayable):
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}
