package crm

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	tenK    = decimal.NewFromInt(10000)
	one     = decimal.NewFromInt(1)
)

// ItemTotal derives a line item's total price. An explicit total-measure
// override wins; otherwise the cm dimensions are converted to m2 and the
// fire surcharge and labor cost applied. Rounded to 2dp.
func ItemTotal(item ProposalItem) decimal.Decimal {
	if item.TotalMeasure != nil && item.TotalMeasure.IsPositive() {
		return item.TotalMeasure.
			Mul(decimal.NewFromInt(int64(item.Quantity))).
			Mul(item.UnitPrice).
			Round(2)
	}
	area := item.Width.
		Mul(item.Length).
		Mul(decimal.NewFromInt(int64(item.Quantity))).
		Div(tenK)
	total := area.
		Mul(item.UnitPrice).
		Mul(one.Add(item.FireRate.Div(hundred))).
		Add(item.LaborCost)
	return total.Round(2)
}

// ItemArea derives the line's surface area in m2 from cm dimensions.
func ItemArea(item ProposalItem) decimal.Decimal {
	return item.Width.
		Mul(item.Length).
		Mul(decimal.NewFromInt(int64(item.Quantity))).
		Div(tenK).
		Round(4)
}

// Totals is the derived money breakdown of a proposal.
type Totals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	GrandTotal decimal.Decimal
}

// ProposalTotals derives subtotal, tax and grand total from the entered
// total amount per tax mode. Each value is rounded to 2dp at its own
// derivation step; the ordering is part of the contract.
func ProposalTotals(total, rate decimal.Decimal, inclusive bool) Totals {
	if inclusive {
		subtotal := total.Div(one.Add(rate.Div(hundred))).Round(2)
		tax := total.Sub(subtotal).Round(2)
		return Totals{Subtotal: subtotal, Tax: tax, GrandTotal: total.Round(2)}
	}
	subtotal := total.Round(2)
	tax := subtotal.Mul(rate.Div(hundred)).Round(2)
	return Totals{Subtotal: subtotal, Tax: tax, GrandTotal: subtotal.Add(tax).Round(2)}
}

// RecalcProposalTotal sums the line totals; callers persist it as the
// proposal's entered total when the item set changes.
func RecalcProposalTotal(items []ProposalItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(ItemTotal(item))
	}
	return sum.Round(2)
}
