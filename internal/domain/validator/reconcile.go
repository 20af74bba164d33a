// Package validator checks derived order rows before they are exported.
//
// The reconciliation check makes sure the tax breakdown adds back up to the
// order total. A row that does not reconcile usually means a line item
// carried a tax or discount the breakdown could not see; such rows are still
// exported but flagged so the accountant can look at them.
package validator

import (
	"fmt"
	"math"

	"github.com/eshaffer321/shopify-compta/internal/domain/taxes"
)

// DefaultTolerance allows 2 cents of rounding drift.
const DefaultTolerance = 0.02

// Reconciliation contains the result of reconciling one order row.
type Reconciliation struct {
	// Valid is true if the components sum to the order total
	Valid bool

	// Skipped is true when the row lacked the fields needed to check it
	Skipped bool

	// ComponentsSum is pre-tax + tax + shipping before taxes + shipping taxes
	ComponentsSum float64

	// TotalPrice is the order total the components should add up to
	TotalPrice float64

	// Difference is ComponentsSum - TotalPrice
	Difference float64

	// Reason explains why validation failed (empty if valid)
	Reason string
}

// Reconcile checks that the derived breakdown of a row adds up to its total:
//
//	sum(price_before_taxes_tax_rate_*) + sum(tax_rate_*)
//	  + shipping_before_taxes + shipping_taxes ≈ total_price
//
// A tolerance <= 0 falls back to DefaultTolerance.
func Reconcile(row *taxes.Row, tolerance float64) *Reconciliation {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	if row.ShippingTaxes == nil || row.ShippingBeforeTaxes == nil {
		return &Reconciliation{Skipped: true, Reason: "shipping split was not derived"}
	}

	total, err := row.TotalPrice.Float()
	if err != nil {
		return &Reconciliation{Skipped: true, Reason: fmt.Sprintf("total price unusable: %v", err)}
	}
	total = roundToCents(total)

	sum := roundToCents(row.PreTaxTotal() + row.TaxTotal() + *row.ShippingBeforeTaxes + *row.ShippingTaxes)
	diff := roundToCents(sum - total)

	result := &Reconciliation{
		ComponentsSum: sum,
		TotalPrice:    total,
		Difference:    diff,
	}

	// compare in cents so 0.02 is not lost to float error
	if math.Round(math.Abs(diff)*100) <= math.Round(tolerance*100) {
		result.Valid = true
		return result
	}

	if diff < 0 {
		result.Reason = fmt.Sprintf("breakdown (%.2f) is %.2f short of total price (%.2f), likely untaxed shipping or an uncounted discount",
			sum, -diff, total)
	} else {
		result.Reason = fmt.Sprintf("breakdown (%.2f) exceeds total price (%.2f) by %.2f",
			sum, total, diff)
	}
	return result
}

// roundToCents rounds a float to 2 decimal places.
func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
