// Package taxes derives the accounting fields of an order row: the tax
// breakdown per rate, the shipping tax split, the total before taxes, the
// payment methods and a short order summary.
//
// Derivation runs as a fixed sequence of passes. A pass that fails records a
// Diagnostic and leaves its fields unset; the remaining passes still run and
// the row is always returned.
package taxes

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
)

// Derived column names.
const (
	ColShippingTaxes       = "shipping_taxes"
	ColShippingBeforeTaxes = "shipping_before_taxes"
	ColTotalBeforeTaxes    = "total_before_taxes"
	ColOrderSummary        = "order_summary"

	TaxColumnPrefix     = "tax_rate_"
	PreTaxColumnPrefix  = "price_before_taxes_tax_rate_"
	PaymentColumnPrefix = "payment_method_"
)

// Pass names a derivation step.
type Pass string

const (
	PassTax              Pass = "tax"
	PassShipping         Pass = "shipping"
	PassTotalBeforeTaxes Pass = "total_before_taxes"
	PassPayments         Pass = "payments"
	PassSummary          Pass = "summary"
)

var (
	// ErrMissingSKU is reported by the summary pass.
	ErrMissingSKU = errors.New("line item has no sku")

	// ErrMissingPrerequisite is reported when a pass depends on a pass that failed.
	ErrMissingPrerequisite = errors.New("prerequisite pass did not complete")
)

// Diagnostic is a non-fatal derivation failure.
type Diagnostic struct {
	Pass      Pass
	OrderName string
	Err       error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s pass failed for order %s: %v", d.Pass, d.OrderName, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Bucket accumulates the tax and pre-tax amounts of every line item sharing
// one tax rate.
type Bucket struct {
	Key    string
	Rate   float64
	Tax    float64
	PreTax float64
}

// TaxColumn is the column holding the bucket's tax amount.
func (b Bucket) TaxColumn() string { return TaxColumnPrefix + b.Key }

// PreTaxColumn is the column holding the bucket's pre-tax amount.
func (b Bucket) PreTaxColumn() string { return PreTaxColumnPrefix + b.Key }

// Row is a normalized row plus the derived fields. Nil pointers mean the
// field was not computed.
type Row struct {
	orders.Row

	// Buckets in order of first appearance among the line items.
	Buckets []Bucket

	Shipping            *float64
	ShippingTaxes       *float64
	ShippingBeforeTaxes *float64
	TotalBeforeTaxes    *float64
	PaymentMethods      []string
	OrderSummary        *string

	taxDone bool
}

// Result is the outcome of deriving one row.
type Result struct {
	Row         Row
	Diagnostics []Diagnostic
}

// OK reports whether every pass completed.
func (r Result) OK() bool { return len(r.Diagnostics) == 0 }

type pass struct {
	name Pass
	run  func(*Row) error
}

var passes = []pass{
	{PassTax, taxPass},
	{PassShipping, shippingPass},
	{PassTotalBeforeTaxes, totalBeforeTaxesPass},
	{PassPayments, paymentsPass},
	{PassSummary, summaryPass},
}

// Derive runs every pass over a normalized row.
func Derive(in orders.Row) Result {
	res := Result{Row: Row{Row: in}}
	for _, p := range passes {
		if err := p.run(&res.Row); err != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Pass:      p.name,
				OrderName: in.Name,
				Err:       err,
			})
		}
	}
	return res
}

// BucketKey formats a tax rate as the percentage used in column names.
// The percentage is rounded half away from zero to two decimals and always
// carries at least one fractional digit: 0.2 -> "20.0", 0.055 -> "5.5",
// 0.0725 -> "7.25", 0 -> "0.0".
func BucketKey(rate float64) string {
	pct := math.Round(rate*100*100) / 100
	if pct == 0 {
		pct = 0 // drop the sign of -0
	}
	s := strconv.FormatFloat(pct, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func taxPass(r *Row) error {
	r.Buckets = nil
	index := make(map[string]int)

	// buckets accumulate on the row so items before a failing one survive
	for i, item := range r.LineItems {
		rate, vat := 0.0, 0.0
		if len(item.TaxLines) > 0 {
			first := item.TaxLines[0]
			rate = first.Rate
			v, err := first.Price.Float()
			if err != nil {
				return fmt.Errorf("line item %d tax: %w", i, err)
			}
			vat = v
		}

		discount := 0.0
		if len(item.DiscountAllocations) > 0 {
			d, err := item.DiscountAllocations[0].Amount.Float()
			if err != nil {
				return fmt.Errorf("line item %d discount: %w", i, err)
			}
			discount = d
		}

		price, err := item.Price.Float()
		if err != nil {
			return fmt.Errorf("line item %d price: %w", i, err)
		}

		pre := price*float64(item.Quantity) - discount - vat

		key := BucketKey(rate)
		pos, ok := index[key]
		if !ok {
			pos = len(r.Buckets)
			index[key] = pos
			r.Buckets = append(r.Buckets, Bucket{Key: key, Rate: rate})
		}
		r.Buckets[pos].Tax = roundToCents(r.Buckets[pos].Tax + vat)
		r.Buckets[pos].PreTax = roundToCents(r.Buckets[pos].PreTax + pre)
	}

	r.taxDone = true
	return nil
}

func shippingPass(r *Row) error {
	shipping, shipErr := difference(r.TotalPrice, r.SubtotalPrice)
	if shipErr == nil {
		r.Shipping = &shipping
	}

	if len(r.ShippingLines) == 0 || len(r.ShippingLines[0].TaxLines) == 0 {
		taxes, before := 0.0, 0.0
		r.ShippingTaxes = &taxes
		r.ShippingBeforeTaxes = &before
		if shipErr != nil {
			return fmt.Errorf("shipping amount: %w", shipErr)
		}
		return nil
	}

	// taxed shipping sets both fields or neither
	taxes, err := r.ShippingLines[0].TaxLines[0].Price.Float()
	if err != nil {
		return fmt.Errorf("shipping tax: %w", err)
	}
	if shipErr != nil {
		return fmt.Errorf("shipping amount: %w", shipErr)
	}
	before := roundToCents(shipping - taxes)
	r.ShippingTaxes = &taxes
	r.ShippingBeforeTaxes = &before
	return nil
}

func totalBeforeTaxesPass(r *Row) error {
	if r.ShippingTaxes == nil {
		return fmt.Errorf("shipping taxes: %w", ErrMissingPrerequisite)
	}
	if !r.taxDone {
		return fmt.Errorf("tax buckets: %w", ErrMissingPrerequisite)
	}

	total, err := r.TotalPrice.Float()
	if err != nil {
		return fmt.Errorf("total price: %w", err)
	}

	v := total - *r.ShippingTaxes
	for _, b := range r.Buckets {
		v -= b.Tax
	}
	v = roundToCents(v)
	r.TotalBeforeTaxes = &v
	return nil
}

func paymentsPass(r *Row) error {
	r.PaymentMethods = append([]string(nil), r.PaymentGatewayNames...)
	return nil
}

// summaryPass writes an item without a SKU as "<qty> x " and reports the
// first such item.
func summaryPass(r *Row) error {
	var missing error
	parts := make([]string, 0, len(r.LineItems))
	for i, item := range r.LineItems {
		sku := ""
		if item.SKU != nil {
			sku = *item.SKU
		} else if missing == nil {
			missing = fmt.Errorf("line item %d: %w", i, ErrMissingSKU)
		}
		parts = append(parts, fmt.Sprintf("%d x %s", item.Quantity, sku))
	}
	s := strings.Join(parts, " + ")
	r.OrderSummary = &s
	return missing
}

func difference(a, b orders.Amount) (float64, error) {
	x, err := a.Float()
	if err != nil {
		return 0, err
	}
	y, err := b.Float()
	if err != nil {
		return 0, err
	}
	return roundToCents(x - y), nil
}

func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
