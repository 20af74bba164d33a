package taxes

import (
	"strconv"
	"strings"
)

// Value returns the cell for a column of the derived row, falling back to
// the normalized columns. The boolean is false when the row has no such
// column, which includes derived fields that were never computed.
func (r *Row) Value(column string) (any, bool) {
	switch column {
	case ColShippingTaxes:
		return floatPtrCell(r.ShippingTaxes)
	case ColShippingBeforeTaxes:
		return floatPtrCell(r.ShippingBeforeTaxes)
	case ColTotalBeforeTaxes:
		return floatPtrCell(r.TotalBeforeTaxes)
	case ColOrderSummary:
		if r.OrderSummary == nil {
			return nil, false
		}
		return *r.OrderSummary, true
	}

	if key, ok := strings.CutPrefix(column, PreTaxColumnPrefix); ok {
		for _, b := range r.Buckets {
			if b.Key == key {
				return b.PreTax, true
			}
		}
		return nil, false
	}

	if key, ok := strings.CutPrefix(column, TaxColumnPrefix); ok {
		for _, b := range r.Buckets {
			if b.Key == key {
				return b.Tax, true
			}
		}
		return nil, false
	}

	if idx, ok := strings.CutPrefix(column, PaymentColumnPrefix); ok {
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(r.PaymentMethods) {
			return nil, false
		}
		return r.PaymentMethods[i], true
	}

	return r.Row.Value(column)
}

// TaxColumns lists the row's tax amount columns in bucket order.
func (r *Row) TaxColumns() []string {
	cols := make([]string, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		cols = append(cols, b.TaxColumn())
	}
	return cols
}

// PreTaxColumns lists the row's pre-tax amount columns in bucket order.
func (r *Row) PreTaxColumns() []string {
	cols := make([]string, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		cols = append(cols, b.PreTaxColumn())
	}
	return cols
}

// TaxTotal sums the tax of every bucket.
func (r *Row) TaxTotal() float64 {
	var sum float64
	for _, b := range r.Buckets {
		sum += b.Tax
	}
	return roundToCents(sum)
}

// PreTaxTotal sums the pre-tax amount of every bucket.
func (r *Row) PreTaxTotal() float64 {
	var sum float64
	for _, b := range r.Buckets {
		sum += b.PreTax
	}
	return roundToCents(sum)
}

func floatPtrCell(f *float64) (any, bool) {
	if f == nil {
		return nil, false
	}
	return *f, true
}
