// Package table turns derived order rows into the final export table.
package table

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
	"github.com/eshaffer321/shopify-compta/internal/domain/taxes"
)

// GeneralColumns is the fixed part of the export, in output order.
var GeneralColumns = []string{
	orders.ColName,
	orders.ColCreatedAt,
	orders.ColTotalPrice,
	taxes.ColTotalBeforeTaxes,
	orders.ColTotalTax,
	taxes.ColShippingBeforeTaxes,
	taxes.ColShippingTaxes,
	orders.ColTotalDiscounts,
	orders.ColDiscountCode,
	taxes.PaymentColumnPrefix + "0",
	taxes.PaymentColumnPrefix + "1",
	orders.ColCountryCode,
	orders.ColFirstName,
	orders.ColLastName,
	orders.ColAddress1,
	orders.ColAddress2,
	orders.ColCompany,
	orders.ColCity,
	orders.ColZip,
	orders.ColEmail,
	orders.ColPhone,
	taxes.ColOrderSummary,
}

// numericColumns are coerced from the API's string amounts to numbers.
var numericColumns = map[string]bool{
	orders.ColTotalPrice:     true,
	orders.ColTotalDiscounts: true,
	orders.ColTotalTax:       true,
}

// Table is the export: ordered column names and one row of cells per order.
// A nil cell is written as an empty cell.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Cell returns the value of column in row i.
func (t *Table) Cell(i int, column string) (any, bool) {
	j := t.Index(column)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[i][j], true
}

// Diagnostic reports a cell that could not be coerced.
type Diagnostic struct {
	OrderName string
	Column    string
	Err       error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("order %s column %s: %v", d.OrderName, d.Column, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Assembly is the table plus what was filtered out on the way.
type Assembly struct {
	Table       *Table
	Unnamed     int
	Duplicates  int
	Diagnostics []Diagnostic
}

// Assemble filters, deduplicates, sorts and projects the rows:
//
//  1. rows without a name are dropped
//  2. rows sharing a name keep only the last occurrence
//  3. rows are stably sorted by created_at ascending
//  4. total_price, total_discounts and total_tax become numbers
//  5. columns are GeneralColumns, then every tax_rate_* column, then every
//     price_before_taxes_tax_rate_* column in order of first appearance,
//     keeping only columns at least one row actually has
func Assemble(rows []taxes.Row) *Assembly {
	out := &Assembly{}

	named := make([]*taxes.Row, 0, len(rows))
	for i := range rows {
		if rows[i].Name == "" {
			out.Unnamed++
			continue
		}
		named = append(named, &rows[i])
	}

	last := make(map[string]int, len(named))
	for i, r := range named {
		last[r.Name] = i
	}
	kept := make([]*taxes.Row, 0, len(last))
	for i, r := range named {
		if last[r.Name] == i {
			kept = append(kept, r)
		}
	}
	out.Duplicates = len(named) - len(kept)

	sortByCreatedAt(kept)

	columns := selectColumns(kept)
	t := &Table{Columns: columns, Rows: make([][]any, 0, len(kept))}
	for _, r := range kept {
		cells := make([]any, len(columns))
		for j, col := range columns {
			v, ok := r.Value(col)
			if !ok {
				continue
			}
			if numericColumns[col] {
				n, err := coerce(v)
				if err != nil {
					out.Diagnostics = append(out.Diagnostics, Diagnostic{OrderName: r.Name, Column: col, Err: err})
				}
				cells[j] = n
				continue
			}
			cells[j] = v
		}
		t.Rows = append(t.Rows, cells)
	}
	out.Table = t
	return out
}

func selectColumns(rows []*taxes.Row) []string {
	var taxCols, preCols []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, b := range r.Buckets {
			if c := b.TaxColumn(); !seen[c] {
				seen[c] = true
				taxCols = append(taxCols, c)
			}
			if c := b.PreTaxColumn(); !seen[c] {
				seen[c] = true
				preCols = append(preCols, c)
			}
		}
	}

	candidates := make([]string, 0, len(GeneralColumns)+len(taxCols)+len(preCols))
	candidates = append(candidates, GeneralColumns...)
	candidates = append(candidates, taxCols...)
	candidates = append(candidates, preCols...)

	columns := make([]string, 0, len(candidates))
	for _, col := range candidates {
		for _, r := range rows {
			if _, ok := r.Value(col); ok {
				columns = append(columns, col)
				break
			}
		}
	}
	return columns
}

type sortKey struct {
	t   time.Time
	ok  bool
	raw string
}

// sortByCreatedAt orders by instant so mixed UTC offsets compare correctly.
// Unparseable timestamps go last, ordered by their text.
func sortByCreatedAt(rows []*taxes.Row) {
	keys := make(map[*taxes.Row]sortKey, len(rows))
	for _, r := range rows {
		t, err := orders.ParseTimestamp(r.CreatedAt)
		keys[r] = sortKey{t: t, ok: err == nil, raw: r.CreatedAt}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := keys[rows[i]], keys[rows[j]]
		switch {
		case a.ok && b.ok:
			return a.t.Before(b.t)
		case a.ok != b.ok:
			return a.ok
		default:
			return a.raw < b.raw
		}
	})
}

func coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return x, nil
	case string:
		f, err := orders.NewAmount(x).Float()
		if errors.Is(err, orders.ErrEmptyAmount) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to a number", v)
	}
}
