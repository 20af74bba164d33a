package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/shopify-compta/internal/application/export"
)

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	PrintHeader(&buf, "shop.myshopify.com", export.Window{
		Start:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		DateField: "created_at",
	})

	assert.Contains(t, buf.String(), "shop.myshopify.com")
	assert.Contains(t, buf.String(), "2024-03-01 -> 2024-04-01")
	assert.Contains(t, buf.String(), "created_at")
}

func TestPrintSummary(t *testing.T) {
	failure := export.PageFailure{Page: 2, Attempts: 3, Err: errors.New("503")}
	var buf bytes.Buffer
	PrintSummary(&buf, &export.Result{
		RunID:           7,
		OrderCount:      501,
		PagesPlanned:    3,
		PageFailures:    []export.PageFailure{failure},
		OrdersFetched:   251,
		OrdersMalformed: 1,
		RowsExported:    250,
		Unreconciled:    4,
		Columns:         []string{"name", "created_at"},
		OutputPath:      "compta_2024-03-01_2024-04-01.xlsx",
		Duration:        1500 * time.Millisecond,
		Errors:          []error{failure},
	})

	out := buf.String()
	assert.Contains(t, out, "Orders=501 Pages=3 Fetched=251 Exported=250")
	assert.Contains(t, out, "Pages=1 Malformed=1")
	assert.Contains(t, out, "Unreconciled=4")
	assert.Contains(t, out, "page 2 dropped after 3 attempts: 503")
	assert.Contains(t, out, "Run: #7")
	assert.Contains(t, out, "Wrote compta_2024-03-01_2024-04-01.xlsx (2 columns) in 1.5s")
}

func TestPrintSummary_NoLedgerNoErrors(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &export.Result{OutputPath: "out.xlsx"})

	assert.NotContains(t, buf.String(), "Errors:")
	assert.NotContains(t, buf.String(), "Run: #")
}
