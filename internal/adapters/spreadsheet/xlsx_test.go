package spreadsheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/eshaffer321/shopify-compta/internal/domain/table"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "compta_2024-02-01_2024-03-01.xlsx", FileName("2024-02-01", "2024-03-01"))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName("2024-02-01", "2024-03-01"))
	tbl := &table.Table{
		Columns: []string{"name", "total_price", "code", "tax_rate_20.0"},
		Rows: [][]any{
			{"#1001", 24.0, nil, 4.0},
			{"#1002", 12.5, "WELCOME", 2.08},
		},
	}

	require.NoError(t, WriteXLSX(path, tbl))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "total_price", "code", "tax_rate_20.0"}, rows[0])
	assert.Equal(t, []string{"#1001", "24", "", "4"}, rows[1])
	assert.Equal(t, []string{"#1002", "12.5", "WELCOME", "2.08"}, rows[2])

	typ, err := f.GetCellType(SheetName, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
}

func TestWriteXLSX_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	require.NoError(t, WriteXLSX(path, &table.Table{}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
