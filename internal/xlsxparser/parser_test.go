package xlsxparser

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows to the first sheet and returns the workbook bytes.
func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseFirstSheet(t *testing.T) {
	data := buildWorkbook(t, "Invoice", [][]interface{}{
		{"Customer", "Total Cost", "Bill Amount", "Tracking ID"},
		{"Globex", 10, 15, "T1"},
		{nil, nil, nil, nil},
		{"Globex", 20.5, 25, "T2"},
	})

	table, err := Parse(context.Background(), bytes.NewReader(data), Options{Raw: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer", "Total Cost", "Bill Amount", "Tracking ID"}, table.Headers)
	require.Equal(t, 2, table.RowCount())
	assert.Equal(t, "10", table.Rows[0]["Total Cost"])
	assert.Equal(t, "20.5", table.Rows[1]["Total Cost"])
	assert.Equal(t, "T2", table.Rows[1]["Tracking ID"])
}

func TestParseNamedSheetAndHeaderRow(t *testing.T) {
	data := buildWorkbook(t, "Detail", [][]interface{}{
		{"Carrier invoice export"},
		{"Client", "Cost", "Billable"},
		{"Initech", 1, 2},
	})

	table, err := Parse(context.Background(), bytes.NewReader(data), Options{Sheet: "Detail", HeaderRow: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Client", "Cost", "Billable"}, table.Headers)
	assert.Equal(t, "Initech", table.Rows[0]["Client"])

	_, err = Parse(context.Background(), bytes.NewReader(data), Options{Sheet: "Missing"})
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]interface{}{{"a", "b"}, {"1", "2"}})
	path := filepath.Join(t.TempDir(), "t.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := ParseFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, path, table.SourceFile)
	assert.Equal(t, "2", table.Rows[0]["b"])
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(context.Background(), bytes.NewReader([]byte("not a workbook")), Options{})
	assert.Error(t, err)
}

func TestParseEmptySheet(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", nil)
	_, err := Parse(context.Background(), bytes.NewReader(data), Options{})
	assert.Error(t, err)
}
