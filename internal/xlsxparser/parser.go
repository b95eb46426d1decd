// =============================================================================
// Freight Billing Reconciler - XLSX Parser Module
// =============================================================================
//
// This module reads one sheet of an XLSX workbook into header-keyed rows.
// It serves two callers:
//   - the ingestion pipeline, reading carrier billing workbooks
//   - the xlsx storage backend, reading its persisted table workbooks
//
// SHEET LAYOUT:
//
//   | Row 1 (HeaderRow) | Customer | Total Cost | Bill Amount | Tracking ID |
//   |-------------------|----------|------------|-------------|-------------|
//   | Row 2..n          | Globex   | 10         | 15          | T1          |
//
// Rows are streamed with the excelize row iterator so large workbooks are not
// materialized twice. Blank rows are skipped.
//
// =============================================================================

package xlsxparser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/csvparser"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls which sheet is read and how.
type Options struct {
	// Sheet is the sheet to read. Empty means the first sheet.
	Sheet string

	// HeaderRow is the 1-based row holding the column headers.
	// Default: 1
	HeaderRow int

	// ChunkRows is how many rows are read between cancellation checks.
	// Default: 10000
	ChunkRows int

	// Raw returns unformatted cell values (dates as serial numbers, numbers
	// without number formats).
	Raw bool

	// KeepWhitespace returns cell values as stored. By default they are
	// trimmed like CSV cells.
	KeepWhitespace bool
}

func (o Options) withDefaults() Options {
	if o.HeaderRow <= 0 {
		o.HeaderRow = 1
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = csvparser.DefaultChunkRows
	}
	return o
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile opens a workbook from disk and reads one sheet.
func ParseFile(ctx context.Context, path string, opts Options) (*types.RawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	table, err := Parse(ctx, file, opts)
	if err != nil {
		return nil, err
	}
	table.SourceFile = path
	return table, nil
}

// Parse reads one sheet of a workbook stream.
//
// PARAMETERS:
//   - ctx: Checked every ChunkRows rows; cancellation aborts the read.
//   - r: The workbook bytes.
//   - opts: Sheet selection and read options.
//
// RETURNS:
//   - The headers and non-blank data rows.
//   - An error if the workbook cannot be opened, the sheet is missing or
//     empty, or the read is cancelled.
func Parse(ctx context.Context, r io.Reader, opts Options) (*types.RawTable, error) {
	opts = opts.withDefaults()

	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: opts.Raw})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no sheet named %q", sheetName)
	}

	return parseSheet(ctx, f, sheetName, opts)
}

// parseSheet streams the rows of a single sheet from an open workbook.
func parseSheet(ctx context.Context, f *excelize.File, sheetName string, opts Options) (*types.RawTable, error) {
	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	table := &types.RawTable{}
	rowIndex := 0
	for rows.Next() {
		rowIndex++

		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", rowIndex, err)
		}

		if rowIndex < opts.HeaderRow {
			continue
		}
		if rowIndex == opts.HeaderRow {
			table.Headers = csvparser.CleanHeaders(row)
			continue
		}

		if isRowEmpty(row) {
			continue
		}
		if opts.KeepWhitespace {
			table.Rows = append(table.Rows, zipRow(table.Headers, row))
		} else {
			table.Rows = append(table.Rows, csvparser.RowMap(table.Headers, row))
		}

		if len(table.Rows)%opts.ChunkRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("XLSX read interrupted after %d rows: %w", len(table.Rows), err)
			}
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("XLSX read interrupted: %w", err)
	}

	if table.Headers == nil {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}
	return table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// zipRow is csvparser.RowMap without trimming.
func zipRow(headers, row []string) map[string]string {
	m := make(map[string]string, len(headers))
	for i, header := range headers {
		if i < len(row) {
			m[header] = row[i]
		} else {
			m[header] = ""
		}
	}
	return m
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
