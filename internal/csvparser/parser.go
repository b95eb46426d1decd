// =============================================================================
// Freight Billing Reconciler - CSV Parser Module
// =============================================================================
//
// This module reads carrier CSV billing files into header-keyed rows. It
// handles the variations seen across carriers:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Multi-line headers
//   - Custom data start rows
//   - UTF-8 (with or without BOM), Windows-1252 and ISO-8859-1 encodings
//
// FEATURES:
//   - Streaming: rows are decoded one at a time from any io.Reader
//   - Cancellation: the context is checked every chunkRows rows
//   - Duplicate headers are made unique so no column is silently lost
//
// =============================================================================

package csvparser

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// DefaultChunkRows is used when Parse is given a non-positive chunk size.
const DefaultChunkRows = 10000

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a whole CSV stream into a RawTable.
//
// PARAMETERS:
//   - ctx: Checked every chunkRows rows; cancellation aborts the read.
//   - r: The CSV bytes.
//   - settings: Delimiter, header layout and encoding.
//   - chunkRows: Rows between cancellation checks.
//
// RETURNS:
//   - The headers and data rows. Blank rows are skipped.
//   - An error if the stream is empty, malformed or cancelled.
func Parse(ctx context.Context, r io.Reader, settings config.CSVSettings, chunkRows int) (*types.RawTable, error) {
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}

	parser, err := NewStreamingParser(r, settings)
	if err != nil {
		return nil, err
	}

	table := &types.RawTable{Headers: parser.Headers()}
	for parser.Next() {
		table.Rows = append(table.Rows, parser.Row())

		if len(table.Rows)%chunkRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("CSV read interrupted after %d rows: %w", len(table.Rows), err)
			}
		}
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("CSV read interrupted: %w", err)
	}

	return table, nil
}

// decoderFor returns the text decoder for a configured encoding name.
func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		// Strip a leading BOM if present.
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported CSV encoding %q", name)
	}
}

// CheckEncoding reports an error for encoding names Parse cannot decode.
func CheckEncoding(name string) error {
	_, err := decoderFor(name)
	return err
}

// configureReader sets up the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Carrier exports are ragged; rows may be shorter or longer than the header.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
}

// extractHeaders builds the header list from the header rows. Multi-row
// headers are joined column-wise with a space.
func extractHeaders(headerRows [][]string, settings config.CSVSettings) ([]string, error) {
	if settings.HeaderRows <= 0 {
		return nil, fmt.Errorf("header_rows must be at least 1")
	}
	if len(headerRows) < settings.HeaderRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if settings.HeaderRows == 1 {
		return cleanHeaders(headerRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < settings.HeaderRows; i++ {
		if len(headerRows[i]) > maxCols {
			maxCols = len(headerRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < settings.HeaderRows; row++ {
			if col < len(headerRows[row]) {
				if value := strings.TrimSpace(headerRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers), nil
}

// cleanHeaders trims headers, names blank ones "Column_N" and suffixes
// repeats with ".1", ".2" so every header is a unique row key.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}

		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		} else {
			seen[header] = 0
		}
		cleaned[i] = header
	}

	return cleaned
}

// CleanHeaders is cleanHeaders for the other readers.
func CleanHeaders(headers []string) []string { return cleanHeaders(headers) }

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// RowMap zips one record against the headers. Missing cells become "".
func RowMap(headers, row []string) map[string]string {
	m := make(map[string]string, len(headers))
	for i, header := range headers {
		if i < len(row) {
			m[header] = strings.TrimSpace(row[i])
		} else {
			m[header] = ""
		}
	}
	return m
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads CSV rows one at a time.
//
// USAGE:
//
//	parser, err := csvparser.NewStreamingParser(r, settings)
//	if err != nil { ... }
//	for parser.Next() {
//	    row := parser.Row()
//	}
//	if err := parser.Err(); err != nil { ... }
type StreamingParser struct {
	reader     *csv.Reader
	headers    []string
	currentRow map[string]string
	rowNumber  int
	err        error
	settings   config.CSVSettings
}

// NewStreamingParser decodes the header rows and positions the parser at the
// first data row.
func NewStreamingParser(r io.Reader, settings config.CSVSettings) (*StreamingParser, error) {
	if settings.HeaderRows == 0 {
		settings.HeaderRows = 1
	}

	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bufio.NewReader(transform.NewReader(r, decoder)))
	configureReader(reader, settings)

	parser := &StreamingParser{
		reader:   reader,
		settings: settings,
	}

	if err := parser.readHeaders(); err != nil {
		return nil, err
	}
	if err := parser.skipToDataStart(); err != nil {
		return nil, err
	}

	return parser, nil
}

// readHeaders reads and processes the header rows.
func (p *StreamingParser) readHeaders() error {
	headerRows := make([][]string, 0, p.settings.HeaderRows)

	for i := 0; i < p.settings.HeaderRows; i++ {
		row, err := p.reader.Read()
		if err == io.EOF {
			if i == 0 {
				return fmt.Errorf("CSV file is empty")
			}
			return fmt.Errorf("unexpected end of file while reading headers")
		}
		if err != nil {
			return fmt.Errorf("error reading header row %d: %w", i+1, err)
		}
		headerRows = append(headerRows, row)
		p.rowNumber++
	}

	headers, err := extractHeaders(headerRows, p.settings)
	if err != nil {
		return err
	}

	p.headers = headers
	return nil
}

// skipToDataStart skips rows until reaching the data start row.
func (p *StreamingParser) skipToDataStart() error {
	targetRow := p.settings.DataStartRow
	if targetRow <= 0 {
		targetRow = p.settings.HeaderRows + 1
	}

	for p.rowNumber < targetRow-1 {
		_, err := p.reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error skipping to data start: %w", err)
		}
		p.rowNumber++
	}

	return nil
}

// Next advances to the next non-blank row.
func (p *StreamingParser) Next() bool {
	for p.err == nil {
		row, err := p.reader.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			p.err = fmt.Errorf("error reading row %d: %w", p.rowNumber+1, err)
			return false
		}
		p.rowNumber++

		if isRowEmpty(row) {
			continue
		}

		p.currentRow = RowMap(p.headers, row)
		return true
	}
	return false
}

// Row returns the current row as a map of header -> value.
func (p *StreamingParser) Row() map[string]string {
	return p.currentRow
}

// Headers returns the column headers.
func (p *StreamingParser) Headers() []string {
	return p.headers
}

// RowNumber returns the 1-based file row of the current row.
func (p *StreamingParser) RowNumber() int {
	return p.rowNumber
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}
