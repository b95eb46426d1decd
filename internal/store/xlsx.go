package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/xlsxparser"
)

// XLSXBackend stores each table as <dir>/<name>.xlsx with a single sheet named
// after the table. Row 1 holds the column names.
type XLSXBackend struct {
	dir    string
	legacy map[string]string
}

// NewXLSXBackend creates the directory if needed.
func NewXLSXBackend(dir string) (*XLSXBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &XLSXBackend{dir: dir}, nil
}

// Path returns the workbook path of a table.
func (b *XLSXBackend) Path(name string) string {
	return filepath.Join(b.dir, name+".xlsx")
}

// AddLegacyName makes LoadTable fall back to <dir>/<file>.xlsx while the
// table's own workbook does not exist. The next save writes the current name.
func (b *XLSXBackend) AddLegacyName(name, file string) {
	if b.legacy == nil {
		b.legacy = make(map[string]string)
	}
	b.legacy[name] = file
}

// locate returns the workbook to load for a table.
func (b *XLSXBackend) locate(name string) (string, error) {
	path := b.Path(name)
	_, err := os.Stat(path)
	if err == nil || !os.IsNotExist(err) {
		return path, err
	}

	file, ok := b.legacy[name]
	if !ok {
		return "", err
	}
	legacyPath := b.Path(file)
	if _, lerr := os.Stat(legacyPath); lerr != nil {
		if os.IsNotExist(lerr) {
			return "", err
		}
		return "", lerr
	}
	return legacyPath, nil
}

func (b *XLSXBackend) LoadTable(ctx context.Context, name string) (Table, error) {
	path, err := b.locate(name)
	if err != nil {
		if os.IsNotExist(err) {
			return Table{}, ErrTableNotFound
		}
		return Table{}, ioError("stat", name, err)
	}

	// Always the first sheet: older data files were written with other names.
	raw, err := xlsxparser.ParseFile(ctx, path, xlsxparser.Options{Raw: true, KeepWhitespace: true})
	if err != nil {
		return Table{}, ioError("load", name, err)
	}

	t := Table{
		Columns: raw.Headers,
		Rows:    make([]Row, len(raw.Rows)),
	}
	for i, r := range raw.Rows {
		t.Rows[i] = Row(r)
	}
	return t, nil
}

func (b *XLSXBackend) SaveTable(ctx context.Context, name string, t Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", name); err != nil {
		return ioError("save", name, err)
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return ioError("save", name, err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return ioError("save", name, err)
	}

	for i, r := range t.Rows {
		values := make([]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			values[j] = r[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return ioError("save", name, err)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return ioError("save", name, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return ioError("save", name, err)
	}

	return b.writeAtomic(name, f)
}

// writeAtomic writes the workbook beside its target and renames it in.
func (b *XLSXBackend) writeAtomic(name string, f *excelize.File) error {
	path := b.Path(name)

	tmp, err := os.CreateTemp(b.dir, "."+name+"-*.xlsx.tmp")
	if err != nil {
		return ioError("save", name, err)
	}
	tempPath := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tempPath)
		return ioError("save", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tempPath)
		return ioError("save", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return ioError("save", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return ioError("save", name, err)
	}
	return nil
}

func (b *XLSXBackend) Close() error { return nil }
