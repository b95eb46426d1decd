package ingest

import (
	"errors"
	"fmt"
)

// ErrPanic marks a Result produced from a recovered panic.
var ErrPanic = errors.New("ingestion aborted unexpectedly")

// UnsupportedFormatError is returned for a file that is neither CSV nor XLSX.
type UnsupportedFormatError struct {
	Filename string
	Ext      string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q for %s (expected .csv or .xlsx)", e.Ext, e.Filename)
}

// FileNotFoundError is returned when the input path does not exist.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// FileTooLargeError is returned when the input exceeds the configured ceiling.
type FileTooLargeError struct {
	Filename string
	Limit    int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds the %d MB file size limit", e.Filename, e.Limit>>20)
}
