package store

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound means the table was never saved. Callers treat it as
	// an empty table; every other load failure is fatal.
	ErrTableNotFound = errors.New("table not found")

	// ErrJournalPending means a commit reached the journal but not every
	// table. The journal is replayed on the next Open.
	ErrJournalPending = errors.New("commit journaled but not fully applied")

	ErrClosed = errors.New("store is closed")
)

// StorageIOError reports a backend failure other than a missing table.
type StorageIOError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageIOError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

func ioError(op, table string, err error) error {
	var sio *StorageIOError
	if errors.As(err, &sio) {
		return err
	}
	return &StorageIOError{Op: op, Table: table, Err: err}
}
