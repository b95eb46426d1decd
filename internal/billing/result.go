package billing

import "time"

// Result is returned by every mutating operation. Failures are reported
// through Success and Error rather than a separate error return.
type Result struct {
	// Success indicates whether the operation committed (or had nothing to do).
	Success bool

	// Message is a one-line, human-readable outcome.
	Message string

	// Error contains the cause when Success is false. It supports errors.As
	// for the typed errors of this package and of internal/store.
	Error error

	// Stats contains what the operation changed.
	Stats Stats
}

// Stats counts the effects of one operation.
type Stats struct {
	RecordsImported int
	RecordsReplaced int
	RecordsDeleted  int
	RecordsBilled   int

	AggregatesCreated int
	AggregatesUpdated int
	AggregatesDeleted int
	AggregatesBilled  int

	LedgerEntriesDeleted int

	// LedgerID is the id of the entry an ingestion created.
	LedgerID string

	Duration time.Duration
}

func failed(err error) Result {
	return Result{Success: false, Message: err.Error(), Error: err}
}
