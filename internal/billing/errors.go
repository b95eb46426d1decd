package billing

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// ResetConfirmationCode must be passed verbatim to Reset.
const ResetConfirmationCode = "DELETE ALL DATA"

var (
	ErrEmptyBatch            = errors.New("batch has no records")
	ErrMissingKey            = errors.New("carrier and cycle period are required")
	ErrInvoiceNumberRequired = errors.New("invoice number is required")
	ErrInvalidFilenameMode   = errors.New("filename mode must be carrier_cycle or cycle_carrier")
)

// DuplicateLogicalKeyError rejects an append to a (carrier, cycle) that
// already holds data.
type DuplicateLogicalKeyError struct {
	Key           types.CarrierCycle
	ExistingCount int
}

func (e *DuplicateLogicalKeyError) Error() string {
	return fmt.Sprintf("data already exists for %s (%d records); use replace to overwrite", e.Key, e.ExistingCount)
}

// DuplicateFileError rejects a file whose content was already ingested.
type DuplicateFileError struct {
	FileHash string
	Filename string
}

func (e *DuplicateFileError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("this file has already been uploaded (as %s)", e.Filename)
	}
	return "this file has already been uploaded"
}

// InvalidConfirmationCodeError is returned by Reset when the code is wrong.
type InvalidConfirmationCodeError struct{}

func (e *InvalidConfirmationCodeError) Error() string {
	return fmt.Sprintf("invalid confirmation code; type %q to reset all data", ResetConfirmationCode)
}
