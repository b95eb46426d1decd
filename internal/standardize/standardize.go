// =============================================================================
// Freight Billing Reconciler - Row Standardizer
// =============================================================================
//
// The standardizer turns mapped raw rows into canonical ShipmentRecords.
//
//   Transform   : one raw row -> (ShipmentRecord, *RowError), pure
//   Standardize : Transform over every row, keep the good ones, count the rest
//
// FILTERING (in order):
//   1. rows whose cost or billable amount is null are dropped
//   2. rows whose cost and billable amount are both zero are dropped
//
// Row-level failures are never reported individually; only the counts are.
//
// =============================================================================

package standardize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// NoValidRecordsError is returned when no row survives filtering.
type NoValidRecordsError struct {
	RowsRead int
}

func (e *NoValidRecordsError) Error() string {
	return fmt.Sprintf("no valid records found with both cost and billable amount data (%d rows read)", e.RowsRead)
}

// Reasons a row is dropped.
var (
	ErrMissingAmount = errors.New("cost or billable amount missing")
	ErrZeroAmounts   = errors.New("cost and billable amount are both zero")
)

// RowError explains why one row was dropped.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// Params are the ingestion-level values injected into every record.
type Params struct {
	Carrier     string
	CyclePeriod string
	FileHash    string
	UploadTime  time.Time
}

// Counts summarizes one standardization run.
type Counts struct {
	// RowsRead is the number of raw rows offered.
	RowsRead int

	// MissingAmounts counts rows dropped for a null cost or billable amount.
	MissingAmounts int

	// ZeroAmounts counts rows dropped because both amounts were zero.
	ZeroAmounts int

	// Valid is the number of records kept.
	Valid int
}

// Dropped returns how many rows were filtered out.
func (c Counts) Dropped() int { return c.RowsRead - c.Valid }

// Transform builds one canonical record from a raw row. The returned
// *RowError is non-nil when the row must be filtered out.
func Transform(index int, raw map[string]string, m columnmap.Mapping, p Params) (types.ShipmentRecord, *RowError) {
	fields := m.Apply(raw)
	text := func(f columnmap.Field) string { return strings.TrimSpace(fields[f]) }

	cost := ParseAmount(fields[columnmap.FieldCost])
	billable := ParseAmount(fields[columnmap.FieldBillableAmount])

	rec := types.ShipmentRecord{
		Carrier:         p.Carrier,
		Client:          text(columnmap.FieldClient),
		TrackingNumber:  text(columnmap.FieldTrackingNumber),
		ServiceType:     text(columnmap.FieldServiceType),
		Weight:          ParseAmount(fields[columnmap.FieldWeight]),
		Zone:            text(columnmap.FieldZone),
		ShipDate:        ParseDate(fields[columnmap.FieldShipDate]),
		DeliveryDate:    ParseDate(fields[columnmap.FieldDeliveryDate]),
		InvoiceDate:     ParseDate(fields[columnmap.FieldInvoiceDate]),
		InvoiceStatus:   types.StatusReadyToBill,
		InvoiceNumber:   "",
		CyclePeriod:     p.CyclePeriod,
		UploadTimestamp: p.UploadTime,
		FileHash:        p.FileHash,
	}

	if !cost.Valid || !billable.Valid {
		return rec, &RowError{Row: index, Err: ErrMissingAmount}
	}
	rec.Cost = cost.Decimal
	rec.BillableAmount = billable.Decimal

	if rec.Cost.IsZero() && rec.BillableAmount.IsZero() {
		return rec, &RowError{Row: index, Err: ErrZeroAmounts}
	}

	return rec, nil
}

// Standardize transforms and filters all rows of a raw table.
func Standardize(table *types.RawTable, m columnmap.Mapping, p Params) ([]types.ShipmentRecord, Counts, error) {
	counts := Counts{RowsRead: len(table.Rows)}
	records := make([]types.ShipmentRecord, 0, len(table.Rows))

	for i, raw := range table.Rows {
		rec, rowErr := Transform(i+1, raw, m, p)
		if rowErr != nil {
			switch {
			case errors.Is(rowErr, ErrMissingAmount):
				counts.MissingAmounts++
			case errors.Is(rowErr, ErrZeroAmounts):
				counts.ZeroAmounts++
			}
			continue
		}
		records = append(records, rec)
	}

	counts.Valid = len(records)
	if counts.Valid == 0 {
		return nil, counts, &NoValidRecordsError{RowsRead: counts.RowsRead}
	}
	return records, counts, nil
}
