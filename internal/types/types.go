// =============================================================================
// Freight Billing Reconciler - Shared Types
// =============================================================================
//
// This package contains the domain types shared across modules to avoid
// import cycles. Types defined here are used by:
//   - standardize (produces ShipmentRecords)
//   - billing     (owns the ledger, store and aggregates)
//   - report      (reads summaries and records)
//   - xmlwriter   (renders invoices)
//
// =============================================================================

package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS VALUES
// =============================================================================

// InvoiceStatus is the billing state of a shipment record or aggregate.
type InvoiceStatus string

const (
	// StatusReadyToBill is the initial state of every ingested record.
	StatusReadyToBill InvoiceStatus = "Ready to Bill"

	// StatusBilled is terminal; only delete and re-ingest reverts it.
	StatusBilled InvoiceStatus = "Billed"
)

// ParseInvoiceStatus maps a persisted status string back to an InvoiceStatus.
// Unknown or empty values are treated as Ready to Bill.
func ParseInvoiceStatus(s string) InvoiceStatus {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "billed":
		return StatusBilled
	default:
		return StatusReadyToBill
	}
}

// LedgerStatus is the audit state of an upload ledger entry.
type LedgerStatus string

const (
	LedgerActive  LedgerStatus = "Active"
	LedgerDeleted LedgerStatus = "Deleted"
)

// =============================================================================
// SHIPMENT RECORDS
// =============================================================================

// ShipmentRecord is one canonical shipment line. Cost and BillableAmount are
// never null once a record is stored.
type ShipmentRecord struct {
	Carrier        string
	Client         string
	TrackingNumber string
	ServiceType    string

	Cost           decimal.Decimal
	BillableAmount decimal.Decimal
	Weight         decimal.NullDecimal

	Zone string

	ShipDate     *time.Time
	DeliveryDate *time.Time
	InvoiceDate  *time.Time

	InvoiceStatus InvoiceStatus
	InvoiceNumber string

	CyclePeriod     string
	UploadTimestamp time.Time
	FileHash        string
}

// CarrierCycle returns the (carrier, cycle) logical key of the record.
func (r ShipmentRecord) CarrierCycle() CarrierCycle {
	return CarrierCycle{Carrier: r.Carrier, CyclePeriod: r.CyclePeriod}
}

// ClientCycle returns the (client, cycle) logical key of the record.
func (r ShipmentRecord) ClientCycle() ClientCycle {
	return ClientCycle{Client: r.Client, CyclePeriod: r.CyclePeriod}
}

// AggregateKey returns the (client, carrier, cycle) key of the record.
func (r ShipmentRecord) AggregateKey() AggregateKey {
	return AggregateKey{Client: r.Client, Carrier: r.Carrier, CyclePeriod: r.CyclePeriod}
}

// =============================================================================
// KEYS
// =============================================================================

// CarrierCycle identifies one carrier file's reconciliation unit.
type CarrierCycle struct {
	Carrier     string
	CyclePeriod string
}

func (k CarrierCycle) String() string { return k.Carrier + " - " + k.CyclePeriod }

// ClientCycle identifies one invoicing unit spanning all carriers.
type ClientCycle struct {
	Client      string
	CyclePeriod string
}

func (k ClientCycle) String() string { return k.Client + " - " + k.CyclePeriod }

// AggregateKey identifies a BillingAggregate.
type AggregateKey struct {
	Client      string
	Carrier     string
	CyclePeriod string
}

// =============================================================================
// AGGREGATES
// =============================================================================

// BillingAggregate is the additive per-(client, carrier, cycle) rollup.
type BillingAggregate struct {
	Client        string
	Carrier       string
	CyclePeriod   string
	ShipmentCount int

	TotalCost     decimal.Decimal
	TotalBillable decimal.Decimal
	Profit        decimal.Decimal

	// ProfitMargin is null when TotalBillable is zero.
	ProfitMargin decimal.NullDecimal

	InvoiceStatus InvoiceStatus
	InvoiceNumber string
	InvoiceDate   *time.Time
	Notes         string
}

// Key returns the aggregate's identity.
func (a BillingAggregate) Key() AggregateKey {
	return AggregateKey{Client: a.Client, Carrier: a.Carrier, CyclePeriod: a.CyclePeriod}
}

// Recompute refreshes Profit and ProfitMargin from the totals.
func (a *BillingAggregate) Recompute() {
	a.Profit = a.TotalBillable.Sub(a.TotalCost)
	a.ProfitMargin = ProfitMargin(a.Profit, a.TotalBillable)
}

// ClientCycleSummary is the cross-carrier rollup for one (client, cycle). It is
// derived on read and never stored.
type ClientCycleSummary struct {
	Client        string
	CyclePeriod   string
	CarrierCount  int
	ShipmentCount int

	TotalCost     decimal.Decimal
	TotalBillable decimal.Decimal
	Profit        decimal.Decimal
	ProfitMargin  decimal.NullDecimal

	// InvoiceStatus is Billed only when every contributing aggregate is Billed.
	InvoiceStatus InvoiceStatus
}

// ProfitMargin returns round(profit/billable*100, 2), or null when billable is zero.
func ProfitMargin(profit, billable decimal.Decimal) decimal.NullDecimal {
	if billable.IsZero() {
		return decimal.NullDecimal{}
	}
	margin := profit.DivRound(billable, 16).Mul(decimal.NewFromInt(100)).Round(2)
	return decimal.NewNullDecimal(margin)
}

// =============================================================================
// UPLOAD LEDGER
// =============================================================================

// LedgerEntry records one successful ingestion. Entries are never removed,
// only flipped to Deleted.
type LedgerEntry struct {
	ID               string
	Filename         string
	FileHash         string
	UploadTimestamp  time.Time
	RecordsImported  int
	Carrier          string
	CyclePeriod      string
	Status           LedgerStatus
	DeletedTimestamp *time.Time

	// SourcePath is set only for entries created by a folder scan.
	SourcePath string
}

// CarrierCycle returns the logical key of the entry.
func (e LedgerEntry) CarrierCycle() CarrierCycle {
	return CarrierCycle{Carrier: e.Carrier, CyclePeriod: e.CyclePeriod}
}

// Active reports whether the entry still counts for deduplication.
func (e LedgerEntry) Active() bool { return e.Status == LedgerActive }

// =============================================================================
// SETTINGS
// =============================================================================

// Filename parsing modes for folder scans.
const (
	FilenameCarrierCycle = "carrier_cycle"
	FilenameCycleCarrier = "cycle_carrier"
)

// Settings is the small persisted configuration record.
type Settings struct {
	InputFolder  string
	FilenameMode string
}

// ProcessedSource marks a folder-scan path as already ingested.
type ProcessedSource struct {
	Path        string
	ProcessedAt time.Time
}

// =============================================================================
// FILTERS
// =============================================================================

// Filter narrows queries. Empty fields match everything.
type Filter struct {
	Client      string
	Carrier     string
	CyclePeriod string
}

// MatchRecord reports whether r passes the filter.
func (f Filter) MatchRecord(r ShipmentRecord) bool {
	return f.match(r.Client, r.Carrier, r.CyclePeriod)
}

// MatchAggregate reports whether a passes the filter.
func (f Filter) MatchAggregate(a BillingAggregate) bool {
	return f.match(a.Client, a.Carrier, a.CyclePeriod)
}

func (f Filter) match(client, carrier, cycle string) bool {
	if f.Client != "" && f.Client != client {
		return false
	}
	if f.Carrier != "" && f.Carrier != carrier {
		return false
	}
	if f.CyclePeriod != "" && f.CyclePeriod != cycle {
		return false
	}
	return true
}

// =============================================================================
// RAW FILE DATA
// =============================================================================

// RawTable is a source file read into header-keyed rows, before any mapping.
type RawTable struct {
	// Headers contains the cleaned column headers in file order.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// SourceFile is the name the table was read from, if known.
	SourceFile string
}

// RowCount returns the number of data rows.
func (t *RawTable) RowCount() int { return len(t.Rows) }
