package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/standardize"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// Persisted table names.
const (
	TableShipments  = "shipments"
	TableAggregates = "billing_aggregates"
	TableLedger     = "upload_ledger"
	TableSettings   = "settings"
	TableProcessed  = "processed_sources"
)

// AllTables lists every persisted table in commit order.
var AllTables = []string{TableAggregates, TableLedger, TableProcessed, TableSettings, TableShipments}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

type columnKind int

const (
	kindString columnKind = iota
	kindNumber
	kindDate
	kindTimestamp
)

type column struct {
	name string
	kind columnKind
}

// schema is the fixed column set of one table.
type schema []column

func (s schema) names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.name
	}
	return out
}

var shipmentSchema = schema{
	{"carrier", kindString},
	{"client", kindString},
	{"tracking_number", kindString},
	{"service_type", kindString},
	{"cost", kindNumber},
	{"billable_amount", kindNumber},
	{"weight", kindNumber},
	{"zone", kindString},
	{"ship_date", kindDate},
	{"delivery_date", kindDate},
	{"invoice_status", kindString},
	{"invoice_number", kindString},
	{"invoice_date", kindDate},
	{"cycle_period", kindString},
	{"upload_timestamp", kindTimestamp},
	{"file_hash", kindString},
}

var aggregateSchema = schema{
	{"client", kindString},
	{"carrier", kindString},
	{"cycle_period", kindString},
	{"shipment_count", kindNumber},
	{"total_cost", kindNumber},
	{"total_billable", kindNumber},
	{"profit", kindNumber},
	{"profit_margin", kindNumber},
	{"invoice_status", kindString},
	{"invoice_number", kindString},
	{"invoice_date", kindDate},
	{"notes", kindString},
}

var ledgerSchema = schema{
	{"id", kindString},
	{"filename", kindString},
	{"file_hash", kindString},
	{"upload_timestamp", kindTimestamp},
	{"records_imported", kindNumber},
	{"carrier", kindString},
	{"cycle_period", kindString},
	{"status", kindString},
	{"deleted_timestamp", kindTimestamp},
	{"source_path", kindString},
}

var settingsSchema = schema{
	{"input_folder", kindString},
	{"filename_mode", kindString},
}

var processedSchema = schema{
	{"path", kindString},
	{"processed_at", kindTimestamp},
}

var schemas = map[string]schema{
	TableShipments:  shipmentSchema,
	TableAggregates: aggregateSchema,
	TableLedger:     ledgerSchema,
	TableSettings:   settingsSchema,
	TableProcessed:  processedSchema,
}

// LegacyFiles are the workbook names older data folders used, per table.
var LegacyFiles = map[string]string{
	TableShipments:  "shipment_data",
	TableAggregates: "billing_checklist",
	TableLedger:     "upload_log",
}

// legacyColumns maps old column names to current ones, per table.
var legacyColumns = map[string]map[string]string{
	TableShipments: {
		"invoice number": "invoice_number",
		"invoice date":   "invoice_date",
	},
	TableAggregates: {
		"invoice number": "invoice_number",
		"invoice date":   "invoice_date",
	},
	TableLedger: {
		"upload_date": "upload_timestamp",
	},
}

// Columns returns the current column set of a table.
func Columns(table string) []string {
	return schemas[table].names()
}

// conform renames legacy columns and back-fills every missing column so the
// table matches its current schema. Unknown columns are dropped.
func conform(table string, t store.Table) store.Table {
	sch := schemas[table]
	renames := legacyColumns[table]

	out := store.Table{Columns: sch.names(), Rows: make([]store.Row, 0, len(t.Rows))}
	for _, raw := range t.Rows {
		row := make(store.Row, len(sch))
		legacy := make(map[string]string)
		for k, v := range raw {
			key := strings.TrimSpace(k)
			if renamed, ok := renames[strings.ToLower(key)]; ok {
				legacy[renamed] = v
				continue
			}
			if sch.has(key) {
				row[key] = v
			}
		}
		// A non-empty current column wins over its legacy twin.
		for key, v := range legacy {
			if row[key] == "" {
				row[key] = v
			}
		}

		for _, c := range sch {
			if _, ok := row[c.name]; !ok {
				row[c.name] = defaultValue(c.kind)
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func (s schema) has(name string) bool {
	for _, c := range s {
		if c.name == name {
			return true
		}
	}
	return false
}

func defaultValue(k columnKind) string {
	if k == kindNumber {
		return "0"
	}
	return ""
}

// =============================================================================
// CELL CODECS
// =============================================================================

func formatDecimal(d decimal.Decimal) string { return d.String() }

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func formatTimestampPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTimestamp(*t)
}

func parseDecimal(s string) decimal.Decimal {
	d := standardize.ParseAmount(s)
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Legacy workbooks store counts as floats.
	return int(parseDecimal(s).IntPart())
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t.UTC()
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	// Excel serial with a time fraction.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseTimestampPtr(s string) *time.Time {
	t := parseTimestamp(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// =============================================================================
// ROW CODECS
// =============================================================================

func encodeShipment(r types.ShipmentRecord) store.Row {
	return store.Row{
		"carrier":          r.Carrier,
		"client":           r.Client,
		"tracking_number":  r.TrackingNumber,
		"service_type":     r.ServiceType,
		"cost":             formatDecimal(r.Cost),
		"billable_amount":  formatDecimal(r.BillableAmount),
		"weight":           formatNullDecimal(r.Weight),
		"zone":             r.Zone,
		"ship_date":        formatDate(r.ShipDate),
		"delivery_date":    formatDate(r.DeliveryDate),
		"invoice_status":   string(r.InvoiceStatus),
		"invoice_number":   r.InvoiceNumber,
		"invoice_date":     formatDate(r.InvoiceDate),
		"cycle_period":     r.CyclePeriod,
		"upload_timestamp": formatTimestamp(r.UploadTimestamp),
		"file_hash":        r.FileHash,
	}
}

func decodeShipment(row store.Row) types.ShipmentRecord {
	return types.ShipmentRecord{
		Carrier:         row["carrier"],
		Client:          row["client"],
		TrackingNumber:  row["tracking_number"],
		ServiceType:     row["service_type"],
		Cost:            parseDecimal(row["cost"]),
		BillableAmount:  parseDecimal(row["billable_amount"]),
		Weight:          standardize.ParseAmount(row["weight"]),
		Zone:            row["zone"],
		ShipDate:        standardize.ParseDate(row["ship_date"]),
		DeliveryDate:    standardize.ParseDate(row["delivery_date"]),
		InvoiceStatus:   types.ParseInvoiceStatus(row["invoice_status"]),
		InvoiceNumber:   row["invoice_number"],
		InvoiceDate:     standardize.ParseDate(row["invoice_date"]),
		CyclePeriod:     row["cycle_period"],
		UploadTimestamp: parseTimestamp(row["upload_timestamp"]),
		FileHash:        row["file_hash"],
	}
}

func encodeAggregate(a types.BillingAggregate) store.Row {
	return store.Row{
		"client":         a.Client,
		"carrier":        a.Carrier,
		"cycle_period":   a.CyclePeriod,
		"shipment_count": strconv.Itoa(a.ShipmentCount),
		"total_cost":     formatDecimal(a.TotalCost),
		"total_billable": formatDecimal(a.TotalBillable),
		"profit":         formatDecimal(a.Profit),
		"profit_margin":  formatNullDecimal(a.ProfitMargin),
		"invoice_status": string(a.InvoiceStatus),
		"invoice_number": a.InvoiceNumber,
		"invoice_date":   formatDate(a.InvoiceDate),
		"notes":          a.Notes,
	}
}

// decodeAggregate recomputes profit and margin from the totals rather than
// trusting the stored derived values.
func decodeAggregate(row store.Row) types.BillingAggregate {
	a := types.BillingAggregate{
		Client:        row["client"],
		Carrier:       row["carrier"],
		CyclePeriod:   row["cycle_period"],
		ShipmentCount: parseInt(row["shipment_count"]),
		TotalCost:     parseDecimal(row["total_cost"]),
		TotalBillable: parseDecimal(row["total_billable"]),
		InvoiceStatus: types.ParseInvoiceStatus(row["invoice_status"]),
		InvoiceNumber: row["invoice_number"],
		InvoiceDate:   standardize.ParseDate(row["invoice_date"]),
		Notes:         row["notes"],
	}
	a.Recompute()
	return a
}

func encodeLedger(e types.LedgerEntry) store.Row {
	return store.Row{
		"id":                e.ID,
		"filename":          e.Filename,
		"file_hash":         e.FileHash,
		"upload_timestamp":  formatTimestamp(e.UploadTimestamp),
		"records_imported":  strconv.Itoa(e.RecordsImported),
		"carrier":           e.Carrier,
		"cycle_period":      e.CyclePeriod,
		"status":            string(e.Status),
		"deleted_timestamp": formatTimestampPtr(e.DeletedTimestamp),
		"source_path":       e.SourcePath,
	}
}

func decodeLedger(row store.Row) types.LedgerEntry {
	status := types.LedgerActive
	if strings.EqualFold(strings.TrimSpace(row["status"]), string(types.LedgerDeleted)) {
		status = types.LedgerDeleted
	}
	return types.LedgerEntry{
		ID:               row["id"],
		Filename:         row["filename"],
		FileHash:         row["file_hash"],
		UploadTimestamp:  parseTimestamp(row["upload_timestamp"]),
		RecordsImported:  parseInt(row["records_imported"]),
		Carrier:          row["carrier"],
		CyclePeriod:      row["cycle_period"],
		Status:           status,
		DeletedTimestamp: parseTimestampPtr(row["deleted_timestamp"]),
		SourcePath:       row["source_path"],
	}
}

func encodeProcessed(p types.ProcessedSource) store.Row {
	return store.Row{"path": p.Path, "processed_at": formatTimestamp(p.ProcessedAt)}
}

func decodeProcessed(row store.Row) types.ProcessedSource {
	return types.ProcessedSource{Path: row["path"], ProcessedAt: parseTimestamp(row["processed_at"])}
}
