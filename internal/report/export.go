package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
	"github.com/ginjaninja78/freight-billing-reconciler/pkg/utils"
)

// =============================================================================
// BILLING EXPORT
// =============================================================================

// Sheet names of the billing export.
const (
	SheetClientTotals     = "Client_Invoice_Totals"
	SheetCarrierBreakdown = "Carrier_Breakdown"
	SheetLineItems        = "Shipment_Line_Items"
	SheetSummaryTotals    = "Summary_Totals"
)

// File name templates, filled by utils.GenerateOutputFileName.
const (
	ExportNameFormat  = "billing_checklist_{cycle}_{date}.xlsx"
	BackupNameFormat  = "billing_backup_{timestamp}.xlsx"
	InvoiceNameFormat = "invoice_{client}_{cycle}.xml"
)

// Source is the read side of the billing service.
type Source interface {
	ClientSummaries(cycle string) []types.ClientCycleSummary
	Aggregates(f types.Filter) []types.BillingAggregate
	Query(f types.Filter) []types.ShipmentRecord
}

// ExportFileName names a billing export; an empty cycle reads "all".
func ExportFileName(cycle string, now time.Time) string {
	if cycle == "" {
		cycle = "all"
	}
	return utils.GenerateOutputFileName(ExportNameFormat, map[string]string{"cycle": cycle}, now)
}

// BackupFileName names a backup workbook.
func BackupFileName(now time.Time) string {
	return utils.GenerateOutputFileName(BackupNameFormat, nil, now)
}

// InvoiceFileName names an invoice XML document.
func InvoiceFileName(key types.ClientCycle, now time.Time) string {
	return utils.GenerateOutputFileName(InvoiceNameFormat,
		map[string]string{"client": key.Client, "cycle": key.CyclePeriod}, now)
}

// WriteBillingExport writes the invoicing workbook for the filtered data.
//
// SHEETS:
//   - Client_Invoice_Totals : one row per (client, cycle)
//   - Carrier_Breakdown     : one row per (client, carrier, cycle)
//   - Shipment_Line_Items   : one row per shipment (only when there are any)
//   - Summary_Totals        : Metric / Value pairs (only when there are clients)
//
// PARAMETERS:
//   - w: The destination.
//   - src: The billing service.
//   - f: Narrows every sheet. Carrier narrows the breakdown and line items.
//
// RETURNS:
//   - An error if the workbook cannot be built or written.
func WriteBillingExport(w io.Writer, src Source, f types.Filter) error {
	var summaries []types.ClientCycleSummary
	for _, s := range src.ClientSummaries(f.CyclePeriod) {
		if f.Client == "" || s.Client == f.Client {
			summaries = append(summaries, s)
		}
	}
	aggs := src.Aggregates(f)
	records := src.Query(f)

	wb := newWorkbook()
	defer wb.Close()

	rows := make([][]interface{}, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []interface{}{
			s.Client, s.CyclePeriod, s.CarrierCount, s.ShipmentCount,
			money(s.TotalCost), money(s.TotalBillable), money(s.Profit),
			nullable(s.ProfitMargin), string(s.InvoiceStatus),
		})
	}
	if err := wb.sheet(SheetClientTotals, []string{
		"client", "cycle_period", "carrier_count", "shipment_count",
		"total_cost", "total_billable", "profit", "profit_margin", "invoice_status",
	}, rows); err != nil {
		return err
	}

	rows = make([][]interface{}, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, []interface{}{
			a.Client, a.Carrier, a.CyclePeriod, a.ShipmentCount,
			money(a.TotalCost), money(a.TotalBillable), money(a.Profit),
			nullable(a.ProfitMargin), string(a.InvoiceStatus),
			a.InvoiceNumber, date(a.InvoiceDate), a.Notes,
		})
	}
	if err := wb.sheet(SheetCarrierBreakdown, []string{
		"client", "carrier", "cycle_period", "shipment_count",
		"total_cost", "total_billable", "profit", "profit_margin",
		"invoice_status", "invoice_number", "invoice_date", "notes",
	}, rows); err != nil {
		return err
	}

	if len(records) > 0 {
		rows = make([][]interface{}, 0, len(records))
		for _, r := range records {
			rows = append(rows, []interface{}{
				r.Client, r.Carrier, r.TrackingNumber, r.ServiceType,
				date(r.ShipDate), money(r.Cost), money(r.BillableAmount), r.CyclePeriod,
			})
		}
		if err := wb.sheet(SheetLineItems, []string{
			"client", "carrier", "tracking_number", "service_type",
			"ship_date", "cost", "billable_amount", "cycle_period",
		}, rows); err != nil {
			return err
		}
	}

	if len(summaries) > 0 {
		t := ComputeTotals(summaries)
		if err := wb.sheet(SheetSummaryTotals, []string{"Metric", "Value"}, [][]interface{}{
			{"Total Clients", t.Clients},
			{"Total Shipments", t.Shipments},
			{"Total Cost", money(t.TotalCost)},
			{"Total Billable", money(t.TotalBillable)},
			{"Total Profit", money(t.TotalProfit)},
			{"Average Margin %", nullable(t.AverageMargin)},
		}); err != nil {
			return err
		}
	}

	return wb.write(w)
}

// =============================================================================
// BACKUP
// =============================================================================

// WriteBackup writes every table to one workbook, one sheet per table in
// name order. Cells are written exactly as persisted.
func WriteBackup(w io.Writer, tables map[string]store.Table) error {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	wb := newWorkbook()
	defer wb.Close()

	for _, name := range names {
		t := tables[name]
		rows := make([][]interface{}, len(t.Rows))
		for i, r := range t.Rows {
			row := make([]interface{}, len(t.Columns))
			for j, c := range t.Columns {
				row[j] = r[c]
			}
			rows[i] = row
		}
		if err := wb.sheet(name, t.Columns, rows); err != nil {
			return err
		}
	}
	return wb.write(w)
}

// =============================================================================
// WORKBOOK HELPERS
// =============================================================================

type workbook struct {
	f      *excelize.File
	sheets int
	header int
}

func newWorkbook() *workbook {
	return &workbook{f: excelize.NewFile(), header: -1}
}

func (wb *workbook) Close() error { return wb.f.Close() }

// sheet adds a sheet with a bold header row. The first call renames the
// default sheet.
func (wb *workbook) sheet(name string, headers []string, rows [][]interface{}) error {
	if wb.sheets == 0 {
		if err := wb.f.SetSheetName(wb.f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	} else if _, err := wb.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	wb.sheets++

	if wb.header < 0 {
		style, err := wb.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		wb.header = style
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := wb.f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if len(headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			return err
		}
		if err := wb.f.SetCellStyle(name, "A1", last, wb.header); err != nil {
			return fmt.Errorf("failed to style %s header: %w", name, err)
		}
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.f.SetSheetRow(name, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i+2, err)
		}
	}
	return nil
}

func (wb *workbook) write(w io.Writer) error {
	if _, err := wb.f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// money writes amounts as numbers so the sheet can sum them.
func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

func nullable(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return money(d.Decimal)
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
