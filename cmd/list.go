// =============================================================================
// Freight Billing Reconciler - List Commands
// =============================================================================
//
// COMMAND USAGE:
//   freightbill list shipments  [--client] [--carrier] [--cycle]
//   freightbill list aggregates [--client] [--carrier] [--cycle]
//   freightbill list clients    [--cycle]
//   freightbill list cycles
//   freightbill list carriers
//   freightbill list uploads    [--limit N] [--all]
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/report"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

var (
	listClient  string
	listCarrier string
	listCycle   string
	listLimit   int
	listAll     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print shipments, aggregates, summaries or the upload ledger",
}

// listRunner opens the app, runs fn with a tab writer and flushes it.
func listRunner(fn func(a *app, w *tabwriter.Writer)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fn(a, w)
		return w.Flush()
	}
}

func filter() types.Filter {
	return types.Filter{Client: listClient, Carrier: listCarrier, CyclePeriod: listCycle}
}

var listShipmentsCmd = &cobra.Command{
	Use:   "shipments",
	Short: "Shipment records, by client, carrier and ship date",
	RunE: listRunner(func(a *app, w *tabwriter.Writer) {
		row(w, "CLIENT", "CARRIER", "CYCLE", "TRACKING", "SERVICE", "SHIP DATE", "COST", "BILLABLE", "STATUS")
		for _, r := range a.billing.Query(filter()) {
			row(w, r.Client, r.Carrier, r.CyclePeriod, r.TrackingNumber, r.ServiceType,
				date(r.ShipDate), money(r.Cost), money(r.BillableAmount), string(r.InvoiceStatus))
		}
	}),
}

var listAggregatesCmd = &cobra.Command{
	Use:   "aggregates",
	Short: "Per-(client, carrier, cycle) billing totals",
	RunE: listRunner(func(a *app, w *tabwriter.Writer) {
		row(w, "CYCLE", "CLIENT", "CARRIER", "SHIPMENTS", "COST", "BILLABLE", "PROFIT", "MARGIN", "STATUS", "INVOICE")
		for _, g := range a.billing.Aggregates(filter()) {
			row(w, g.CyclePeriod, g.Client, g.Carrier, fmt.Sprint(g.ShipmentCount),
				money(g.TotalCost), money(g.TotalBillable), money(g.Profit), margin(g.ProfitMargin),
				string(g.InvoiceStatus), g.InvoiceNumber)
		}
	}),
}

var listClientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Per-(client, cycle) totals across carriers",
	RunE: listRunner(func(a *app, w *tabwriter.Writer) {
		row(w, "CYCLE", "CLIENT", "CARRIERS", "SHIPMENTS", "COST", "BILLABLE", "PROFIT", "MARGIN", "STATUS")
		for _, s := range a.billing.ClientSummaries(listCycle) {
			if listClient != "" && s.Client != listClient {
				continue
			}
			row(w, s.CyclePeriod, s.Client, fmt.Sprint(s.CarrierCount), fmt.Sprint(s.ShipmentCount),
				money(s.TotalCost), money(s.TotalBillable), money(s.Profit), margin(s.ProfitMargin),
				string(s.InvoiceStatus))
		}
	}),
}

var listCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Per-cycle totals across clients",
	RunE: listRunner(func(a *app, w *tabwriter.Writer) {
		row(w, "CYCLE", "CLIENTS", "SHIPMENTS", "COST", "BILLABLE", "PROFIT", "MARGIN")
		for _, c := range report.CycleSummaries(a.billing.ClientSummaries("")) {
			row(w, c.CyclePeriod, fmt.Sprint(c.Clients), fmt.Sprint(c.ShipmentCount),
				money(c.TotalCost), money(c.TotalBillable), money(c.Profit), margin(c.ProfitMargin))
		}
	}),
}

var listCarriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "Per-carrier performance across cycles",
	RunE: listRunner(func(a *app, w *tabwriter.Writer) {
		row(w, "CARRIER", "CYCLES", "SHIPMENTS", "COST", "BILLABLE", "PROFIT", "MARGIN")
		for _, c := range report.CarrierPerformances(a.billing.Aggregates(types.Filter{CyclePeriod: listCycle})) {
			row(w, c.Carrier, fmt.Sprint(c.Cycles), fmt.Sprint(c.ShipmentCount),
				money(c.TotalCost), money(c.TotalBillable), money(c.Profit), margin(c.ProfitMargin))
		}
	}),
}

var listUploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Upload ledger, newest first",
	RunE: listRunner(func(a *app, w *tabwriter.Writer) {
		row(w, "UPLOADED", "FILE", "CARRIER", "CYCLE", "RECORDS", "STATUS", "HASH")
		for _, e := range a.billing.UploadHistory(listLimit, listAll) {
			row(w, e.UploadTimestamp.Local().Format("2006-01-02 15:04"), e.Filename, e.Carrier, e.CyclePeriod,
				fmt.Sprint(e.RecordsImported), string(e.Status), e.FileHash)
		}
	}),
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listShipmentsCmd, listAggregatesCmd, listClientsCmd, listCyclesCmd, listCarriersCmd, listUploadsCmd)

	pf := listCmd.PersistentFlags()
	pf.StringVar(&listClient, "client", "", "Only this client")
	pf.StringVar(&listCarrier, "carrier", "", "Only this carrier")
	pf.StringVar(&listCycle, "cycle", "", "Only this cycle")
	listUploadsCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum entries (0 for all)")
	listUploadsCmd.Flags().BoolVar(&listAll, "all", false, "Include deleted entries")
}

// =============================================================================
// FORMATTING
// =============================================================================

func row(w io.Writer, cells ...string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func margin(m decimal.NullDecimal) string {
	if !m.Valid {
		return "-"
	}
	return m.Decimal.StringFixed(2) + "%"
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
