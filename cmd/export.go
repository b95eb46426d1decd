package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/report"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/xmlwriter"
)

var (
	exportCycle  string
	exportClient string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the billing workbook used to prepare invoices",
	Long: `The export command writes an XLSX workbook with the sheets
Client_Invoice_Totals, Carrier_Breakdown, Shipment_Line_Items and
Summary_Totals, optionally narrowed to one cycle and one client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path := outputPath(exportOut, report.ExportFileName(exportCycle, time.Now()))
		f := types.Filter{Client: exportClient, CyclePeriod: exportCycle}
		if err := writeOutput(path, func(w io.Writer) error {
			return report.WriteBillingExport(w, a.billing, f)
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Billing export written to %s\n", path)
		return nil
	},
}

var backupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write every table to one workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path := outputPath(backupOut, report.BackupFileName(time.Now()))
		if err := writeOutput(path, func(w io.Writer) error {
			return report.WriteBackup(w, a.billing.Snapshot())
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
		return nil
	},
}

var (
	invoiceClient string
	invoiceCycle  string
	invoiceOut    string
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Write one client's invoice for a cycle as XML",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		key := types.ClientCycle{Client: invoiceClient, CyclePeriod: invoiceCycle}
		inv, err := buildInvoice(a, key)
		if err != nil {
			return err
		}
		data, err := xmlwriter.Generate(inv)
		if err != nil {
			return err
		}

		path := outputPath(invoiceOut, report.InvoiceFileName(key, time.Now()))
		if err := writeOutput(path, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invoice for %s written to %s\n", key, path)
		return nil
	},
}

func buildInvoice(a *app, key types.ClientCycle) (xmlwriter.Invoice, error) {
	for _, s := range a.billing.ClientSummaries(key.CyclePeriod) {
		if s.Client != key.Client {
			continue
		}
		return xmlwriter.Invoice{
			Summary:   s,
			Carriers:  a.billing.CarrierBreakdown(key),
			Shipments: a.billing.Query(types.Filter{Client: key.Client, CyclePeriod: key.CyclePeriod}),
		}, nil
	}
	return xmlwriter.Invoice{}, errors.New("no billing data for " + key.String())
}

func init() {
	rootCmd.AddCommand(exportCmd, backupCmd, invoiceCmd)

	exportCmd.Flags().StringVar(&exportCycle, "cycle", "", "Only this cycle (default all)")
	exportCmd.Flags().StringVar(&exportClient, "client", "", "Only this client")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: output_dir/billing_checklist_<cycle>_<date>.xlsx)")

	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", "Output file (default: output_dir/billing_backup_<timestamp>.xlsx)")

	invoiceCmd.Flags().StringVar(&invoiceClient, "client", "", "Client name")
	invoiceCmd.Flags().StringVar(&invoiceCycle, "cycle", "", "Billing cycle")
	invoiceCmd.Flags().StringVarP(&invoiceOut, "out", "o", "", "Output file (default: output_dir/invoice_<client>_<cycle>.xml)")
	_ = invoiceCmd.MarkFlagRequired("client")
	_ = invoiceCmd.MarkFlagRequired("cycle")
}
