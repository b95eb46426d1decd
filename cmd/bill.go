package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
)

var (
	billClient  string
	billCycle   string
	billInvoice string
	billDate    string
	billNotes   string
)

var billCmd = &cobra.Command{
	Use:   "bill",
	Short: "Mark a client's cycle as billed",
	Long: `The bill command marks every carrier aggregate and shipment of a client for
one cycle as Billed with the given invoice number. Running it again with the
same values changes nothing.`,
	Example: `  freightbill bill --client Globex --cycle 2024-01 --invoice INV-1001 --date 2024-02-05`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := billing.MarkBilledRequest{
			Client:        billClient,
			CyclePeriod:   billCycle,
			InvoiceNumber: billInvoice,
			Notes:         billNotes,
		}
		if billDate != "" {
			d, err := time.Parse("2006-01-02", billDate)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			req.InvoiceDate = &d
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return printResult(cmd.OutOrStdout(), a.billing.MarkBilled(ctx, req))
	},
}

func init() {
	rootCmd.AddCommand(billCmd)
	billCmd.Flags().StringVar(&billClient, "client", "", "Client name")
	billCmd.Flags().StringVar(&billCycle, "cycle", "", "Billing cycle")
	billCmd.Flags().StringVar(&billInvoice, "invoice", "", "Invoice number")
	billCmd.Flags().StringVar(&billDate, "date", "", "Invoice date, YYYY-MM-DD (default today)")
	billCmd.Flags().StringVar(&billNotes, "notes", "", "Free-text notes stored on the aggregates")
	_ = billCmd.MarkFlagRequired("client")
	_ = billCmd.MarkFlagRequired("cycle")
	_ = billCmd.MarkFlagRequired("invoice")
}
