package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

var (
	deleteCarrier string
	deleteClient  string
	deleteCycle   string
)

// deleteCmd removes either one carrier file's data or one client's data for
// a cycle. Ledger entries are kept, flagged Deleted.
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the data of a (carrier, cycle) or a (client, cycle)",
	Example: `  freightbill delete --carrier FedEx --cycle 2024-01
  freightbill delete --client Globex --cycle 2024-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteCycle == "" || (deleteCarrier == "") == (deleteClient == "") {
			return errors.New("pass --cycle and exactly one of --carrier or --client")
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if deleteCarrier != "" {
			return printResult(cmd.OutOrStdout(), a.billing.DeleteByCarrierCycle(ctx,
				types.CarrierCycle{Carrier: deleteCarrier, CyclePeriod: deleteCycle}))
		}
		return printResult(cmd.OutOrStdout(), a.billing.DeleteByClientCycle(ctx,
			types.ClientCycle{Client: deleteClient, CyclePeriod: deleteCycle}))
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteCarrier, "carrier", "", "Carrier name")
	deleteCmd.Flags().StringVar(&deleteClient, "client", "", "Client name")
	deleteCmd.Flags().StringVar(&deleteCycle, "cycle", "", "Billing cycle")
}
