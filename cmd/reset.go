package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/report"
)

var (
	resetConfirm  string
	resetNoBackup bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all shipments, aggregates and scan records",
	Long: fmt.Sprintf(`The reset command wipes the billing data. The upload ledger is kept with
every entry flagged Deleted. A backup workbook is written to output_dir first
unless --no-backup is given.

The confirmation must be typed exactly: --confirm %q`, billing.ResetConfirmationCode),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if resetConfirm != billing.ResetConfirmationCode {
			return &billing.InvalidConfirmationCodeError{}
		}

		out := cmd.OutOrStdout()
		if !resetNoBackup {
			path := outputPath("", report.BackupFileName(time.Now()))
			err := writeOutput(path, func(w io.Writer) error {
				return report.WriteBackup(w, a.billing.Snapshot())
			})
			if err != nil {
				return fmt.Errorf("backup failed, nothing was reset: %w", err)
			}
			fmt.Fprintf(out, "Backup written to %s\n", path)
		}

		return printResult(out, a.billing.Reset(ctx, resetConfirm))
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().StringVar(&resetConfirm, "confirm", "", "Confirmation code")
	resetCmd.Flags().BoolVar(&resetNoBackup, "no-backup", false, "Skip the backup")
}
