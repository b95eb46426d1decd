// =============================================================================
// Freight Billing Reconciler - Scan Command
// =============================================================================
//
// COMMAND USAGE:
//   freightbill scan [folder] [flags]
//
// The folder defaults to the saved input folder, then to input_dir. Carrier
// and cycle come from each file name (see "settings --mode").
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/scan"
	"github.com/ginjaninja78/freight-billing-reconciler/pkg/utils"
)

var (
	scanMode      string
	scanArchive   bool
	scanNoSummary bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "Ingest every new carrier file in a folder",
	Long: `The scan command ingests each *.csv and *.xlsx file of the folder that was
not ingested by an earlier scan, one file at a time. Files that fail stay in
place and are retried by the next scan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		folder := a.billing.Settings().InputFolder
		if len(args) == 1 {
			folder = args[0]
		}
		if folder == "" {
			folder = a.cfg.InputDir
		}

		archiving := a.cfg.ArchiveOnSuccess || scanArchive
		archiveDir := ""
		if archiving {
			archiveDir = a.cfg.ArchiveDir
		}
		files := utils.NewFileManager(folder, archiveDir, a.cfg.OutputDir)
		files.ArchiveOnSuccess = archiving
		if err := files.EnsureDirectories(); err != nil {
			return err
		}

		scanner := scan.New(a.pipeline, a.billing, files, scan.Options{
			Mode:         scanMode,
			WriteSummary: !scanNoSummary,
			Logger:       a.logger,
		})
		summary, err := scanner.Run(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scanned %s: %d ingested, %d failed, %d already processed, %d records\n",
			folder, summary.SuccessfulFiles, summary.FailedFiles, summary.SkippedFiles, summary.TotalRecords)
		for _, f := range summary.FailedFilesList {
			fmt.Fprintf(out, "  FAILED %s: %s\n", f.InputFile, f.ErrorMessage)
		}
		if summary.SummaryPath != "" {
			fmt.Fprintf(out, "Summary written to %s\n", summary.SummaryPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanMode, "mode", "", "Filename mode: carrier_cycle or cycle_carrier (default: saved setting)")
	scanCmd.Flags().BoolVar(&scanArchive, "archive", false, "Move ingested files to archive_dir")
	scanCmd.Flags().BoolVar(&scanNoSummary, "no-summary", false, "Do not write the scan summary file")
}
