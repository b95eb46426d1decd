// =============================================================================
// Freight Billing Reconciler - Ingest Command
// =============================================================================
//
// COMMAND USAGE:
//   freightbill ingest <file> [flags]
//
// FLAGS:
//   --carrier   : Carrier name (inferred from the file name when omitted)
//   --cycle     : Billing cycle (inferred from the file name when omitted)
//   --replace   : Replace the existing data of (carrier, cycle)
//   --map       : Manual column mapping, "Raw Header=field" (repeatable)
//
// =============================================================================

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/filename"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/ingest"
)

var (
	ingestCarrier string
	ingestCycle   string
	ingestReplace bool
	ingestMap     []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest one carrier billing file (CSV or XLSX)",
	Long: `The ingest command reads one carrier file, maps its columns to the shipment
schema, drops rows without usable amounts, and adds the rest to the ledger.

A file whose exact content was already ingested is rejected. A file for a
(carrier, cycle) that already has data is rejected unless --replace is given,
in which case the old data is removed first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestCarrier, "carrier", "", "Carrier name")
	ingestCmd.Flags().StringVar(&ingestCycle, "cycle", "", "Billing cycle, e.g. 2024-08")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "Replace existing data for the carrier and cycle")
	ingestCmd.Flags().StringArrayVar(&ingestMap, "map", nil, `Column mapping "Raw Header=field" (repeatable)`)
}

func runIngest(cmd *cobra.Command, path string) error {
	overrides, err := columnmap.ParseOverrides(ingestMap)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	carrier, cycle := ingestCarrier, ingestCycle
	if carrier == "" || cycle == "" {
		key, err := filename.Parse(path, a.billing.Settings().FilenameMode)
		if err != nil {
			return fmt.Errorf("%w; pass --carrier and --cycle", err)
		}
		if carrier == "" {
			carrier = key.Carrier
		}
		if cycle == "" {
			cycle = key.CyclePeriod
		}
	}

	res := a.pipeline.Run(ctx, ingest.Request{
		Path:        path,
		Carrier:     carrier,
		CyclePeriod: cycle,
		Replace:     ingestReplace,
		Overrides:   overrides,
	})
	if !res.Success {
		a.logger.Debug("ingestion failed", zap.String("file", res.Filename), zap.Error(res.Error))
		return res.Error
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Message)
	if verbose {
		printMapping(cmd, res.Mapping)
	}
	return nil
}

func printMapping(cmd *cobra.Command, m columnmap.Mapping) {
	raw := make([]string, 0, len(m))
	for h := range m {
		raw = append(raw, h)
	}
	sort.Strings(raw)
	for _, h := range raw {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-24s -> %s\n", h, m[h])
	}
}
