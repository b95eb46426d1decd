package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	settingsFolder string
	settingsMode   string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved scan settings",
	Example: `  freightbill settings
  freightbill settings --input-folder /mnt/carriers --mode cycle_carrier`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.billing.Settings()
		if cmd.Flags().Changed("input-folder") || cmd.Flags().Changed("mode") {
			if cmd.Flags().Changed("input-folder") {
				s.InputFolder = settingsFolder
			}
			if cmd.Flags().Changed("mode") {
				s.FilenameMode = settingsMode
			}
			if err := a.billing.UpdateSettings(ctx, s); err != nil {
				return err
			}
			s = a.billing.Settings()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Input folder:   %s\n", s.InputFolder)
		fmt.Fprintf(out, "Filename mode:  %s\n", s.FilenameMode)
		fmt.Fprintf(out, "Storage:        %s\n", a.cfg.Storage.Backend)
		fmt.Fprintf(out, "Data directory: %s\n", a.cfg.DataDir)
		fmt.Fprintf(out, "Processed files: %d\n", len(a.billing.ProcessedSources()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().StringVar(&settingsFolder, "input-folder", "", "Folder scanned by default")
	settingsCmd.Flags().StringVar(&settingsMode, "mode", "", "Filename mode: carrier_cycle or cycle_carrier")
}
