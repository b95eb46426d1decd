// =============================================================================
// Freight Billing Reconciler - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   freightbill validate [config-file] [--strict]
//
// Checks the configuration, the synonym table and every carrier profile
// without opening storage. Exits non-zero when an error is found (or, with
// --strict, a warning). A config file argument is checked on its own,
// without environment or flag overrides.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/validation"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Check configuration, synonyms and carrier profiles",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := validationTarget(args)
		if err != nil {
			return err
		}

		synonyms, profiles, err := loadMappingConfig(cfg)
		if err != nil {
			return err
		}

		v := validation.NewValidator(validation.ValidationOptions{TreatWarningsAsErrors: validateStrict})
		result := v.ValidateAll(cfg, synonyms, profiles)

		out := cmd.OutOrStdout()
		fmt.Fprint(out, validation.FormatErrors(result.Errors))
		fmt.Fprintf(out, "\n%d profile(s) checked: %d error(s), %d warning(s)\n",
			result.ProfilesValidated, result.ErrorCount, result.WarningCount)

		if !result.IsValid {
			return fmt.Errorf("configuration is not valid")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
}

// validationTarget is the config file named on the command line, or the
// layered configuration in effect.
func validationTarget(args []string) (*config.MainConfig, error) {
	if len(args) == 0 {
		return appConfig, nil
	}
	return config.LoadMainConfig(args[0])
}
