// =============================================================================
// Freight Billing Reconciler - Configuration Validation
// =============================================================================
//
// This module checks everything the ingestion pipeline is configured with,
// before any file is read:
//   - The synonym table (built-in or loaded from synonyms_file)
//   - The main configuration
//   - Every carrier profile (overrides, CSV settings, value rules)
//
// ERROR HANDLING:
//   - Problems are collected, not returned one at a time
//   - Each problem names its source, field and offending value
//   - "error" problems make the configuration unusable; "warning" problems
//     are suspicious but ingestion still works
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/csvparser"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/ingest"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation problem.
type ValidationError struct {
	// Severity indicates the severity of the problem.
	// "error" = the configuration must be fixed
	// "warning" = ingestion can continue
	Severity string

	// Source names what was checked: "synonyms", "config" or
	// "profile <carrier>".
	Source string

	// Field is the key or canonical field concerned.
	Field string

	// Value is the offending value.
	Value string

	// Rule is the check that failed.
	Rule string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("[%s] %s, Field '%s': %s", strings.ToUpper(e.Severity), e.Source, e.Field, e.Message)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: '%s')", e.Value)
	}
	return msg
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors (and, with
	// TreatWarningsAsErrors, no warnings).
	IsValid bool

	// Errors contains all problems, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// ProfilesValidated is the number of carrier profiles checked.
	ProfilesValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors makes any warning invalidate the result.
	// Default: false
	TreatWarningsAsErrors bool
}

// Validator checks ingestion configuration.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a new Validator instance.
func NewValidator(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// ValidateAll checks the main configuration, the synonym table and every
// profile, and tallies the problems found.
//
// PARAMETERS:
//   - cfg: The main configuration (may be nil to skip it).
//   - table: The synonym table in effect.
//   - profiles: The loaded carrier profiles (may be nil).
//
// RETURNS:
//   - The collected result. Problems are sorted by source.
func (v *Validator) ValidateAll(cfg *config.MainConfig, table columnmap.SynonymTable, profiles config.Profiles) *ValidationResult {
	var problems []*ValidationError
	if cfg != nil {
		problems = append(problems, v.ValidateConfig(cfg)...)
	}
	problems = append(problems, v.ValidateSynonyms(table)...)

	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		problems = append(problems, v.ValidateProfile(profiles[k])...)
	}

	result := &ValidationResult{IsValid: true, Errors: problems, ProfilesValidated: len(keys)}
	for _, p := range problems {
		if p.Severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
			continue
		}
		result.WarningCount++
		if v.options.TreatWarningsAsErrors {
			result.IsValid = false
		}
	}
	return result
}

// =============================================================================
// MAIN CONFIGURATION
// =============================================================================

// ValidateConfig checks value ranges and the CSV encoding.
func (v *Validator) ValidateConfig(cfg *config.MainConfig) []*ValidationError {
	var problems []*ValidationError
	if err := config.Validate(cfg); err != nil {
		problems = append(problems, &ValidationError{
			Severity: SeverityError,
			Source:   "config",
			Rule:     "range",
			Message:  err.Error(),
		})
	}
	if err := csvparser.CheckEncoding(cfg.CSV.Encoding); err != nil {
		problems = append(problems, &ValidationError{
			Severity: SeverityError,
			Source:   "config",
			Field:    "csv.encoding",
			Value:    cfg.CSV.Encoding,
			Rule:     "encoding",
			Message:  err.Error(),
		})
	}
	return problems
}

// =============================================================================
// SYNONYM TABLE
// =============================================================================

// ValidateSynonyms checks the synonym table.
//
// CHECKS:
//   - every field is a canonical field                        (error)
//   - no alias is blank once normalized                       (error)
//   - every required field has at least one alias             (warning)
//   - an alias is not declared by two fields                  (warning,
//     the earlier field claims the header)
func (v *Validator) ValidateSynonyms(table columnmap.SynonymTable) []*ValidationError {
	var problems []*ValidationError
	owner := make(map[string]columnmap.Field)

	for _, syn := range table {
		if !columnmap.IsKnown(syn.Field) {
			problems = append(problems, &ValidationError{
				Severity: SeverityError,
				Source:   "synonyms",
				Field:    string(syn.Field),
				Rule:     "known_field",
				Message:  "Not a canonical shipment field",
			})
			continue
		}

		for _, alias := range syn.Aliases {
			key := columnmap.Normalize(alias)
			if key == "" {
				problems = append(problems, &ValidationError{
					Severity: SeverityError,
					Source:   "synonyms",
					Field:    string(syn.Field),
					Value:    alias,
					Rule:     "blank_alias",
					Message:  "Alias is blank",
				})
				continue
			}

			first, taken := owner[key]
			switch {
			case !taken:
				owner[key] = syn.Field
			case first != syn.Field:
				problems = append(problems, &ValidationError{
					Severity: SeverityWarning,
					Source:   "synonyms",
					Field:    string(syn.Field),
					Value:    alias,
					Rule:     "duplicate_alias",
					Message:  fmt.Sprintf("Alias is already declared by '%s', which claims the header first", first),
				})
			}
		}
	}

	for _, f := range columnmap.RequiredFields {
		if aliases, ok := table.Lookup(f); !ok || len(aliases) == 0 {
			problems = append(problems, &ValidationError{
				Severity: SeverityWarning,
				Source:   "synonyms",
				Field:    string(f),
				Rule:     "required_field",
				Message:  "Required field has no aliases; every file will need a column override",
			})
		}
	}
	return problems
}

// =============================================================================
// CARRIER PROFILES
// =============================================================================

// ValidateProfile checks one carrier profile.
func (v *Validator) ValidateProfile(p *config.CarrierProfile) []*ValidationError {
	if p == nil {
		return nil
	}
	source := "profile " + p.Carrier
	var problems []*ValidationError

	headers := make([]string, 0, len(p.ColumnOverrides))
	for h := range p.ColumnOverrides {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	targets := make(map[string]string)
	for _, h := range headers {
		target := p.ColumnOverrides[h]
		if !columnmap.IsKnown(columnmap.Field(target)) {
			problems = append(problems, &ValidationError{
				Severity: SeverityError,
				Source:   source,
				Field:    h,
				Value:    target,
				Rule:     "known_field",
				Message:  "Column override targets an unknown field",
			})
			continue
		}
		if prev, dup := targets[target]; dup {
			problems = append(problems, &ValidationError{
				Severity: SeverityError,
				Source:   source,
				Field:    h,
				Value:    target,
				Rule:     "duplicate_override",
				Message:  fmt.Sprintf("Field is already mapped from '%s'", prev),
			})
			continue
		}
		targets[target] = h
	}

	if enc := p.CSVSettings.Encoding; enc != "" {
		if err := csvparser.CheckEncoding(enc); err != nil {
			problems = append(problems, &ValidationError{
				Severity: SeverityError,
				Source:   source,
				Field:    "csv_settings.encoding",
				Value:    enc,
				Rule:     "encoding",
				Message:  err.Error(),
			})
		}
	}

	for i, rule := range p.ValueRules {
		if strings.TrimSpace(rule.Column) == "" {
			problems = append(problems, &ValidationError{
				Severity: SeverityError,
				Source:   source,
				Field:    fmt.Sprintf("value_rules[%d]", i),
				Rule:     "column",
				Message:  "Value rule has no column",
			})
		}
		for _, action := range rule.Actions {
			if !ingest.KnownAction(action.Type) {
				problems = append(problems, &ValidationError{
					Severity: SeverityError,
					Source:   source,
					Field:    rule.Column,
					Value:    action.Type,
					Rule:     "action_type",
					Message:  "Unknown value action",
				})
				continue
			}
			if strings.HasPrefix(action.Type, "lookup") && len(action.LookupTable) == 0 {
				problems = append(problems, &ValidationError{
					Severity: SeverityWarning,
					Source:   source,
					Field:    rule.Column,
					Value:    action.Type,
					Rule:     "lookup_table",
					Message:  "Lookup action has an empty lookup table",
				})
			}
		}
	}

	// Compiling catches what the per-action checks cannot, such as bad regexes.
	if len(problems) == 0 {
		if _, err := ingest.NewTransformer(p.ValueRules); err != nil {
			problems = append(problems, &ValidationError{
				Severity: SeverityError,
				Source:   source,
				Field:    "value_rules",
				Rule:     "compile",
				Message:  err.Error(),
			})
		}
	}
	return problems
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation problems for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d problem(s):\n\n", len(errors)))
	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}
