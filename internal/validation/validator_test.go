package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
)

func rules(problems []*ValidationError) []string {
	out := make([]string, len(problems))
	for i, p := range problems {
		out[i] = p.Rule
	}
	return out
}

func TestDefaultsAreValid(t *testing.T) {
	v := NewValidator(ValidationOptions{TreatWarningsAsErrors: true})
	result := v.ValidateAll(config.Default(), columnmap.DefaultSynonyms(), nil)
	assert.True(t, result.IsValid, FormatErrors(result.Errors))
	assert.Empty(t, result.Errors)
}

func TestValidateSynonyms(t *testing.T) {
	table := columnmap.SynonymTable{
		{Field: columnmap.FieldClient, Aliases: []string{"Customer", "  "}},
		{Field: columnmap.FieldCost, Aliases: []string{"cost", "Cust_omer"}},
		{Field: "colour", Aliases: []string{"x"}},
	}
	problems := NewValidator(ValidationOptions{}).ValidateSynonyms(table)
	assert.Equal(t, []string{"blank_alias", "duplicate_alias", "known_field", "required_field"}, rules(problems))

	dup := problems[1]
	assert.Equal(t, SeverityWarning, dup.Severity)
	assert.Equal(t, "cost", dup.Field)
	assert.Contains(t, dup.Message, "client")

	missing := problems[3]
	assert.Equal(t, "billable_amount", missing.Field)
}

func TestValidateConfig(t *testing.T) {
	cfg := config.Default()
	cfg.CSV.Encoding = "EBCDIC"
	cfg.LogLevel = "loud"

	problems := NewValidator(ValidationOptions{}).ValidateConfig(cfg)
	assert.Equal(t, []string{"range", "encoding"}, rules(problems))
	assert.Equal(t, "csv.encoding", problems[1].Field)
}

func TestValidateProfile(t *testing.T) {
	p := &config.CarrierProfile{
		Carrier:         "fedex",
		CSVSettings:     config.CSVSettings{Encoding: "utf-16"},
		ColumnOverrides: map[string]string{"Acct": "client", "Acct Name": "client", "Net": "price"},
		ValueRules: []config.ValueRule{
			{Column: "Acct", Actions: []config.ValueAction{{Type: "shout"}, {Type: "lookup"}}},
			{Column: "", Actions: []config.ValueAction{{Type: "trim"}}},
		},
	}

	problems := NewValidator(ValidationOptions{}).ValidateProfile(p)
	assert.Equal(t, []string{"duplicate_override", "known_field", "encoding", "action_type", "lookup_table", "column"}, rules(problems))
	assert.Equal(t, "profile fedex", problems[0].Source)
}

func TestValidateProfileCompilesRules(t *testing.T) {
	p := &config.CarrierProfile{
		Carrier: "dhl",
		ValueRules: []config.ValueRule{
			{Column: "Ref", Actions: []config.ValueAction{{Type: "regex_replace", Find: "([", Value: ""}}},
		},
	}
	problems := NewValidator(ValidationOptions{}).ValidateProfile(p)
	require.Len(t, problems, 1)
	assert.Equal(t, "compile", problems[0].Rule)
	assert.Equal(t, SeverityError, problems[0].Severity)
}

func TestValidateAllTallies(t *testing.T) {
	profiles := config.Profiles{
		"ups": {Carrier: "ups", ValueRules: []config.ValueRule{
			{Column: "Acct", Actions: []config.ValueAction{{Type: "lookup_with_default", Value: "?"}}},
		}},
	}

	result := NewValidator(ValidationOptions{}).ValidateAll(config.Default(), columnmap.DefaultSynonyms(), profiles)
	assert.True(t, result.IsValid)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, 1, result.ProfilesValidated)

	strict := NewValidator(ValidationOptions{TreatWarningsAsErrors: true}).ValidateAll(nil, columnmap.DefaultSynonyms(), profiles)
	assert.False(t, strict.IsValid)
	assert.Zero(t, strict.ErrorCount)
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	out := FormatErrors([]*ValidationError{{
		Severity: SeverityError, Source: "profile ups", Field: "Net", Value: "price", Message: "Column override targets an unknown field",
	}})
	assert.Contains(t, out, "1. [ERROR] profile ups, Field 'Net': Column override targets an unknown field (value: 'price')")
}
