package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
)

func TestTransformerActions(t *testing.T) {
	tests := []struct {
		name   string
		action config.ValueAction
		input  string
		want   string
	}{
		{"trim", config.ValueAction{Type: "trim"}, "  a b  ", "a b"},
		{"uppercase", config.ValueAction{Type: "uppercase"}, "abc", "ABC"},
		{"lowercase", config.ValueAction{Type: "lowercase"}, "ABC", "abc"},
		{"title case", config.ValueAction{Type: "title_case"}, "GLOBEX corp", "Globex Corp"},
		{"prepend", config.ValueAction{Type: "prepend_string", Value: "1Z"}, "999", "1Z999"},
		{"append", config.ValueAction{Type: "append_string", Value: "-00"}, "1", "1-00"},
		{"replace", config.ValueAction{Type: "replace", Find: "-", Value: ""}, "1-2-3", "123"},
		{"regex replace", config.ValueAction{Type: "regex_replace", Find: `^TRK`, Value: ""}, "TRK42", "42"},
		{"leading zeros", config.ValueAction{Type: "remove_leading_zeros"}, "000420", "420"},
		{"all zeros", config.ValueAction{Type: "remove_leading_zeros"}, "000", "0"},
		{"digits", config.ValueAction{Type: "extract_digits"}, "ABC-123-D4", "1234"},
		{"whitespace", config.ValueAction{Type: "normalize_whitespace"}, " a   b\tc ", "a b c"},
		{"lookup hit", config.ValueAction{Type: "lookup", LookupTable: map[string]string{"X": "Y"}}, "X", "Y"},
		{"lookup miss", config.ValueAction{Type: "lookup", LookupTable: map[string]string{"X": "Y"}}, "Z", "Z"},
		{"lookup default", config.ValueAction{Type: "lookup_with_default", Value: "Other", LookupTable: map[string]string{"X": "Y"}}, "Z", "Other"},
		{"empty default", config.ValueAction{Type: "if_empty_use_default", Value: "Unknown"}, " ", "Unknown"},
		{"empty field", config.ValueAction{Type: "if_empty_use_field", Value: "Shipper"}, "", "Globex"},
		{"non-empty field", config.ValueAction{Type: "if_empty_use_field", Value: "Shipper"}, "Initech", "Initech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransformer([]config.ValueRule{{Column: "Client", Actions: []config.ValueAction{tt.action}}})
			require.NoError(t, err)

			row := map[string]string{"Client": tt.input, "Shipper": "Globex"}
			tr.Apply(row)
			assert.Equal(t, tt.want, row["Client"])
		})
	}
}

func TestTransformerChainsInOrder(t *testing.T) {
	tr, err := NewTransformer([]config.ValueRule{
		{Column: "Client", Actions: []config.ValueAction{{Type: "trim"}, {Type: "uppercase"}}},
		{Column: "Client", Actions: []config.ValueAction{{Type: "append_string", Value: "!"}}},
	})
	require.NoError(t, err)

	row := map[string]string{"Client": " acme "}
	tr.Apply(row)
	assert.Equal(t, "ACME!", row["Client"])

	// Missing columns are left alone.
	other := map[string]string{"Cost": "1"}
	tr.Apply(other)
	assert.Equal(t, map[string]string{"Cost": "1"}, other)
}

func TestNewTransformerRejectsBadRules(t *testing.T) {
	_, err := NewTransformer([]config.ValueRule{{Column: "A", Actions: []config.ValueAction{{Type: "format_policy_number"}}}})
	assert.Error(t, err)

	_, err = NewTransformer([]config.ValueRule{{Column: "A", Actions: []config.ValueAction{{Type: "regex_replace", Find: "("}}}})
	assert.Error(t, err)

	var empty *Transformer
	assert.True(t, empty.Empty())
}
