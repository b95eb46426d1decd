// =============================================================================
// Freight Billing Reconciler - Value Cleanup Rules
// =============================================================================
//
// Carrier profiles can clean raw cell values before the standardizer sees them.
// Typical uses are normalizing client names that a carrier spells several ways,
// stripping decoration from tracking numbers and filling empty cells from a
// sibling column.
//
// Rules are keyed by RAW header, so they run before column mapping and the
// standardizer never knows they exist.
//
// =============================================================================

package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies a carrier profile's value rules to raw rows.
type Transformer struct {
	rules map[string][]compiledAction
	order []string
}

type compiledAction struct {
	config.ValueAction
	re *regexp.Regexp
}

var (
	digitsPattern     = regexp.MustCompile(`\d+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NewTransformer compiles the rules. An unknown action type or a bad regex is
// reported here rather than on the first row.
//
// PARAMETERS:
//   - rules: The value rules of a carrier profile (may be nil).
//
// RETURNS:
//   - A Transformer ready for use, or an error naming the bad rule.
func NewTransformer(rules []config.ValueRule) (*Transformer, error) {
	t := &Transformer{rules: make(map[string][]compiledAction)}
	for _, rule := range rules {
		if _, seen := t.rules[rule.Column]; !seen {
			t.order = append(t.order, rule.Column)
		}
		for _, action := range rule.Actions {
			ca := compiledAction{ValueAction: action}
			if !KnownAction(action.Type) {
				return nil, fmt.Errorf("column %q: unknown value action %q", rule.Column, action.Type)
			}
			if action.Type == "regex_replace" {
				re, err := regexp.Compile(action.Find)
				if err != nil {
					return nil, fmt.Errorf("column %q: invalid regex pattern: %w", rule.Column, err)
				}
				ca.re = re
			}
			t.rules[rule.Column] = append(t.rules[rule.Column], ca)
		}
	}
	return t, nil
}

// Empty reports whether the transformer has nothing to do.
func (t *Transformer) Empty() bool { return t == nil || len(t.rules) == 0 }

// Apply rewrites row in place. Columns absent from the row are skipped.
func (t *Transformer) Apply(row map[string]string) {
	if t.Empty() {
		return
	}
	for _, column := range t.order {
		value, ok := row[column]
		if !ok {
			continue
		}
		for _, action := range t.rules[column] {
			value = applyAction(value, action, row)
		}
		row[column] = value
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

var knownActions = map[string]bool{
	"trim":                 true,
	"uppercase":            true,
	"lowercase":            true,
	"title_case":           true,
	"prepend_string":       true,
	"append_string":        true,
	"replace":              true,
	"regex_replace":        true,
	"remove_leading_zeros": true,
	"extract_digits":       true,
	"normalize_whitespace": true,
	"lookup":               true,
	"lookup_with_default":  true,
	"if_empty_use_default": true,
	"if_empty_use_field":   true,
}

// KnownAction reports whether typ is a supported value action.
func KnownAction(typ string) bool { return knownActions[typ] }

func applyAction(value string, action compiledAction, row map[string]string) string {
	switch action.Type {
	case "trim":
		return strings.TrimSpace(value)

	case "uppercase":
		return strings.ToUpper(value)

	case "lowercase":
		return strings.ToLower(value)

	case "title_case":
		return cases.Title(language.Und).String(strings.ToLower(value))

	case "prepend_string":
		return action.Value + value

	case "append_string":
		return value + action.Value

	case "replace":
		if action.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, action.Find, action.Value)

	case "regex_replace":
		return action.re.ReplaceAllString(value, action.Value)

	case "remove_leading_zeros":
		// "000" keeps one zero.
		trimmed := strings.TrimLeft(value, "0")
		if trimmed == "" && value != "" {
			return "0"
		}
		return trimmed

	case "extract_digits":
		return strings.Join(digitsPattern.FindAllString(value, -1), "")

	case "normalize_whitespace":
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(value, " "))

	case "lookup":
		if replacement, ok := action.LookupTable[strings.TrimSpace(value)]; ok {
			return replacement
		}
		return value

	case "lookup_with_default":
		if replacement, ok := action.LookupTable[strings.TrimSpace(value)]; ok {
			return replacement
		}
		return action.Value

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value
		}
		return value

	case "if_empty_use_field":
		if strings.TrimSpace(value) == "" {
			if other, ok := row[action.Value]; ok {
				return other
			}
		}
		return value
	}
	return value
}
