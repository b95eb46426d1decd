package columnmap

import (
	"fmt"
	"sort"
	"strings"
)

// MissingColumnsError is returned when a required canonical field has no
// source header after mapping.
type MissingColumnsError struct {
	Missing   []Field
	Available []string
}

func (e *MissingColumnsError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		missing[i] = string(f)
	}
	return fmt.Sprintf("missing required columns: %s (available: %s); file must contain client, cost, and billable amount data",
		strings.Join(missing, ", "), strings.Join(e.Available, ", "))
}

// Normalize lowercases, trims and strips spaces and underscores. Raw headers
// and aliases go through the same function.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "_", "")
}

// Mapping renames raw headers to canonical fields.
type Mapping map[string]Field

// Source returns the raw header mapped to f.
func (m Mapping) Source(f Field) (string, bool) {
	for raw, field := range m {
		if field == f {
			return raw, true
		}
	}
	return "", false
}

// Fields returns the mapped canonical fields, sorted.
func (m Mapping) Fields() []Field {
	fields := make([]Field, 0, len(m))
	for _, f := range m {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Apply renames the keys of a raw row. Unmapped headers are dropped.
func (m Mapping) Apply(raw map[string]string) map[Field]string {
	out := make(map[Field]string, len(m))
	for header, field := range m {
		if v, ok := raw[header]; ok {
			out[field] = v
		}
	}
	return out
}

// Resolve maps raw headers onto canonical fields.
//
// Overrides (raw header -> field) are applied first, in header order, and
// always win. Then each field of the table, in declared order, claims the
// first not-yet-claimed header (in header order) whose normalized form equals
// any normalized alias. A header maps to at most one field and a field is
// claimed at most once, so the result depends only on the header order and the
// table order.
func Resolve(headers []string, table SynonymTable, overrides map[string]Field) (Mapping, error) {
	mapping := make(Mapping)
	claimedHeader := make(map[string]bool)
	claimedField := make(map[Field]string)

	for _, header := range headers {
		field, ok := overrides[header]
		if !ok {
			continue
		}
		if !IsKnown(field) {
			return nil, fmt.Errorf("override for %q targets unknown field %q", header, field)
		}
		if prev, dup := claimedField[field]; dup {
			return nil, fmt.Errorf("override for %q: field %s already mapped from %q", header, field, prev)
		}
		mapping[header] = field
		claimedHeader[header] = true
		claimedField[field] = header
	}

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = Normalize(h)
	}

	for _, syn := range table {
		if _, done := claimedField[syn.Field]; done {
			continue
		}

		aliases := make(map[string]bool, len(syn.Aliases))
		for _, a := range syn.Aliases {
			aliases[Normalize(a)] = true
		}

		for i, header := range headers {
			if claimedHeader[header] || !aliases[normalized[i]] {
				continue
			}
			mapping[header] = syn.Field
			claimedHeader[header] = true
			claimedField[syn.Field] = header
			break
		}
	}

	var missing []Field
	for _, f := range RequiredFields {
		if _, ok := claimedField[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		available := append([]string(nil), headers...)
		return nil, &MissingColumnsError{Missing: missing, Available: available}
	}

	return mapping, nil
}

// ParseOverrides turns "Raw Header=field" pairs into an override map.
func ParseOverrides(pairs []string) (map[string]Field, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]Field, len(pairs))
	for _, p := range pairs {
		raw, field, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("invalid column override %q, expected \"Header=field\"", p)
		}
		f := Field(strings.TrimSpace(field))
		if !IsKnown(f) {
			return nil, fmt.Errorf("invalid column override %q: unknown field %q", p, f)
		}
		out[strings.TrimSpace(raw)] = f
	}
	return out, nil
}
