// =============================================================================
// Freight Billing Reconciler - Filename Parser
// =============================================================================
//
// Folder scans have no user to ask for the carrier and cycle, so both are read
// from the file name.
//
// NAMING CONVENTION:
//   <carrier>_<cycle>.<ext>   (mode carrier_cycle, the default)
//   <cycle>_<carrier>.<ext>   (mode cycle_carrier)
//
//   The stem is split on the first "_", or on the first "-" when it has no
//   underscore.
//
// EXAMPLES:
//   FedEx_November2024.xlsx -> Fedex / 2024-11
//   old-dominion_Nov24.csv  -> Old Dominion / 2024-11
//   dhl-week1.csv           -> Dhl / week1
//   2024-08_Old_Dominion.csv (cycle_carrier) -> Old Dominion / 2024-08
//
// =============================================================================

package filename

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// FilenameFormatError is returned when a name cannot be split into a carrier
// and a cycle.
type FilenameFormatError struct {
	Filename string
	Mode     string
}

func (e *FilenameFormatError) Error() string {
	expected := "Carrier_Cycle"
	if e.Mode == types.FilenameCycleCarrier {
		expected = "Cycle_Carrier"
	}
	return fmt.Sprintf("cannot infer carrier and cycle from %q (expected %s.csv or %s.xlsx)", e.Filename, expected, expected)
}

// Parse infers the (carrier, cycle) key from a file name. An empty mode means
// carrier_cycle.
func Parse(name, mode string) (types.CarrierCycle, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	sep := "_"
	if !strings.Contains(stem, sep) {
		sep = "-"
	}
	first, second, ok := strings.Cut(stem, sep)
	first, second = strings.TrimSpace(first), strings.TrimSpace(second)
	if !ok || first == "" || second == "" {
		return types.CarrierCycle{}, &FilenameFormatError{Filename: base, Mode: mode}
	}

	carrier, cycle := first, second
	if mode == types.FilenameCycleCarrier {
		carrier, cycle = second, first
	}

	return types.CarrierCycle{
		Carrier:     NormalizeCarrier(carrier),
		CyclePeriod: NormalizeCycle(cycle),
	}, nil
}

// NormalizeCarrier title-cases a carrier token and turns separators into
// spaces.
func NormalizeCarrier(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Title(language.Und).String(strings.ToLower(s))
}

var (
	isoCycle       = regexp.MustCompile(`^\d{4}-\d{2}(-[Ww]eek\d+)?$`)
	monthYearCycle = regexp.MustCompile(`^([A-Za-z]+)[ -]?(\d{4})$`)
	shortCycle     = regexp.MustCompile(`^([A-Za-z]{3})(\d{2})$`)
)

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// monthNumber accepts full English month names and their first three letters.
func monthNumber(s string) (int, bool) {
	s = strings.ToLower(s)
	if m, ok := months[s]; ok {
		return m, true
	}
	if len(s) == 3 {
		for name, m := range months {
			if strings.HasPrefix(name, s) {
				return m, true
			}
		}
	}
	return 0, false
}

// NormalizeCycle rewrites month-name cycles as YYYY-MM. Anything it does not
// recognize is returned unchanged.
func NormalizeCycle(s string) string {
	s = strings.TrimSpace(s)
	if isoCycle.MatchString(s) {
		return s
	}

	if m := monthYearCycle.FindStringSubmatch(s); m != nil {
		if month, ok := monthNumber(m[1]); ok {
			return fmt.Sprintf("%s-%02d", m[2], month)
		}
	}

	if m := shortCycle.FindStringSubmatch(s); m != nil {
		if month, ok := monthNumber(m[1]); ok {
			yy, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%d-%02d", 2000+yy, month)
		}
	}

	return s
}
