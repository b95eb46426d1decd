package filename

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		carrier string
		cycle   string
	}{
		{"FedEx_November2024.xlsx", "", "Fedex", "2024-11"},
		{"dhl-week1.csv", types.FilenameCarrierCycle, "Dhl", "week1"},
		{"UPS_2024-08.csv", "", "Ups", "2024-08"},
		{"/in/acme_2024-08-Week2.csv", "", "Acme", "2024-08-Week2"},
		{"old-dominion_Nov24.csv", "", "Old Dominion", "2024-11"},
		{"estes_Sep-2024.xlsx", "", "Estes", "2024-09"},
		{"2024-08_old_dominion.csv", types.FilenameCycleCarrier, "Old Dominion", "2024-08"},
		{"saia_Week 32-2024.csv", "", "Saia", "Week 32-2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.name, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.carrier, got.Carrier)
			assert.Equal(t, tt.cycle, got.CyclePeriod)
		})
	}
}

func TestParseRejectsUnsplittableNames(t *testing.T) {
	for _, name := range []string{"fedex.csv", "_2024-01.csv", "fedex_.xlsx", "-.csv"} {
		_, err := Parse(name, "")
		var fe *FilenameFormatError
		assert.True(t, errors.As(err, &fe), name)
	}

	_, err := Parse("2024.csv", types.FilenameCycleCarrier)
	assert.Contains(t, err.Error(), "Cycle_Carrier")
}

func TestNormalizeCycle(t *testing.T) {
	assert.Equal(t, "2024-01", NormalizeCycle("January2024"))
	assert.Equal(t, "2024-03", NormalizeCycle("mar2024"))
	assert.Equal(t, "2023-12", NormalizeCycle("Dec23"))
	assert.Equal(t, "Smarch2024", NormalizeCycle("Smarch2024"))
	assert.Equal(t, "Q3", NormalizeCycle("Q3"))
}
