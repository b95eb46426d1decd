package standardize

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

var testParams = Params{
	Carrier:     "Acme",
	CyclePeriod: "2024-01",
	FileHash:    "abc123",
	UploadTime:  time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
}

func scenarioTable() *types.RawTable {
	headers := []string{"Customer", "Total Cost", "Bill Amount", "Tracking ID"}
	return &types.RawTable{
		Headers: headers,
		Rows: []map[string]string{
			{"Customer": "Globex", "Total Cost": "10", "Bill Amount": "15", "Tracking ID": "T1"},
			{"Customer": "Globex", "Total Cost": "20", "Bill Amount": "25", "Tracking ID": "T2"},
			{"Customer": "Globex", "Total Cost": "0", "Bill Amount": "0", "Tracking ID": "T3"},
		},
	}
}

func TestStandardizeScenario(t *testing.T) {
	table := scenarioTable()
	m, err := columnmap.Resolve(table.Headers, columnmap.DefaultSynonyms(), nil)
	require.NoError(t, err)

	records, counts, err := Standardize(table, m, testParams)
	require.NoError(t, err)

	assert.Equal(t, Counts{RowsRead: 3, ZeroAmounts: 1, Valid: 2}, counts)
	assert.Equal(t, 1, counts.Dropped())
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Acme", first.Carrier)
	assert.Equal(t, "Globex", first.Client)
	assert.Equal(t, "T1", first.TrackingNumber)
	assert.Equal(t, "2024-01", first.CyclePeriod)
	assert.Equal(t, types.StatusReadyToBill, first.InvoiceStatus)
	assert.Equal(t, "", first.InvoiceNumber)
	assert.Equal(t, "abc123", first.FileHash)
	assert.Equal(t, testParams.UploadTime, first.UploadTimestamp)
	assert.True(t, first.Cost.Equal(decimal.NewFromInt(10)))
	assert.False(t, first.Weight.Valid)
	assert.Nil(t, first.ShipDate)
}

func TestTransformDropsMissingAmounts(t *testing.T) {
	m := columnmap.Mapping{"Client": columnmap.FieldClient, "Cost": columnmap.FieldCost, "Billable": columnmap.FieldBillableAmount}

	_, rowErr := Transform(4, map[string]string{"Client": "A", "Cost": "n/a", "Billable": "5"}, m, testParams)
	require.NotNil(t, rowErr)
	assert.True(t, errors.Is(rowErr, ErrMissingAmount))
	assert.Equal(t, 4, rowErr.Row)

	_, rowErr = Transform(5, map[string]string{"Client": "A", "Cost": "5"}, m, testParams)
	require.NotNil(t, rowErr)
	assert.True(t, errors.Is(rowErr, ErrMissingAmount))
}

func TestTransformKeepsSingleZero(t *testing.T) {
	m := columnmap.Mapping{"Client": columnmap.FieldClient, "Cost": columnmap.FieldCost, "Billable": columnmap.FieldBillableAmount}

	rec, rowErr := Transform(1, map[string]string{"Client": " A ", "Cost": "0", "Billable": "7.5"}, m, testParams)
	require.Nil(t, rowErr)
	assert.Equal(t, "A", rec.Client)
	assert.True(t, rec.BillableAmount.Equal(decimal.RequireFromString("7.5")))
}

func TestStandardizeNoValidRecords(t *testing.T) {
	table := &types.RawTable{
		Headers: []string{"Client", "Cost", "Billable"},
		Rows: []map[string]string{
			{"Client": "A", "Cost": "", "Billable": ""},
			{"Client": "B", "Cost": "0", "Billable": "0"},
		},
	}
	m, err := columnmap.Resolve(table.Headers, columnmap.DefaultSynonyms(), nil)
	require.NoError(t, err)

	records, counts, err := Standardize(table, m, testParams)
	assert.Nil(t, records)
	assert.Equal(t, Counts{RowsRead: 2, MissingAmounts: 1, ZeroAmounts: 1}, counts)

	var noValid *NoValidRecordsError
	require.True(t, errors.As(err, &noValid))
	assert.Equal(t, 2, noValid.RowsRead)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"12.50", "12.5", true},
		{" $1,234.00 ", "1234", true},
		{"(15.25)", "-15.25", true},
		{"-$3", "-3", true},
		{"1.5E+2", "150", true},
		{"", "", false},
		{"n/a", "", false},
		{"12kg", "", false},
		{"1e400", "", false},
		{"1e90000000", "", false},
		{"1e-90000000", "", false},
		{"1234567890123456789012345678901234567890", "", false},
		{"0.30000000000000004", "0.30000000000000004", true},
	}
	for _, tc := range tests {
		got := ParseAmount(tc.in)
		assert.Equal(t, tc.valid, got.Valid, tc.in)
		if tc.valid {
			assert.True(t, got.Decimal.Equal(decimal.RequireFromString(tc.want)), "%s -> %s", tc.in, got.Decimal)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-01-15",
		"2024-01-15 08:30:00",
		"2024-01-15T08:30:00Z",
		"01/15/2024",
		"1/15/2024",
		"15-Jan-2024",
		"Jan 15, 2024",
		"20240115",
		"45306", // Excel serial
	} {
		got := ParseDate(in)
		require.NotNil(t, got, in)
		assert.True(t, want.Equal(*got), "%s -> %s", in, got)
	}

	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("next tuesday"))
	assert.Nil(t, ParseDate("12"))
}
