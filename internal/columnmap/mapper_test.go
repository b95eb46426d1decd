package columnmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Total Cost", "totalcost"},
		{"  total_cost ", "totalcost"},
		{"TRACKING_ID", "trackingid"},
		{"Bill Amount", "billamount"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Normalize(tc.in), tc.in)
	}
}

func TestResolveScenario(t *testing.T) {
	headers := []string{"Customer", "Total Cost", "Bill Amount", "Tracking ID"}

	m, err := Resolve(headers, DefaultSynonyms(), nil)
	require.NoError(t, err)

	assert.Equal(t, Mapping{
		"Customer":    FieldClient,
		"Total Cost":  FieldCost,
		"Bill Amount": FieldBillableAmount,
		"Tracking ID": FieldTrackingNumber,
	}, m)
}

func TestResolveMissingColumns(t *testing.T) {
	headers := []string{"Customer", "Weight"}

	_, err := Resolve(headers, DefaultSynonyms(), nil)
	require.Error(t, err)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Field{FieldCost, FieldBillableAmount}, missing.Missing)
	assert.Equal(t, headers, missing.Available)
}

func TestResolveHeaderClaimedOnce(t *testing.T) {
	// "Cost" and "cost" normalize identically; the first in header order wins
	// and the second stays unmapped.
	headers := []string{"Client", "Cost", "cost", "Revenue"}

	m, err := Resolve(headers, DefaultSynonyms(), nil)
	require.NoError(t, err)

	assert.Equal(t, FieldCost, m["Cost"])
	_, mapped := m["cost"]
	assert.False(t, mapped)
	assert.Len(t, m, 3)
}

func TestResolveTableOrderWins(t *testing.T) {
	// "delivery" is a delivery_date alias but "Date" claims ship_date first,
	// regardless of where the headers sit.
	headers := []string{"Delivery", "Date", "Client", "Cost", "Billable"}

	m, err := Resolve(headers, DefaultSynonyms(), nil)
	require.NoError(t, err)
	assert.Equal(t, FieldShipDate, m["Date"])
	assert.Equal(t, FieldDeliveryDate, m["Delivery"])
}

func TestResolveOverridesFirst(t *testing.T) {
	headers := []string{"Account", "Acct Holder", "Cost", "Billable"}
	overrides := map[string]Field{"Acct Holder": FieldClient}

	m, err := Resolve(headers, DefaultSynonyms(), overrides)
	require.NoError(t, err)

	assert.Equal(t, FieldClient, m["Acct Holder"])
	_, mapped := m["Account"]
	assert.False(t, mapped, "client already claimed by override")
}

func TestResolveOverrideErrors(t *testing.T) {
	headers := []string{"A", "B", "Cost", "Billable"}

	_, err := Resolve(headers, DefaultSynonyms(), map[string]Field{"A": "nope"})
	assert.Error(t, err)

	_, err = Resolve(headers, DefaultSynonyms(), map[string]Field{"A": FieldClient, "B": FieldClient})
	assert.Error(t, err)
}

func TestMappingApply(t *testing.T) {
	m := Mapping{"Customer": FieldClient, "Total Cost": FieldCost}
	row := map[string]string{"Customer": "Acme", "Total Cost": "10", "Other": "x"}

	assert.Equal(t, map[Field]string{FieldClient: "Acme", FieldCost: "10"}, m.Apply(row))

	raw, ok := m.Source(FieldCost)
	assert.True(t, ok)
	assert.Equal(t, "Total Cost", raw)
}

func TestParseSynonymsKeepsOrder(t *testing.T) {
	data := []byte(`
cost: [amount]
client: [shipper ref]
billable_amount: [resale]
`)
	table, err := ParseSynonyms(data)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, FieldCost, table[0].Field)
	assert.Equal(t, FieldClient, table[1].Field)
	assert.Equal(t, []string{"resale"}, table[2].Aliases)

	m, err := Resolve([]string{"Shipper Ref", "Amount", "Resale"}, table, nil)
	require.NoError(t, err)
	assert.Equal(t, FieldClient, m["Shipper Ref"])
}

func TestParseSynonymsRejectsUnknownField(t *testing.T) {
	_, err := ParseSynonyms([]byte("colour: [red]\n"))
	assert.Error(t, err)

	_, err = ParseSynonyms([]byte("- a\n- b\n"))
	assert.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{"Acct Name=client", " Amt = cost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]Field{"Acct Name": FieldClient, "Amt": FieldCost}, got)

	_, err = ParseOverrides([]string{"no-equals"})
	assert.Error(t, err)

	_, err = ParseOverrides([]string{"X=bogus"})
	assert.Error(t, err)
}
