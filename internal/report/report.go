// =============================================================================
// Freight Billing Reconciler - Reports
// =============================================================================
//
// Read-only rollups built from the billing service's query results:
//   - Cycle summary        : one row per cycle, across all clients
//   - Carrier performance  : one row per carrier, across all cycles
//   - Totals               : the Summary_Totals sheet of the billing export
//
// Nothing here reads storage; callers pass what the service returned.
//
// =============================================================================

package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// Rollup is a summed slice of aggregates.
type Rollup struct {
	ShipmentCount int
	TotalCost     decimal.Decimal
	TotalBillable decimal.Decimal
	Profit        decimal.Decimal
	ProfitMargin  decimal.NullDecimal
}

func (r *Rollup) add(count int, cost, billable decimal.Decimal) {
	r.ShipmentCount += count
	r.TotalCost = r.TotalCost.Add(cost)
	r.TotalBillable = r.TotalBillable.Add(billable)
	r.Profit = r.TotalBillable.Sub(r.TotalCost)
	r.ProfitMargin = types.ProfitMargin(r.Profit, r.TotalBillable)
}

// CycleSummary is one billing cycle across every client.
type CycleSummary struct {
	CyclePeriod string
	Clients     int
	Rollup
}

// CycleSummaries groups client summaries by cycle, newest cycle first.
func CycleSummaries(summaries []types.ClientCycleSummary) []CycleSummary {
	index := make(map[string]int)
	var out []CycleSummary
	for _, s := range summaries {
		i, ok := index[s.CyclePeriod]
		if !ok {
			i = len(out)
			index[s.CyclePeriod] = i
			out = append(out, CycleSummary{CyclePeriod: s.CyclePeriod})
		}
		out[i].Clients++
		out[i].add(s.ShipmentCount, s.TotalCost, s.TotalBillable)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CyclePeriod > out[j].CyclePeriod })
	return out
}

// CarrierPerformance is one carrier across every cycle.
type CarrierPerformance struct {
	Carrier string
	Cycles  int
	Rollup
}

// CarrierPerformances groups aggregates by carrier, highest billable first.
func CarrierPerformances(aggs []types.BillingAggregate) []CarrierPerformance {
	index := make(map[string]int)
	cycles := make(map[string]map[string]bool)
	var out []CarrierPerformance
	for _, a := range aggs {
		i, ok := index[a.Carrier]
		if !ok {
			i = len(out)
			index[a.Carrier] = i
			cycles[a.Carrier] = make(map[string]bool)
			out = append(out, CarrierPerformance{Carrier: a.Carrier})
		}
		cycles[a.Carrier][a.CyclePeriod] = true
		out[i].add(a.ShipmentCount, a.TotalCost, a.TotalBillable)
	}
	for i := range out {
		out[i].Cycles = len(cycles[out[i].Carrier])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TotalBillable.Equal(out[j].TotalBillable) {
			return out[i].TotalBillable.GreaterThan(out[j].TotalBillable)
		}
		return out[i].Carrier < out[j].Carrier
	})
	return out
}

// Totals are the figures of the Summary_Totals sheet.
type Totals struct {
	Clients       int
	Shipments     int
	TotalCost     decimal.Decimal
	TotalBillable decimal.Decimal
	TotalProfit   decimal.Decimal

	// AverageMargin is the mean of the client margins that are defined,
	// rounded to two places. Null when none is.
	AverageMargin decimal.NullDecimal
}

// ComputeTotals sums client summaries.
func ComputeTotals(summaries []types.ClientCycleSummary) Totals {
	t := Totals{Clients: len(summaries)}
	var marginSum decimal.Decimal
	margins := 0
	for _, s := range summaries {
		t.Shipments += s.ShipmentCount
		t.TotalCost = t.TotalCost.Add(s.TotalCost)
		t.TotalBillable = t.TotalBillable.Add(s.TotalBillable)
		t.TotalProfit = t.TotalProfit.Add(s.Profit)
		if s.ProfitMargin.Valid {
			marginSum = marginSum.Add(s.ProfitMargin.Decimal)
			margins++
		}
	}
	if margins > 0 {
		avg := marginSum.DivRound(decimal.NewFromInt(int64(margins)), 16).Round(2)
		t.AverageMargin = decimal.NewNullDecimal(avg)
	}
	return t
}
