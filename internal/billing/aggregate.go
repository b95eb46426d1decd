package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// groupBatch rolls a batch up per (client, carrier, cycle), in first-seen
// order. The groups carry fresh Ready to Bill status.
func groupBatch(records []types.ShipmentRecord) []types.BillingAggregate {
	index := make(map[types.AggregateKey]int)
	var groups []types.BillingAggregate

	for _, r := range records {
		key := r.AggregateKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, types.BillingAggregate{
				Client:        key.Client,
				Carrier:       key.Carrier,
				CyclePeriod:   key.CyclePeriod,
				TotalCost:     decimal.Zero,
				TotalBillable: decimal.Zero,
				InvoiceStatus: types.StatusReadyToBill,
			})
		}
		g := &groups[i]
		g.ShipmentCount++
		g.TotalCost = g.TotalCost.Add(r.Cost)
		g.TotalBillable = g.TotalBillable.Add(r.BillableAmount)
	}

	for i := range groups {
		groups[i].Recompute()
	}
	return groups
}

// rebuildAggregates derives aggregates from scratch. Status fields are
// copied from the records: Billed only when every record of the group is.
func rebuildAggregates(records []types.ShipmentRecord) []types.BillingAggregate {
	groups := groupBatch(records)

	index := make(map[types.AggregateKey]int, len(groups))
	for i, g := range groups {
		index[g.Key()] = i
	}
	allBilled := make([]bool, len(groups))
	for i := range allBilled {
		allBilled[i] = true
	}
	for _, r := range records {
		i := index[r.AggregateKey()]
		if r.InvoiceStatus != types.StatusBilled {
			allBilled[i] = false
			continue
		}
		if groups[i].InvoiceNumber == "" {
			groups[i].InvoiceNumber = r.InvoiceNumber
			groups[i].InvoiceDate = r.InvoiceDate
		}
	}
	for i := range groups {
		if allBilled[i] {
			groups[i].InvoiceStatus = types.StatusBilled
		} else {
			groups[i].InvoiceNumber = ""
			groups[i].InvoiceDate = nil
		}
	}
	return groups
}

// applyBatch adds batch groups into the aggregates: existing keys are
// incremented, never overwritten, and new keys are appended.
func (s *state) applyBatch(groups []types.BillingAggregate) (created, updated int) {
	index := make(map[types.AggregateKey]int, len(s.aggregates))
	for i, a := range s.aggregates {
		index[a.Key()] = i
	}

	for _, g := range groups {
		if i, ok := index[g.Key()]; ok {
			a := &s.aggregates[i]
			a.ShipmentCount += g.ShipmentCount
			a.TotalCost = a.TotalCost.Add(g.TotalCost)
			a.TotalBillable = a.TotalBillable.Add(g.TotalBillable)
			a.Recompute()
			updated++
			continue
		}
		index[g.Key()] = len(s.aggregates)
		s.aggregates = append(s.aggregates, g)
		created++
	}
	return created, updated
}

// removeAggregates drops every aggregate that matches.
func (s *state) removeAggregates(match func(types.BillingAggregate) bool) int {
	kept := s.aggregates[:0:0]
	removed := 0
	for _, a := range s.aggregates {
		if match(a) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.aggregates = kept
	return removed
}

// =============================================================================
// READ VIEWS
// =============================================================================

// sortAggregates orders by cycle desc, then client, then carrier.
func sortAggregates(aggs []types.BillingAggregate) {
	sort.SliceStable(aggs, func(i, j int) bool {
		a, b := aggs[i], aggs[j]
		if a.CyclePeriod != b.CyclePeriod {
			return a.CyclePeriod > b.CyclePeriod
		}
		if a.Client != b.Client {
			return a.Client < b.Client
		}
		return a.Carrier < b.Carrier
	})
}

// summarize rolls aggregates up per (client, cycle), sorted by cycle desc
// then total billable desc.
func summarize(aggs []types.BillingAggregate, cycle string) []types.ClientCycleSummary {
	index := make(map[types.ClientCycle]int)
	var out []types.ClientCycleSummary
	carriers := make(map[types.ClientCycle]map[string]bool)

	for _, a := range aggs {
		if cycle != "" && a.CyclePeriod != cycle {
			continue
		}
		key := types.ClientCycle{Client: a.Client, CyclePeriod: a.CyclePeriod}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, types.ClientCycleSummary{
				Client:        a.Client,
				CyclePeriod:   a.CyclePeriod,
				TotalCost:     decimal.Zero,
				TotalBillable: decimal.Zero,
				InvoiceStatus: types.StatusBilled,
			})
			carriers[key] = make(map[string]bool)
		}
		sum := &out[i]
		sum.ShipmentCount += a.ShipmentCount
		sum.TotalCost = sum.TotalCost.Add(a.TotalCost)
		sum.TotalBillable = sum.TotalBillable.Add(a.TotalBillable)
		if a.InvoiceStatus != types.StatusBilled {
			sum.InvoiceStatus = types.StatusReadyToBill
		}
		carriers[key][a.Carrier] = true
	}

	for i := range out {
		sum := &out[i]
		sum.CarrierCount = len(carriers[types.ClientCycle{Client: sum.Client, CyclePeriod: sum.CyclePeriod}])
		sum.Profit = sum.TotalBillable.Sub(sum.TotalCost)
		sum.ProfitMargin = types.ProfitMargin(sum.Profit, sum.TotalBillable)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CyclePeriod != out[j].CyclePeriod {
			return out[i].CyclePeriod > out[j].CyclePeriod
		}
		if c := out[i].TotalBillable.Cmp(out[j].TotalBillable); c != 0 {
			return c > 0
		}
		return out[i].Client < out[j].Client
	})
	return out
}
