package billing

import (
	"sort"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// countKey counts stored records of a (carrier, cycle).
func (s *state) countKey(key types.CarrierCycle) int {
	n := 0
	for _, r := range s.shipments {
		if r.CarrierCycle() == key {
			n++
		}
	}
	return n
}

// removeShipments drops every record that matches and returns how many went.
func (s *state) removeShipments(match func(types.ShipmentRecord) bool) int {
	kept := s.shipments[:0:0]
	removed := 0
	for _, r := range s.shipments {
		if match(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.shipments = kept
	return removed
}

// deleteCarrierCycle removes records and aggregates of one (carrier, cycle).
func (s *state) deleteCarrierCycle(key types.CarrierCycle) (records, aggregates int) {
	records = s.removeShipments(func(r types.ShipmentRecord) bool {
		return r.CarrierCycle() == key
	})
	aggregates = s.removeAggregates(func(a types.BillingAggregate) bool {
		return a.Carrier == key.Carrier && a.CyclePeriod == key.CyclePeriod
	})
	return records, aggregates
}

// deleteClientCycle removes records and aggregates of one (client, cycle)
// across carriers. It returns the (carrier, cycle) keys it touched.
func (s *state) deleteClientCycle(key types.ClientCycle) (records, aggregates int, touched []types.CarrierCycle) {
	seen := make(map[types.CarrierCycle]bool)
	records = s.removeShipments(func(r types.ShipmentRecord) bool {
		if r.ClientCycle() != key {
			return false
		}
		if cc := r.CarrierCycle(); !seen[cc] {
			seen[cc] = true
			touched = append(touched, cc)
		}
		return true
	})
	aggregates = s.removeAggregates(func(a types.BillingAggregate) bool {
		return a.Client == key.Client && a.CyclePeriod == key.CyclePeriod
	})
	return records, aggregates, touched
}

// query returns matching records sorted by client, carrier, ship date.
// Records without a ship date sort last within their (client, carrier).
func (s *state) query(f types.Filter) []types.ShipmentRecord {
	var out []types.ShipmentRecord
	for _, r := range s.shipments {
		if f.MatchRecord(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Client != b.Client {
			return a.Client < b.Client
		}
		if a.Carrier != b.Carrier {
			return a.Carrier < b.Carrier
		}
		switch {
		case a.ShipDate == nil:
			return false
		case b.ShipDate == nil:
			return true
		default:
			return a.ShipDate.Before(*b.ShipDate)
		}
	})
	return out
}
