package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// state is the full in-memory view of every table. Mutations are applied to
// a clone and swapped in only after the commit succeeds.
type state struct {
	shipments  []types.ShipmentRecord
	aggregates []types.BillingAggregate
	ledger     []types.LedgerEntry
	settings   types.Settings
	processed  []types.ProcessedSource
}

func (s *state) clone() *state {
	return &state{
		shipments:  append([]types.ShipmentRecord(nil), s.shipments...),
		aggregates: append([]types.BillingAggregate(nil), s.aggregates...),
		ledger:     append([]types.LedgerEntry(nil), s.ledger...),
		settings:   s.settings,
		processed:  append([]types.ProcessedSource(nil), s.processed...),
	}
}

// tables encodes the named tables for a commit.
func (s *state) tables(names ...string) map[string]store.Table {
	out := make(map[string]store.Table, len(names))
	for _, name := range names {
		t := store.Table{Columns: Columns(name)}
		switch name {
		case TableShipments:
			t.Rows = make([]store.Row, len(s.shipments))
			for i, r := range s.shipments {
				t.Rows[i] = encodeShipment(r)
			}
		case TableAggregates:
			t.Rows = make([]store.Row, len(s.aggregates))
			for i, a := range s.aggregates {
				t.Rows[i] = encodeAggregate(a)
			}
		case TableLedger:
			t.Rows = make([]store.Row, len(s.ledger))
			for i, e := range s.ledger {
				t.Rows[i] = encodeLedger(e)
			}
		case TableSettings:
			t.Rows = []store.Row{{
				"input_folder":  s.settings.InputFolder,
				"filename_mode": s.settings.FilenameMode,
			}}
		case TableProcessed:
			t.Rows = make([]store.Row, len(s.processed))
			for i, p := range s.processed {
				t.Rows[i] = encodeProcessed(p)
			}
		}
		out[name] = t
	}
	return out
}

// loadTable loads and conforms one table. found is false for a table that was
// never saved.
func loadTable(ctx context.Context, st *store.Store, name string) (t store.Table, found bool, err error) {
	raw, err := st.Load(ctx, name)
	if errors.Is(err, store.ErrTableNotFound) {
		return store.Table{Columns: Columns(name)}, false, nil
	}
	if err != nil {
		return store.Table{}, false, err
	}
	return conform(name, raw), true, nil
}

// loadState reads every table through the store.
func loadState(ctx context.Context, st *store.Store, defaults types.Settings) (*state, error) {
	s := &state{settings: defaults}

	shipments, _, err := loadTable(ctx, st, TableShipments)
	if err != nil {
		return nil, err
	}
	for _, row := range shipments.Rows {
		s.shipments = append(s.shipments, decodeShipment(row))
	}

	aggregates, found, err := loadTable(ctx, st, TableAggregates)
	if err != nil {
		return nil, err
	}
	if found {
		for _, row := range aggregates.Rows {
			s.aggregates = append(s.aggregates, decodeAggregate(row))
		}
	} else if len(s.shipments) > 0 {
		s.aggregates = rebuildAggregates(s.shipments)
	}

	ledger, _, err := loadTable(ctx, st, TableLedger)
	if err != nil {
		return nil, err
	}
	for _, row := range ledger.Rows {
		e := decodeLedger(row)
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.ledger = append(s.ledger, e)
	}

	settings, found, err := loadTable(ctx, st, TableSettings)
	if err != nil {
		return nil, err
	}
	if found && len(settings.Rows) > 0 {
		row := settings.Rows[0]
		if v := row["input_folder"]; v != "" {
			s.settings.InputFolder = v
		}
		if v := row["filename_mode"]; v != "" {
			s.settings.FilenameMode = v
		}
	}
	if s.settings.FilenameMode == "" {
		s.settings.FilenameMode = types.FilenameCarrierCycle
	}

	processed, _, err := loadTable(ctx, st, TableProcessed)
	if err != nil {
		return nil, err
	}
	for _, row := range processed.Rows {
		if row["path"] == "" {
			continue
		}
		s.processed = append(s.processed, decodeProcessed(row))
	}

	return s, nil
}

// verifyConsistency reports aggregates whose totals drifted from the records.
func (s *state) verifyConsistency() []error {
	rebuilt := rebuildAggregates(s.shipments)
	want := make(map[types.AggregateKey]types.BillingAggregate, len(rebuilt))
	for _, a := range rebuilt {
		want[a.Key()] = a
	}

	var errs []error
	seen := make(map[types.AggregateKey]bool, len(s.aggregates))
	for _, a := range s.aggregates {
		seen[a.Key()] = true
		w, ok := want[a.Key()]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("aggregate %s/%s/%s has no shipment records", a.Client, a.Carrier, a.CyclePeriod))
		case w.ShipmentCount != a.ShipmentCount || !w.TotalCost.Equal(a.TotalCost) || !w.TotalBillable.Equal(a.TotalBillable):
			errs = append(errs, fmt.Errorf("aggregate %s/%s/%s totals differ from shipment records", a.Client, a.Carrier, a.CyclePeriod))
		}
	}
	for k := range want {
		if !seen[k] {
			errs = append(errs, fmt.Errorf("shipment records for %s/%s/%s have no aggregate", k.Client, k.Carrier, k.CyclePeriod))
		}
	}
	return errs
}
