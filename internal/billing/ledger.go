package billing

import (
	"sort"
	"time"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// activeEntries returns the active ledger entries for a logical key.
func (s *state) activeEntries(key types.CarrierCycle) []types.LedgerEntry {
	var out []types.LedgerEntry
	for _, e := range s.ledger {
		if e.Active() && e.CarrierCycle() == key {
			out = append(out, e)
		}
	}
	return out
}

// activeHash returns the active entry carrying hash, if any.
func (s *state) activeHash(hash string) (types.LedgerEntry, bool) {
	if hash == "" {
		return types.LedgerEntry{}, false
	}
	for _, e := range s.ledger {
		if e.Active() && e.FileHash == hash {
			return e, true
		}
	}
	return types.LedgerEntry{}, false
}

// softDeleteEntries flips every active entry of key to Deleted.
func (s *state) softDeleteEntries(key types.CarrierCycle, now time.Time) int {
	n := 0
	for i := range s.ledger {
		e := &s.ledger[i]
		if e.Active() && e.CarrierCycle() == key {
			e.Status = types.LedgerDeleted
			deletedAt := now
			e.DeletedTimestamp = &deletedAt
			n++
		}
	}
	return n
}

// softDeleteAll flips every active entry to Deleted.
func (s *state) softDeleteAll(now time.Time) int {
	n := 0
	for i := range s.ledger {
		e := &s.ledger[i]
		if e.Active() {
			e.Status = types.LedgerDeleted
			deletedAt := now
			e.DeletedTimestamp = &deletedAt
			n++
		}
	}
	return n
}

// uploadHistory returns ledger entries newest first. limit <= 0 means all.
func (s *state) uploadHistory(limit int, includeDeleted bool) []types.LedgerEntry {
	out := make([]types.LedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		if !includeDeleted && !e.Active() {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTimestamp.After(out[j].UploadTimestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// markProcessed records a scanned path, replacing an older mark.
func (s *state) markProcessed(path string, now time.Time) {
	for i := range s.processed {
		if s.processed[i].Path == path {
			s.processed[i].ProcessedAt = now
			return
		}
	}
	s.processed = append(s.processed, types.ProcessedSource{Path: path, ProcessedAt: now})
}

func (s *state) isProcessed(path string) bool {
	for _, p := range s.processed {
		if p.Path == path {
			return true
		}
	}
	return false
}
