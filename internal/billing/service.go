// =============================================================================
// Freight Billing Reconciler - Billing Service
// =============================================================================
//
// The billing service owns the reconciliation ledger: shipment records, their
// per-(client, carrier, cycle) aggregates, the upload ledger, settings and
// processed scan paths.
//
// MUTATIONS (each one atomic):
//   Ingest               : dedup check, optional replace, append, aggregate, ledger
//   DeleteByCarrierCycle : remove one carrier file's data, soft-delete its ledger entries
//   DeleteByClientCycle  : remove one client's data across carriers
//   MarkBilled           : Ready to Bill -> Billed for one (client, cycle)
//   Reset                : wipe everything behind a confirmation code
//
// Every mutation clones the state, applies itself to the clone, commits the
// touched tables through the store and only then swaps the clone in. A failed
// commit leaves the live state untouched.
//
// =============================================================================

package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// Options configures a Service.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// DefaultSettings apply until settings are saved.
	DefaultSettings types.Settings
}

// Service is safe for concurrent use.
type Service struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
	locks  *keyLocks

	mu sync.RWMutex
	st *state
}

// Open loads every table. An unreadable table fails the open; a missing one
// starts empty.
func Open(ctx context.Context, st *store.Store, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	loaded, err := loadState(ctx, st, opts.DefaultSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing data: %w", err)
	}

	svc := &Service{
		store:  st,
		logger: opts.Logger,
		now:    opts.Now,
		locks:  newKeyLocks(),
		st:     loaded,
	}

	if problems := loaded.verifyConsistency(); len(problems) > 0 {
		for _, p := range problems {
			svc.logger.Warn("billing data inconsistency", zap.Error(p))
		}
	}

	svc.logger.Debug("billing data loaded",
		zap.Int("shipments", len(loaded.shipments)),
		zap.Int("aggregates", len(loaded.aggregates)),
		zap.Int("ledger_entries", len(loaded.ledger)))
	return svc, nil
}

// commit persists the named tables of staged and swaps staged in. A commit
// that reached the journal is swapped in even though it reports an error,
// because it will be replayed on the next open.
func (s *Service) commit(ctx context.Context, staged *state, tables ...string) error {
	err := s.store.Commit(ctx, staged.tables(tables...))
	if err == nil || errors.Is(err, store.ErrJournalPending) {
		s.st = staged
	}
	return err
}

// =============================================================================
// INGESTION
// =============================================================================

// Batch is one standardized file ready for the ledger.
type Batch struct {
	Filename    string
	FileHash    string
	Carrier     string
	CyclePeriod string

	// SourcePath is set for folder scans and recorded as processed in the
	// same commit.
	SourcePath string

	Records []types.ShipmentRecord

	// Replace deletes the existing data of (Carrier, CyclePeriod) first.
	Replace bool
}

func (b Batch) key() types.CarrierCycle {
	return types.CarrierCycle{Carrier: b.Carrier, CyclePeriod: b.CyclePeriod}
}

// Precheck applies the deduplication policy without ingesting. The pipeline
// uses it to reject a duplicate before parsing the file.
func (s *Service) Precheck(key types.CarrierCycle, fileHash string, replace bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.dedup(key, fileHash, replace)
}

// dedup is the ingestion policy for one (carrier, cycle) and file hash.
func (st *state) dedup(key types.CarrierCycle, fileHash string, replace bool) error {
	if replace {
		return nil
	}

	active := st.activeEntries(key)
	existing := st.countKey(key)
	if len(active) > 0 || existing > 0 {
		for _, e := range active {
			if fileHash != "" && e.FileHash == fileHash {
				return &DuplicateFileError{FileHash: fileHash, Filename: e.Filename}
			}
		}
		return &DuplicateLogicalKeyError{Key: key, ExistingCount: existing}
	}

	if e, ok := st.activeHash(fileHash); ok {
		return &DuplicateFileError{FileHash: fileHash, Filename: e.Filename}
	}
	return nil
}

// Ingest applies one batch atomically.
func (s *Service) Ingest(ctx context.Context, b Batch) Result {
	start := time.Now()

	b.Carrier = strings.TrimSpace(b.Carrier)
	b.CyclePeriod = strings.TrimSpace(b.CyclePeriod)
	if b.Carrier == "" || b.CyclePeriod == "" {
		return failed(ErrMissingKey)
	}
	if len(b.Records) == 0 {
		return failed(ErrEmptyBatch)
	}
	key := b.key()

	unlock := s.locks.Lock(s.ingestLockKeys(b)...)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.st.dedup(key, b.FileHash, b.Replace); err != nil {
		s.logger.Info("ingestion rejected",
			zap.String("carrier", key.Carrier),
			zap.String("cycle_period", key.CyclePeriod),
			zap.String("filename", b.Filename),
			zap.Error(err))
		return failed(err)
	}

	staged := s.st.clone()
	now := s.now().UTC()
	var stats Stats

	if b.Replace {
		stats.RecordsReplaced, stats.AggregatesDeleted = staged.deleteCarrierCycle(key)
		stats.LedgerEntriesDeleted = staged.softDeleteEntries(key, now)
	}

	records := make([]types.ShipmentRecord, len(b.Records))
	for i, r := range b.Records {
		r.Carrier = key.Carrier
		r.CyclePeriod = key.CyclePeriod
		if r.FileHash == "" {
			r.FileHash = b.FileHash
		}
		if r.UploadTimestamp.IsZero() {
			r.UploadTimestamp = now
		}
		if r.InvoiceStatus == "" {
			r.InvoiceStatus = types.StatusReadyToBill
		}
		records[i] = r
	}
	staged.shipments = append(staged.shipments, records...)
	stats.AggregatesCreated, stats.AggregatesUpdated = staged.applyBatch(groupBatch(records))

	entry := types.LedgerEntry{
		ID:              uuid.NewString(),
		Filename:        b.Filename,
		FileHash:        b.FileHash,
		UploadTimestamp: now,
		RecordsImported: len(records),
		Carrier:         key.Carrier,
		CyclePeriod:     key.CyclePeriod,
		Status:          types.LedgerActive,
		SourcePath:      b.SourcePath,
	}
	staged.ledger = append(staged.ledger, entry)
	stats.RecordsImported = len(records)
	stats.LedgerID = entry.ID

	tables := []string{TableShipments, TableAggregates, TableLedger}
	if b.SourcePath != "" {
		staged.markProcessed(b.SourcePath, now)
		tables = append(tables, TableProcessed)
	}

	if err := s.commit(ctx, staged, tables...); err != nil {
		s.logger.Error("ingestion commit failed",
			zap.String("carrier", key.Carrier),
			zap.String("cycle_period", key.CyclePeriod),
			zap.Error(err))
		return failed(fmt.Errorf("failed to save ingestion: %w", err))
	}
	stats.Duration = time.Since(start)

	verb := "imported"
	if b.Replace && stats.RecordsReplaced > 0 {
		verb = "replaced"
	}
	msg := fmt.Sprintf("Successfully %s %d shipments for %s (%s)", verb, stats.RecordsImported, key.Carrier, key.CyclePeriod)
	if stats.RecordsReplaced > 0 {
		msg += fmt.Sprintf(" (replaced %d existing records)", stats.RecordsReplaced)
	}

	s.logger.Info("ingestion committed",
		zap.String("carrier", key.Carrier),
		zap.String("cycle_period", key.CyclePeriod),
		zap.String("filename", b.Filename),
		zap.Int("records", stats.RecordsImported),
		zap.Int("replaced", stats.RecordsReplaced),
		zap.Int("aggregates_created", stats.AggregatesCreated),
		zap.Int("aggregates_updated", stats.AggregatesUpdated))

	return Result{Success: true, Message: msg, Stats: stats}
}

// ingestLockKeys covers the carrier key and every client key the batch or a
// replace can touch.
func (s *Service) ingestLockKeys(b Batch) []string {
	key := b.key()
	keys := []string{carrierLockKey(key)}
	for _, r := range b.Records {
		keys = append(keys, clientLockKey(types.ClientCycle{Client: r.Client, CyclePeriod: key.CyclePeriod}))
	}
	if b.Replace {
		s.mu.RLock()
		for _, r := range s.st.shipments {
			if r.CarrierCycle() == key {
				keys = append(keys, clientLockKey(r.ClientCycle()))
			}
		}
		s.mu.RUnlock()
	}
	return keys
}

// =============================================================================
// DELETION
// =============================================================================

// DeleteByCarrierCycle removes one carrier file's records and aggregates and
// soft-deletes its ledger entries.
func (s *Service) DeleteByCarrierCycle(ctx context.Context, key types.CarrierCycle) Result {
	keys := []string{carrierLockKey(key)}
	s.mu.RLock()
	for _, r := range s.st.shipments {
		if r.CarrierCycle() == key {
			keys = append(keys, clientLockKey(r.ClientCycle()))
		}
	}
	s.mu.RUnlock()

	unlock := s.locks.Lock(keys...)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	var stats Stats
	stats.RecordsDeleted, stats.AggregatesDeleted = staged.deleteCarrierCycle(key)
	stats.LedgerEntriesDeleted = staged.softDeleteEntries(key, s.now().UTC())

	if stats.RecordsDeleted == 0 && stats.AggregatesDeleted == 0 && stats.LedgerEntriesDeleted == 0 {
		return Result{Success: true, Message: fmt.Sprintf("No data found for %s", key)}
	}

	if err := s.commit(ctx, staged, TableShipments, TableAggregates, TableLedger); err != nil {
		return failed(fmt.Errorf("failed to save deletion: %w", err))
	}

	s.logger.Info("carrier cycle deleted",
		zap.String("carrier", key.Carrier),
		zap.String("cycle_period", key.CyclePeriod),
		zap.Int("records", stats.RecordsDeleted))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %d records for %s", stats.RecordsDeleted, key),
		Stats:   stats,
	}
}

// DeleteByClientCycle removes one client's records and aggregates across all
// carriers. Ledger entries of any (carrier, cycle) left without records are
// soft-deleted.
func (s *Service) DeleteByClientCycle(ctx context.Context, key types.ClientCycle) Result {
	keys := []string{clientLockKey(key)}
	s.mu.RLock()
	for _, r := range s.st.shipments {
		if r.ClientCycle() == key {
			keys = append(keys, carrierLockKey(r.CarrierCycle()))
		}
	}
	s.mu.RUnlock()

	unlock := s.locks.Lock(keys...)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	var stats Stats
	var touched []types.CarrierCycle
	stats.RecordsDeleted, stats.AggregatesDeleted, touched = staged.deleteClientCycle(key)

	if stats.RecordsDeleted == 0 && stats.AggregatesDeleted == 0 {
		return Result{Success: true, Message: fmt.Sprintf("No data found for %s", key)}
	}

	now := s.now().UTC()
	for _, cc := range touched {
		if staged.countKey(cc) == 0 {
			stats.LedgerEntriesDeleted += staged.softDeleteEntries(cc, now)
		}
	}

	if err := s.commit(ctx, staged, TableShipments, TableAggregates, TableLedger); err != nil {
		return failed(fmt.Errorf("failed to save deletion: %w", err))
	}

	s.logger.Info("client cycle deleted",
		zap.String("client", key.Client),
		zap.String("cycle_period", key.CyclePeriod),
		zap.Int("records", stats.RecordsDeleted),
		zap.Int("ledger_entries_deleted", stats.LedgerEntriesDeleted))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %d records for %s", stats.RecordsDeleted, key),
		Stats:   stats,
	}
}

// =============================================================================
// BILLING STATUS
// =============================================================================

// MarkBilled sets Billed and the invoice metadata on every aggregate and
// record of (client, cycle). Repeating a call with the same arguments is a
// no-op. A nil InvoiceDate means today, so a repeat on a later day without a
// date moves the invoice date to that day.
func (s *Service) MarkBilled(ctx context.Context, req MarkBilledRequest) Result {
	if strings.TrimSpace(req.InvoiceNumber) == "" {
		return failed(ErrInvoiceNumberRequired)
	}
	key := types.ClientCycle{Client: req.Client, CyclePeriod: req.CyclePeriod}

	unlock := s.locks.Lock(clientLockKey(key))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	invoiceDate := dateOnly(s.now())
	if req.InvoiceDate != nil {
		invoiceDate = dateOnly(*req.InvoiceDate)
	}

	staged := s.st.clone()
	aggregates, records, changed := staged.markBilled(req, invoiceDate)
	stats := Stats{AggregatesBilled: aggregates, RecordsBilled: records}

	if aggregates == 0 && records == 0 {
		return Result{Success: true, Message: fmt.Sprintf("No billing data found for %s", key)}
	}
	if !changed {
		return Result{Success: true, Message: fmt.Sprintf("%s already billed on invoice %s", key, req.InvoiceNumber), Stats: stats}
	}

	if err := s.commit(ctx, staged, TableShipments, TableAggregates); err != nil {
		return failed(fmt.Errorf("failed to save billing status: %w", err))
	}

	s.logger.Info("client cycle billed",
		zap.String("client", key.Client),
		zap.String("cycle_period", key.CyclePeriod),
		zap.String("invoice_number", req.InvoiceNumber),
		zap.Int("aggregates", aggregates),
		zap.Int("records", records))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Marked %s as billed on invoice %s", key, strings.TrimSpace(req.InvoiceNumber)),
		Stats:   stats,
	}
}

// =============================================================================
// RESET
// =============================================================================

// Reset wipes shipments, aggregates and processed paths and soft-deletes every
// active ledger entry. The ledger itself is kept for audit.
func (s *Service) Reset(ctx context.Context, confirmation string) Result {
	if confirmation != ResetConfirmationCode {
		return failed(&InvalidConfirmationCodeError{})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	stats := Stats{
		RecordsDeleted:       len(staged.shipments),
		AggregatesDeleted:    len(staged.aggregates),
		LedgerEntriesDeleted: staged.softDeleteAll(s.now().UTC()),
	}
	staged.shipments = nil
	staged.aggregates = nil
	staged.processed = nil

	if err := s.commit(ctx, staged, TableShipments, TableAggregates, TableLedger, TableProcessed); err != nil {
		return failed(fmt.Errorf("failed to reset data: %w", err))
	}

	s.logger.Warn("all billing data reset",
		zap.Int("records", stats.RecordsDeleted),
		zap.Int("aggregates", stats.AggregatesDeleted))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Reset complete: %d records and %d aggregates removed", stats.RecordsDeleted, stats.AggregatesDeleted),
		Stats:   stats,
	}
}

// =============================================================================
// SETTINGS & SCAN BOOKKEEPING
// =============================================================================

// UpdateSettings saves the settings record.
func (s *Service) UpdateSettings(ctx context.Context, settings types.Settings) error {
	switch settings.FilenameMode {
	case "":
		settings.FilenameMode = types.FilenameCarrierCycle
	case types.FilenameCarrierCycle, types.FilenameCycleCarrier:
	default:
		return ErrInvalidFilenameMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	staged.settings = settings
	if err := s.commit(ctx, staged, TableSettings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// MarkProcessed records a scanned path that was not ingested, so later scans
// skip it.
func (s *Service) MarkProcessed(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.isProcessed(path) {
		return nil
	}
	staged := s.st.clone()
	staged.markProcessed(path, s.now().UTC())
	if err := s.commit(ctx, staged, TableProcessed); err != nil {
		return fmt.Errorf("failed to save processed path: %w", err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Query returns records sorted by client, carrier and ship date (missing
// dates last).
func (s *Service) Query(f types.Filter) []types.ShipmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.query(f)
}

// Aggregates returns matching aggregates sorted by cycle desc, client,
// carrier.
func (s *Service) Aggregates(f types.Filter) []types.BillingAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.BillingAggregate
	for _, a := range s.st.aggregates {
		if f.MatchAggregate(a) {
			out = append(out, a)
		}
	}
	sortAggregates(out)
	return out
}

// ClientSummaries returns the cross-carrier rollups, optionally for one
// cycle, sorted by cycle desc then billable desc.
func (s *Service) ClientSummaries(cycle string) []types.ClientCycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.st.aggregates, cycle)
}

// CarrierBreakdown returns one client's aggregates for a cycle, highest
// billable first.
func (s *Service) CarrierBreakdown(key types.ClientCycle) []types.BillingAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.BillingAggregate
	for _, a := range s.st.aggregates {
		if a.Client == key.Client && a.CyclePeriod == key.CyclePeriod {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalBillable.GreaterThan(out[j].TotalBillable)
	})
	return out
}

// UploadHistory returns ledger entries newest first.
func (s *Service) UploadHistory(limit int, includeDeleted bool) []types.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.uploadHistory(limit, includeDeleted)
}

// CheckExisting reports whether (carrier, cycle) holds records and how many.
func (s *Service) CheckExisting(key types.CarrierCycle) (bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.st.countKey(key)
	return n > 0, n
}

// Settings returns the current settings record.
func (s *Service) Settings() types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.settings
}

// ProcessedSources returns the recorded scan paths.
func (s *Service) ProcessedSources() []types.ProcessedSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ProcessedSource(nil), s.st.processed...)
}

// IsProcessed reports whether a scan path was already handled.
func (s *Service) IsProcessed(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.isProcessed(path)
}

// Clients returns the distinct clients, sorted.
func (s *Service) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.st.aggregates, func(a types.BillingAggregate) string { return a.Client })
}

// Carriers returns the distinct carriers, sorted.
func (s *Service) Carriers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.st.aggregates, func(a types.BillingAggregate) string { return a.Carrier })
}

// CyclePeriods returns the distinct cycles, newest first.
func (s *Service) CyclePeriods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := distinct(s.st.aggregates, func(a types.BillingAggregate) string { return a.CyclePeriod })
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Snapshot encodes every table as it would be persisted.
func (s *Service) Snapshot() map[string]store.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.tables(AllTables...)
}

// Verify recomputes every aggregate from the records and reports drift.
func (s *Service) Verify() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.verifyConsistency()
}

func distinct(aggs []types.BillingAggregate, field func(types.BillingAggregate) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range aggs {
		v := field(a)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
