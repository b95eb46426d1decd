// =============================================================================
// Freight Billing Reconciler - Persistence Port
// =============================================================================
//
// The store persists named tables of string cells. Every table is loaded and
// saved whole; there are no partial updates.
//
//   Backend   : LoadTable / SaveTable against one medium (xlsx, postgres, memory)
//   Committer : optional, saves several tables in one backend transaction
//   Store     : multi-table commits on top of a Backend
//
// COMMIT PROTOCOL (backends without Committer):
//   1. every staged table is written to the journal file and fsynced
//   2. tables are saved one by one through the backend
//   3. the journal is removed
//
// A journal found on Open is a commit that stopped between 1 and 3; it is
// replayed before anything is loaded.
//
// =============================================================================

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Row is one table row keyed by column name.
type Row map[string]string

// Table is a whole persisted table.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Backend is the persistence port.
type Backend interface {
	// LoadTable returns ErrTableNotFound for a table that was never saved.
	LoadTable(ctx context.Context, name string) (Table, error)

	// SaveTable replaces the table entirely.
	SaveTable(ctx context.Context, name string, t Table) error

	Close() error
}

// Committer is implemented by backends that can save several tables
// atomically on their own.
type Committer interface {
	SaveTables(ctx context.Context, tables map[string]Table) error
}

// Store serializes commits against a backend.
type Store struct {
	mu          sync.Mutex
	backend     Backend
	journalPath string
	logger      *zap.Logger
	closed      bool
}

// Open wraps a backend and replays any leftover journal. An empty
// journalPath disables journaling; commits to a non-Committer backend are then
// only atomic per table.
func Open(ctx context.Context, backend Backend, journalPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend:     backend,
		journalPath: journalPath,
		logger:      logger,
	}

	if err := s.replay(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads one table.
func (s *Store) Load(ctx context.Context, name string) (Table, error) {
	t, err := s.backend.LoadTable(ctx, name)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return Table{}, err
		}
		return Table{}, ioError("load", name, err)
	}
	return t, nil
}

// Commit saves every given table as one unit.
//
// On error before the journal is durable nothing was written. An error
// wrapping ErrJournalPending means the commit is durable in the journal but
// some tables were not saved yet.
func (s *Store) Commit(ctx context.Context, tables map[string]Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(tables) == 0 {
		return nil
	}

	if c, ok := s.backend.(Committer); ok {
		if err := c.SaveTables(ctx, tables); err != nil {
			return ioError("commit", "", err)
		}
		return nil
	}

	if s.journalPath == "" {
		return s.saveAll(ctx, tables)
	}

	j := newJournal(tables)
	if err := writeJournal(s.journalPath, j); err != nil {
		return ioError("journal", "", err)
	}

	if err := s.saveAll(ctx, tables); err != nil {
		s.logger.Error("commit left in journal",
			zap.String("journal_id", j.ID),
			zap.String("journal", s.journalPath),
			zap.Error(err))
		return fmt.Errorf("%w: %w", ErrJournalPending, err)
	}

	if err := removeJournal(s.journalPath); err != nil {
		// The tables are saved; replaying the journal later is harmless.
		s.logger.Warn("could not remove journal", zap.String("journal", s.journalPath), zap.Error(err))
	}
	return nil
}

// saveAll saves tables in name order.
func (s *Store) saveAll(ctx context.Context, tables map[string]Table) error {
	for _, name := range sortedNames(tables) {
		if err := s.backend.SaveTable(ctx, name, tables[name]); err != nil {
			return ioError("save", name, err)
		}
	}
	return nil
}

// replay applies a leftover journal.
func (s *Store) replay(ctx context.Context) error {
	if s.journalPath == "" {
		return nil
	}

	j, err := readJournal(s.journalPath)
	if err != nil {
		return ioError("journal", "", err)
	}
	if j == nil {
		return nil
	}

	s.logger.Warn("replaying interrupted commit",
		zap.String("journal_id", j.ID),
		zap.Time("created_at", j.CreatedAt),
		zap.Int("tables", len(j.Tables)))

	if c, ok := s.backend.(Committer); ok {
		err = c.SaveTables(ctx, j.Tables)
	} else {
		err = s.saveAll(ctx, j.Tables)
	}
	if err != nil {
		return ioError("replay", "", err)
	}

	if err := removeJournal(s.journalPath); err != nil {
		return ioError("journal", "", err)
	}
	return nil
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Close closes the backend. Further commits fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

func sortedNames(tables map[string]Table) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
