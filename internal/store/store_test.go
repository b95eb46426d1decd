package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyBackend has no SaveTables, so the store journals its commits.
type flakyBackend struct {
	inner  *MemoryBackend
	failOn string
	saves  []string
}

func (f *flakyBackend) LoadTable(ctx context.Context, name string) (Table, error) {
	return f.inner.LoadTable(ctx, name)
}

func (f *flakyBackend) SaveTable(ctx context.Context, name string, t Table) error {
	if name == f.failOn {
		return errors.New("disk full")
	}
	f.saves = append(f.saves, name)
	return f.inner.SaveTable(ctx, name, t)
}

func (f *flakyBackend) Close() error { return nil }

func sampleTable(v string) Table {
	return Table{Columns: []string{"k", "v"}, Rows: []Row{{"k": "1", "v": v}}}
}

func TestMemoryBackendCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	_, err := m.LoadTable(ctx, "shipments")
	assert.ErrorIs(t, err, ErrTableNotFound)

	tbl := sampleTable("a")
	require.NoError(t, m.SaveTable(ctx, "shipments", tbl))
	tbl.Rows[0]["v"] = "mutated"

	got, err := m.LoadTable(ctx, "shipments")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Rows[0]["v"])
}

func TestCommitJournalsAndCleansUp(t *testing.T) {
	ctx := context.Background()
	journal := filepath.Join(t.TempDir(), "commit.journal")
	backend := &flakyBackend{inner: NewMemoryBackend()}

	s, err := Open(ctx, backend, journal, zap.NewNop())
	require.NoError(t, err)

	err = s.Commit(ctx, map[string]Table{"b": sampleTable("2"), "a": sampleTable("1")})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, backend.saves)
	_, statErr := os.Stat(journal)
	assert.True(t, os.IsNotExist(statErr), "journal removed after commit")
}

func TestCommitFailureLeavesJournalForReplay(t *testing.T) {
	ctx := context.Background()
	journal := filepath.Join(t.TempDir(), "commit.journal")
	mem := NewMemoryBackend()
	backend := &flakyBackend{inner: mem, failOn: "b"}

	s, err := Open(ctx, backend, journal, zap.NewNop())
	require.NoError(t, err)

	err = s.Commit(ctx, map[string]Table{"a": sampleTable("1"), "b": sampleTable("2")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJournalPending)

	var sio *StorageIOError
	require.True(t, errors.As(err, &sio))
	assert.Equal(t, "b", sio.Table)

	_, statErr := os.Stat(journal)
	require.NoError(t, statErr, "journal kept")

	// Simulated restart with a healthy disk.
	_, err = Open(ctx, &flakyBackend{inner: mem}, journal, zap.NewNop())
	require.NoError(t, err)

	got, err := mem.LoadTable(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Rows[0]["v"])
	_, statErr = os.Stat(journal)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenRejectsCorruptJournal(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "commit.journal")
	require.NoError(t, os.WriteFile(journal, []byte("{not json"), 0644))

	_, err := Open(context.Background(), NewMemoryBackend(), journal, nil)
	var sio *StorageIOError
	assert.True(t, errors.As(err, &sio))
}

func TestLoadWrapsBackendFailure(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewXLSXBackend(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(backend.Path("shipments"), []byte("garbage"), 0644))

	s, err := Open(context.Background(), backend, "", nil)
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "shipments")
	var sio *StorageIOError
	require.True(t, errors.As(err, &sio), "unreadable table must not look empty")
	assert.NotErrorIs(t, err, ErrTableNotFound)

	_, err = s.Load(context.Background(), "billing_aggregates")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestXLSXBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := NewXLSXBackend(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	tbl := Table{
		Columns: []string{"client", "cost", "ship_date"},
		Rows: []Row{
			{"client": "Globex", "cost": "0010.50", "ship_date": "2024-01-05"},
			{"client": "Initech", "cost": "3"},
		},
	}
	require.NoError(t, backend.SaveTable(ctx, "shipments", tbl))

	got, err := backend.LoadTable(ctx, "shipments")
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "0010.50", got.Rows[0]["cost"], "strings are kept verbatim")
	assert.Equal(t, "", got.Rows[1]["ship_date"])

	// Overwrite is whole-table.
	require.NoError(t, backend.SaveTable(ctx, "shipments", Table{Columns: tbl.Columns}))
	got, err = backend.LoadTable(ctx, "shipments")
	require.NoError(t, err)
	assert.Empty(t, got.Rows)
}

func TestXLSXBackendKeepsWhitespace(t *testing.T) {
	ctx := context.Background()
	backend, err := NewXLSXBackend(t.TempDir())
	require.NoError(t, err)

	tbl := Table{Columns: []string{"k", "notes"}, Rows: []Row{{"k": "1", "notes": "  padded note "}}}
	require.NoError(t, backend.SaveTable(ctx, "billing_aggregates", tbl))

	got, err := backend.LoadTable(ctx, "billing_aggregates")
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "  padded note ", got.Rows[0]["notes"])
}

func TestXLSXBackendLegacyName(t *testing.T) {
	ctx := context.Background()
	backend, err := NewXLSXBackend(t.TempDir())
	require.NoError(t, err)
	backend.AddLegacyName("shipments", "shipment_data")

	_, err = backend.LoadTable(ctx, "shipments")
	assert.ErrorIs(t, err, ErrTableNotFound)

	old := sampleTable("from legacy")
	require.NoError(t, backend.SaveTable(ctx, "shipment_data", old))
	got, err := backend.LoadTable(ctx, "shipments")
	require.NoError(t, err)
	assert.Equal(t, "from legacy", got.Rows[0]["v"])

	require.NoError(t, backend.SaveTable(ctx, "shipments", sampleTable("current")))
	got, err = backend.LoadTable(ctx, "shipments")
	require.NoError(t, err)
	assert.Equal(t, "current", got.Rows[0]["v"])

	_, err = backend.LoadTable(ctx, "upload_ledger")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestCommitAfterClose(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryBackend(), "", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Commit(context.Background(), map[string]Table{"a": sampleTable("1")}), ErrClosed)
}

func TestPostgresTableCodec(t *testing.T) {
	columns, rows, err := encodeTable(Table{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(columns))
	assert.JSONEq(t, `[]`, string(rows))

	got, err := decodeTable("x", []byte(`["a"]`), []byte(`[{"a":"1"}]`))
	require.NoError(t, err)
	assert.Equal(t, Table{Columns: []string{"a"}, Rows: []Row{{"a": "1"}}}, got)

	_, err = decodeTable("x", []byte(`{`), []byte(`[]`))
	var sio *StorageIOError
	assert.True(t, errors.As(err, &sio))
}
