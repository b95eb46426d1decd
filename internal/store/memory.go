package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps tables in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]Table)}
}

func (m *MemoryBackend) LoadTable(ctx context.Context, name string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[name]
	if !ok {
		return Table{}, ErrTableNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryBackend) SaveTable(ctx context.Context, name string, t Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = t.Clone()
	return nil
}

// SaveTables replaces all given tables under one lock.
func (m *MemoryBackend) SaveTables(ctx context.Context, tables map[string]Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, t := range tables {
		m.tables[name] = t.Clone()
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
