package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS freightbill_tables (
	name       TEXT PRIMARY KEY,
	columns    JSONB NOT NULL,
	rows       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const upsertTableSQL = `
INSERT INTO freightbill_tables (name, columns, rows, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (name) DO UPDATE
SET columns = EXCLUDED.columns, rows = EXCLUDED.rows, updated_at = EXCLUDED.updated_at;`

const selectTableSQL = `SELECT columns, rows FROM freightbill_tables WHERE name = $1;`

// PostgresBackend stores every table as one JSONB row of freightbill_tables.
// It implements Committer, so multi-table commits run in one transaction.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool and creates the backing table.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	if _, err := pool.Exec(ctx, createTablesSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating freightbill_tables table: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) LoadTable(ctx context.Context, name string) (Table, error) {
	var columns, rows []byte
	err := p.pool.QueryRow(ctx, selectTableSQL, name).Scan(&columns, &rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return Table{}, ErrTableNotFound
	}
	if err != nil {
		return Table{}, ioError("load", name, err)
	}
	return decodeTable(name, columns, rows)
}

func (p *PostgresBackend) SaveTable(ctx context.Context, name string, t Table) error {
	return p.SaveTables(ctx, map[string]Table{name: t})
}

// SaveTables upserts every table inside one transaction.
func (p *PostgresBackend) SaveTables(ctx context.Context, tables map[string]Table) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return ioError("begin", "", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	for _, name := range sortedNames(tables) {
		columns, rows, err := encodeTable(tables[name])
		if err != nil {
			return ioError("encode", name, err)
		}
		if _, err := tx.Exec(ctx, upsertTableSQL, name, columns, rows); err != nil {
			return ioError("save", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ioError("commit", "", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func encodeTable(t Table) (columns, rows []byte, err error) {
	cols := t.Columns
	if cols == nil {
		cols = []string{}
	}
	rs := t.Rows
	if rs == nil {
		rs = []Row{}
	}
	if columns, err = json.Marshal(cols); err != nil {
		return nil, nil, err
	}
	if rows, err = json.Marshal(rs); err != nil {
		return nil, nil, err
	}
	return columns, rows, nil
}

func decodeTable(name string, columns, rows []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(columns, &t.Columns); err != nil {
		return Table{}, ioError("decode", name, err)
	}
	if err := json.Unmarshal(rows, &t.Rows); err != nil {
		return Table{}, ioError("decode", name, err)
	}
	return t, nil
}
