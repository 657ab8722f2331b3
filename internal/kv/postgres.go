package kv

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table used by Postgres. Values are JSON documents.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key         TEXT PRIMARY KEY,
	value       JSONB,
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type PostgresConfig struct {
	DB *pgxpool.Pool
}

// Postgres is a Store for deployments that keep the storefront's documents in
// the same database as the rest of the shop.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(c PostgresConfig) *Postgres {
	return &Postgres{
		db: c.DB,
	}
}

// Migrate creates the kv table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}

	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	const stmt = `SELECT value FROM kv WHERE key = $1;`

	var v []byte
	err := p.db.QueryRow(ctx, stmt, key).Scan(&v)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}

	// A NULL value is a placeholder row left by Update.
	if v == nil {
		return nil, ErrNotFound
	}

	return v, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO kv (key, value, update_time) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_time = EXCLUDED.update_time;`

	if _, err := p.db.Exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}

	return nil
}

// Update locks the row of key for the duration of fn. A placeholder row is
// inserted first so that two updates of a missing key also serialize.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	const (
		ensureStmt = `INSERT INTO kv (key, value) VALUES ($1, NULL) ON CONFLICT (key) DO NOTHING;`
		lockStmt   = `SELECT value FROM kv WHERE key = $1 FOR UPDATE;`
		updateStmt = `UPDATE kv SET value = $2, update_time = now() WHERE key = $1;`
	)

	if _, err := p.db.Exec(ctx, ensureStmt, key); err != nil {
		return fmt.Errorf("postgres update %s: ensure row: %w", key, err)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres update %s: begin transaction: %w", key, err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	var old []byte
	if err = tx.QueryRow(ctx, lockStmt, key).Scan(&old); err != nil {
		return fmt.Errorf("postgres update %s: lock: %w", key, err)
	}

	v, err := fn(old)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, updateStmt, key, v); err != nil {
		return fmt.Errorf("postgres update %s: %w", key, err)
	}

	return tx.Commit(ctx)
}
