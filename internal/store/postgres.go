package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	pgCreateTable = `
        CREATE TABLE IF NOT EXISTS kv_store (
            key TEXT PRIMARY KEY,
            value JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );
    `
	pgSelect = `SELECT value FROM kv_store WHERE key = $1;`
	pgUpsert = `
        INSERT INTO kv_store (key, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at;
    `
	pgKeys = `SELECT key FROM kv_store WHERE key LIKE $1 ORDER BY key ASC;`
)

// Postgres is a KV backed by a PostgreSQL table.
type Postgres struct {
	pool  DBPool
	log   *zap.Logger
	close func()
}

// NewPostgres verifies the connection and ensures the table exists. closeFn, when
// not nil, is called by Close.
func NewPostgres(ctx context.Context, pool DBPool, closeFn func(), logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return &Postgres{pool: pool, log: logger.Named("postgres"), close: closeFn}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	rows, err := p.pool.Query(ctx, pgSelect, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error during row iteration: %w", err)
		}
		return nil, ErrNotFound
	}
	var value []byte
	if err := rows.Scan(&value); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	if _, err := p.pool.Exec(ctx, pgUpsert, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) PutAll(ctx context.Context, entries map[string][]byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			p.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	keys := sortedKeys(entries)
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, k := range keys {
		batch.Queue(pgUpsert, k, entries[k], now)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	for _, k := range keys {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to execute batch upsert for %s: %w", k, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, pgKeys, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return keys, nil
}

func (p *Postgres) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
