package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/internal/config"
)

// Open builds the Store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var kv KV
	switch cfg.Driver {
	case config.StoreMemory:
		kv = NewMemory()
	case config.StoreSQLite:
		lite, err := OpenSQLite(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		kv = lite
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		pg, err := NewPostgres(ctx, pool, pool.Close, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		kv = pg
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	logger.Debug("Store opened.", zap.String("driver", cfg.Driver))
	return New(kv, logger), nil
}
