package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/skistore/postgres"
	"github.com/yuletide/openskidata-processor/internal/skistore/sqlite"
)

// closableStore is a skistore.Store the caller must close after use.
type closableStore interface {
	skistore.Store
	Close() error
}

type pgxCloser struct {
	skistore.Store
	pool *pgxpool.Pool
}

func (c *pgxCloser) Close() error {
	c.pool.Close()
	return nil
}

func initStore(ctx context.Context) (closableStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "skicluster.db"
		}
		return sqlite.Open(ctx, dsn)
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: connect")
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &pgxCloser{Store: store, pool: pool}, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
