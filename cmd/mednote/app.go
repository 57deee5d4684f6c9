package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mednote/mednote/internal/config"
	"github.com/mednote/mednote/internal/domain/records"
	"github.com/mednote/mednote/internal/platform/auth"
	"github.com/mednote/mednote/internal/platform/db"
	"github.com/mednote/mednote/internal/platform/localstore"
	"github.com/mednote/mednote/internal/remote"
)

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// backend is an opened Record Store plus whatever it holds open.
type backend struct {
	store records.Store
	pool  *pgxpool.Pool
	kv    localstore.KV
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.kv != nil {
		_ = b.kv.Close()
	}
}

// check verifies whichever store is open. A local store that has never been
// written is still healthy.
func (b *backend) check(ctx context.Context) error {
	switch {
	case b.pool != nil:
		return b.pool.Ping(ctx)
	case b.kv != nil:
		_, err := b.kv.Get(ctx, records.PatientsKey)
		if errors.Is(err, localstore.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	// serve never runs over the remote client.
	return nil
}

// openBackend builds the Record Store selected by STORE_DRIVER. Callers
// must have validated cfg.
func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to database")
		return &backend{store: records.NewStorePG(pool), pool: pool}, nil

	case config.DriverSQLite, config.DriverBadger:
		kv, err := localstore.Open(cfg.StoreDriver, cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.LocalPath).Msg("opened local store")
		b := &backend{store: records.NewLocalStore(kv), kv: kv}
		if cfg.SeedDemoData {
			seeded, err := records.SeedDemo(auth.WithUserID(ctx, cfg.Principal), b.store)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
			if seeded {
				log.Info().Str("principal", cfg.Principal).Msg("seeded demo patients")
			}
		}
		return b, nil

	case config.DriverRemote:
		client, err := remote.New(cfg.APIURL, cfg.APIToken, remote.WithTenant(cfg.DefaultTenant))
		if err != nil {
			return nil, err
		}
		return &backend{store: client}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
