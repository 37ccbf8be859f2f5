package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/config"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/domain/forum"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/domain/notification"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/kv"
)

// storage bundles the repositories of one backend with the transactor that
// spans them.
type storage struct {
	backend       string
	tx            db.Transactor
	posts         forum.PostRepository
	notifications notification.Repository
	check         db.HealthCheck
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &storage{
			backend:       config.BackendPostgres,
			tx:            db.NewTransactor(pool),
			posts:         forum.NewPostRepoPG(pool),
			notifications: notification.NewRepoPG(pool),
			check:         db.PoolCheck(pool),
			close:         pool.Close,
		}, nil
	case config.BackendPebble:
		store, err := kv.Open(cfg.PebblePath, logger)
		if err != nil {
			return nil, err
		}
		return pebbleStorage(store, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func pebbleStorage(store *kv.Store, logger zerolog.Logger) *storage {
	return &storage{
		backend:       config.BackendPebble,
		tx:            store,
		posts:         forum.NewPostRepoPebble(store),
		notifications: notification.NewRepoPebble(store),
		check:         store.Check,
		close: func() {
			if err := store.Close(); err != nil {
				logger.Error().Err(err).Msg("closing pebble store")
			}
		},
	}
}
