package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/postgres"
)

// storageBundle объединяет реализации хранилища, выбранные при старте.
type storageBundle struct {
	Runner      domain.TxRunner
	OutboxRepo  domain.OutboxRelayRepository
	CleanupRepo domain.IdempotencyCleanupRepository
	Ping        func(ctx context.Context) error
	Close       func()
}

// initStorage выбирает PostgreSQL при заданном DSN, иначе in-memory хранилище.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storageBundle, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres DSN is empty, using in-memory storage")
		store := memory.NewStore()
		return &storageBundle{
			Runner:      store,
			OutboxRepo:  store,
			CleanupRepo: store,
			Ping:        func(context.Context) error { return nil },
			Close:       func() {},
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("postgres storage initialized")

	return &storageBundle{
		Runner:      postgres.NewTxRunner(store),
		OutboxRepo:  postgres.NewOutboxRepository(store),
		CleanupRepo: postgres.NewIdempotencyRepository(store),
		Ping:        store.Ping,
		Close: func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		},
	}, nil
}
