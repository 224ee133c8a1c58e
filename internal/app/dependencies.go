package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sweetrise/bakery-pos/internal/domain"
	"github.com/sweetrise/bakery-pos/internal/health"
	"github.com/sweetrise/bakery-pos/internal/storage/memory"
	"github.com/sweetrise/bakery-pos/internal/storage/postgres"
)

// dependencies объединяет хранилище и репозитории, собранные под
// выбранный режим (memory или postgres).
type dependencies struct {
	store       domain.Store
	catalog     domain.ProductCatalog
	staff       domain.StaffDirectory
	timeline    domain.TimelineRepository
	outboxRepo  domain.OutboxRepository
	idempotency domain.IdempotencyRepository
	pinger      health.Pinger
	closeFn     func() error
}

func (d *dependencies) Close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// buildDependencies инициализирует хранилище согласно конфигурации.
// Postgres-режим применяет миграции при старте.
func buildDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*dependencies, error) {
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage %q requires POS_POSTGRES_DSN", cfg.Storage)
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres storage initialized")

		return &dependencies{
			store:       store,
			catalog:     store,
			staff:       store,
			timeline:    postgres.NewTimelineRepository(store),
			outboxRepo:  postgres.NewOutboxRepository(store),
			idempotency: postgres.NewIdempotencyRepository(store),
			pinger:      store,
			closeFn:     store.Close,
		}, nil

	case StorageMemory, "":
		store := memory.NewStore()
		logger.Info("in-memory storage initialized")

		return &dependencies{
			store:       store,
			catalog:     store,
			staff:       store,
			timeline:    memory.NewTimelineRepository(),
			outboxRepo:  store.Outbox(),
			idempotency: memory.NewIdempotencyRepository(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage mode %q", cfg.Storage)
	}
}
