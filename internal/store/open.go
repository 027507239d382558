// Package store selects the persistence backend for a process.
package store

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
	"github.com/ariefcatur/go-retail-orders/internal/store/memory"
	"github.com/ariefcatur/go-retail-orders/internal/store/postgres"
)

// Backend is everything the order core needs from storage.
type Backend interface {
	orders.Store
	payments.Store
	inventory.Store
	catalog.Lookup
}

// Open connects the configured driver, applying the schema for postgres.
// The returned func releases the backend.
func Open(ctx context.Context, cfg config.Config) (Backend, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), func() {}, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
