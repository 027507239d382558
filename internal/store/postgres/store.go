// Package postgres implements the order, payment, inventory and catalog
// stores on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct{ db DB }

func New(db DB) *Store { return &Store{db: db} }

// Tx is one database transaction seen through every domain's Tx contract.
type Tx struct{ q querier }

var (
	_ orders.Tx       = (*Tx)(nil)
	_ payments.Tx     = (*Tx)(nil)
	_ inventory.Tx    = (*Tx)(nil)
	_ orders.Store    = (*Store)(nil)
	_ payments.Store  = (*Store)(nil)
	_ inventory.Store = (*Store)(nil)
	_ catalog.Lookup  = (*Store)(nil)
)

func (s *Store) inTx(ctx context.Context, fn func(t *Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Tx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) RunOrderTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return s.inTx(ctx, func(t *Tx) error { return fn(t) })
}

func (s *Store) RunPaymentTx(ctx context.Context, fn func(tx payments.Tx) error) error {
	return s.inTx(ctx, func(t *Tx) error { return fn(t) })
}

func (s *Store) RunInventoryTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	return s.inTx(ctx, func(t *Tx) error { return fn(t) })
}

func (s *Store) Order(ctx context.Context, id string) (*orders.Order, error) {
	return (&Tx{q: s.db}).loadOrder(ctx, id, false)
}

func (s *Store) IntentByTransactionID(ctx context.Context, transactionID string) (*payments.Intent, error) {
	return (&Tx{q: s.db}).IntentByTransactionID(ctx, transactionID)
}
