// Package memory is an in-process store for tests and the STORE_DRIVER=memory
// development mode. Transactions are serialized and applied copy-on-commit,
// so a failing unit of work leaves no trace.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
)

type state struct {
	items    map[string]catalog.Item
	units    map[string]catalog.StockUnit
	orders   map[string]*orders.Order
	history  []orders.HistoryEntry
	intents  map[string]*payments.Intent
	receipts map[string]time.Time
}

func (s *state) clone() *state {
	c := &state{
		items:    maps.Clone(s.items),
		units:    maps.Clone(s.units),
		orders:   make(map[string]*orders.Order, len(s.orders)),
		history:  slices.Clone(s.history),
		intents:  make(map[string]*payments.Intent, len(s.intents)),
		receipts: maps.Clone(s.receipts),
	}
	for id, o := range s.orders {
		c.orders[id] = o.Clone()
	}
	for id, in := range s.intents {
		c.intents[id] = in.Clone()
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		items:    map[string]catalog.Item{},
		units:    map[string]catalog.StockUnit{},
		orders:   map[string]*orders.Order{},
		intents:  map[string]*payments.Intent{},
		receipts: map[string]time.Time{},
	}}
}

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
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Tx{st: s.st.clone()}
	if err := fn(t); err != nil {
		return err
	}
	s.st = t.st
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

func (s *Store) Order(_ context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *Store) IntentByTransactionID(_ context.Context, transactionID string) (*payments.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.st.intents[transactionID]
	if !ok {
		return nil, payments.ErrIntentNotFound
	}
	return in.Clone(), nil
}

// StockUnit implements catalog.Lookup.
func (s *Store) StockUnit(_ context.Context, id string) (catalog.StockUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.units[id]
	if !ok {
		return catalog.StockUnit{}, &catalog.UnknownStockUnitError{StockUnitID: id}
	}
	u.Item = s.st.items[u.ItemID]
	return u, nil
}

// PutItem adds or replaces an item. Its quantity is recomputed from its stock units.
func (s *Store) PutItem(it catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.items[it.ID] = it
	s.st.recount(it.ID)
}

// PutStockUnit adds or replaces a stock unit of an existing item.
func (s *Store) PutStockUnit(u catalog.StockUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.items[u.ItemID]; !ok {
		return fmt.Errorf("memory: unknown item %s", u.ItemID)
	}
	u.Item = catalog.Item{}
	s.st.units[u.ID] = u
	s.st.recount(u.ItemID)
	return nil
}

func (st *state) recount(itemID string) {
	it, ok := st.items[itemID]
	if !ok {
		return
	}
	it.Quantity = 0
	for _, u := range st.units {
		if u.ItemID == itemID {
			it.Quantity += u.Quantity
		}
	}
	st.items[itemID] = it
}

func (s *Store) StockUnitQuantity(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.units[id].Quantity
}

func (s *Store) ItemQuantity(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.items[id].Quantity
}

// History returns the status history of one order, oldest first.
func (s *Store) History(orderID string) []orders.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.HistoryEntry
	for _, h := range s.st.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out
}
