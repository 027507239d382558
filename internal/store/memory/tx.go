package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
)

// Tx works on a private copy of the store state.
type Tx struct{ st *state }

func (t *Tx) Adjust(_ context.Context, stockUnitID string, delta int) (inventory.Level, error) {
	u, ok := t.st.units[stockUnitID]
	if !ok {
		return inventory.Level{StockUnitID: stockUnitID}, &catalog.UnknownStockUnitError{StockUnitID: stockUnitID}
	}
	if u.Quantity+delta < 0 {
		return inventory.Level{StockUnitID: stockUnitID, ItemID: u.ItemID, Quantity: u.Quantity},
			&inventory.InsufficientStockError{ItemID: u.ItemID, StockUnitID: stockUnitID, Available: u.Quantity, Requested: -delta}
	}
	u.Quantity += delta
	t.st.units[stockUnitID] = u

	it := t.st.items[u.ItemID]
	it.Quantity += delta
	t.st.items[u.ItemID] = it

	return inventory.Level{StockUnitID: stockUnitID, ItemID: u.ItemID, Quantity: u.Quantity, ItemQuantity: it.Quantity}, nil
}

func (t *Tx) RecordReceipt(_ context.Context, receiptID string) (bool, error) {
	if _, ok := t.st.receipts[receiptID]; ok {
		return false, nil
	}
	t.st.receipts[receiptID] = time.Now().UTC()
	return true, nil
}

func (t *Tx) LockOrder(_ context.Context, id string) (*orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (t *Tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("memory: order %s already exists", o.ID)
	}
	t.st.orders[o.ID] = o.Clone()
	return nil
}

func (t *Tx) UpdateStatus(_ context.Context, id string, from, to orders.Status, at time.Time) (bool, error) {
	o, ok := t.st.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	return true, nil
}

func (t *Tx) UpdatePaymentStatus(_ context.Context, id string, from []orders.PaymentStatus, to orders.PaymentStatus, at time.Time) (bool, error) {
	o, ok := t.st.orders[id]
	if !ok || !slices.Contains(from, o.PaymentStatus) {
		return false, nil
	}
	o.PaymentStatus = to
	o.UpdatedAt = at
	return true, nil
}

func (t *Tx) AppendHistory(_ context.Context, h orders.HistoryEntry) error {
	t.st.history = append(t.st.history, h)
	return nil
}

func (t *Tx) InsertIntent(_ context.Context, in *payments.Intent) error {
	if _, ok := t.st.intents[in.TransactionID]; ok {
		return payments.ErrDuplicateTransaction
	}
	if _, ok := t.st.orders[in.OrderID]; !ok {
		return orders.ErrOrderNotFound
	}
	t.st.intents[in.TransactionID] = in.Clone()
	return nil
}

func (t *Tx) IntentByTransactionID(_ context.Context, transactionID string) (*payments.Intent, error) {
	in, ok := t.st.intents[transactionID]
	if !ok {
		return nil, payments.ErrIntentNotFound
	}
	return in.Clone(), nil
}

func (t *Tx) FinalizeIntent(_ context.Context, in *payments.Intent) (bool, error) {
	cur, ok := t.st.intents[in.TransactionID]
	if !ok || cur.Status != payments.StatusPending {
		return false, nil
	}
	t.st.intents[in.TransactionID] = in.Clone()
	return true, nil
}
