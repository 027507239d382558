package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/inventory"
)

// Tx is the unit of work a create, a transition or a settlement runs in.
// Everything written through one Tx commits or rolls back together.
type Tx interface {
	inventory.Ledger

	// LockOrder loads the order with its lines and holds it for the rest of the transaction.
	LockOrder(ctx context.Context, id string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	// UpdateStatus is a compare-and-set on the current status.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)
	// UpdatePaymentStatus moves payment status to `to` when it is currently one of `from`.
	UpdatePaymentStatus(ctx context.Context, id string, from []PaymentStatus, to PaymentStatus, at time.Time) (bool, error)
	AppendHistory(ctx context.Context, h HistoryEntry) error
}

type Store interface {
	RunOrderTx(ctx context.Context, fn func(tx Tx) error) error
	Order(ctx context.Context, id string) (*Order, error)
}
