// Package payments issues signed payment intents for the VNPay gateway and
// reconciles its asynchronous return callbacks exactly once.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Terminal() bool { return s != StatusPending }

var (
	ErrIntentNotFound       = errors.New("payment intent not found")
	ErrDuplicateTransaction = errors.New("transaction id already exists")
	ErrInvalidAmount        = errors.New("invalid payment amount")
	ErrMissingGatewayConfig = errors.New("payment gateway is not configured")
	ErrMalformedCallback    = errors.New("malformed gateway callback")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrAmountMismatch       = errors.New("amount mismatch")
	ErrOrderNotPayable      = errors.New("order is not payable online")
)

// Intent is one attempt to pay an order through the gateway. Gateway fields
// are written once, when the intent leaves PENDING; after that it is frozen.
type Intent struct {
	ID                   string
	TransactionID        string
	OrderID              string
	Amount               decimal.Decimal
	Status               Status
	OrderInfo            string
	BankCode             string
	BankTransactionNo    string
	CardType             string
	GatewayTransactionNo string
	ResponseCode         string
	FailureReason        string
	PaidAt               *time.Time
	RawPayload           []byte // audit only
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (i *Intent) Clone() *Intent {
	c := *i
	c.RawPayload = append([]byte(nil), i.RawPayload...)
	if i.PaidAt != nil {
		t := *i.PaidAt
		c.PaidAt = &t
	}
	return &c
}

// MinorUnits is the gateway's integer amount: amount x 100.
func (i *Intent) MinorUnits() int64 {
	return MinorUnits(i.Amount)
}

func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type Tx interface {
	orders.Tx

	// InsertIntent fails with ErrDuplicateTransaction on a transaction id collision.
	InsertIntent(ctx context.Context, in *Intent) error
	IntentByTransactionID(ctx context.Context, transactionID string) (*Intent, error)
	// FinalizeIntent writes the terminal state only while the stored intent is
	// still PENDING, and reports whether it did.
	FinalizeIntent(ctx context.Context, in *Intent) (bool, error)
}

type Store interface {
	RunPaymentTx(ctx context.Context, fn func(tx Tx) error) error
	IntentByTransactionID(ctx context.Context, transactionID string) (*Intent, error)
}

// Settler is the order lifecycle's payment hook, called inside the
// reconciliation transaction.
type Settler interface {
	MarkPaymentSettled(ctx context.Context, tx orders.Tx, orderID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, tx orders.Tx, orderID string) (bool, error)
}
