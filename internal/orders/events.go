package orders

import (
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentSettled     = "PaymentSettled"
	EventPaymentFailed      = "PaymentFailed"
)

// Publisher is satisfied by *kafka.Producer. Events go out after commit and never
// influence the outcome of the operation that produced them.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte, []byte, ...kafkago.Header) {}

type ItemQty struct {
	StockUnitID string `json:"stock_unit_id"`
	Qty         int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Items       []ItemQty       `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID string    `json:"order_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	ActorID string    `json:"actor_id,omitempty"`
	Items   []ItemQty `json:"items,omitempty"` // set when stock moved
}

type PaymentPayload struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	GatewayRef    string          `json:"gateway_ref,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}
