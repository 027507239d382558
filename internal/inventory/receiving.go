package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/metrics"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	EventGoodsReceived = "GoodsReceived"
	TopicGoodsReceived = "inventory.goods.received"
)

var (
	ErrEmptyReceipt   = errors.New("receipt has no lines")
	ErrInvalidReceipt = errors.New("invalid receipt")
)

type ReceiptLine struct {
	StockUnitID string `json:"stock_unit_id"`
	Quantity    int    `json:"quantity"`
}

// Receipt is a goods-receiving document; GoodsReceived events carry it as payload.
type Receipt struct {
	ID    string        `json:"receipt_id"`
	Lines []ReceiptLine `json:"lines"`
}

func (r Receipt) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing receipt id", ErrInvalidReceipt)
	}
	if len(r.Lines) == 0 {
		return ErrEmptyReceipt
	}
	for i, l := range r.Lines {
		if l.StockUnitID == "" || l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d needs a stock unit and a positive quantity", ErrInvalidReceipt, i)
		}
	}
	return nil
}

type Tx interface {
	Ledger
	// RecordReceipt returns false when the receipt id was already recorded.
	RecordReceipt(ctx context.Context, receiptID string) (bool, error)
}

type Store interface {
	RunInventoryTx(ctx context.Context, fn func(tx Tx) error) error
}

// Deduper is the fast-path duplicate filter for redelivered events.
type Deduper interface {
	Seen(ctx context.Context, scope, id string) (bool, error)
	Mark(ctx context.Context, scope, id string) error
}

type Receiving struct {
	Store Store
	Dedup Deduper // optional
	Log   *slog.Logger
}

var tracer = otel.Tracer("github.com/ariefcatur/go-retail-orders/internal/inventory")

// Receive applies every line of the receipt in order, inside one transaction.
// Either the whole receipt lands or none of it does. A receipt that was
// already applied returns (false, nil).
func (r *Receiving) Receive(ctx context.Context, rc Receipt) (bool, error) {
	if err := rc.Validate(); err != nil {
		return false, err
	}
	ctx, span := tracer.Start(ctx, "inventory.Receive")
	defer span.End()
	span.SetAttributes(attribute.String("receipt.id", rc.ID), attribute.Int("receipt.lines", len(rc.Lines)))

	applied := false
	err := r.Store.RunInventoryTx(ctx, func(tx Tx) error {
		fresh, err := tx.RecordReceipt(ctx, rc.ID)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
		for _, l := range rc.Lines {
			if _, err := tx.Adjust(ctx, l.StockUnitID, l.Quantity); err != nil {
				return fmt.Errorf("receipt %s line %s: %w", rc.ID, l.StockUnitID, err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if applied {
		for _, l := range rc.Lines {
			metrics.StockAdjusted(l.Quantity, true)
		}
	}
	return applied, nil
}

// HandleGoodsReceived is the consumer handler for TopicGoodsReceived.
func (r *Receiving) HandleGoodsReceived(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != EventGoodsReceived {
		return nil
	}

	if r.Dedup != nil {
		if seen, _ := r.Dedup.Seen(ctx, "inventory", env.EventID); seen {
			return nil
		}
	}

	rc, err := kafkax.UnwrapPayload[Receipt](env.Payload)
	if err != nil {
		return err
	}
	applied, err := r.Receive(ctx, rc)
	if errors.Is(err, ErrInvalidReceipt) || errors.Is(err, ErrEmptyReceipt) {
		r.logger().WarnContext(ctx, "dropping malformed receipt", "event_id", env.EventID, "err", err)
		return nil
	}
	if err != nil {
		return err
	}
	if r.Dedup != nil {
		_ = r.Dedup.Mark(ctx, "inventory", env.EventID)
	}
	r.logger().InfoContext(ctx, "goods receipt processed", "receipt_id", rc.ID, "applied", applied, "lines", len(rc.Lines))
	return nil
}

func (r *Receiving) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}
