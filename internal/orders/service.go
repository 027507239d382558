package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-retail-orders/internal/orders")

// Service is the order lifecycle: creation, the status state machine and the
// payment-settlement hook.
type Service struct {
	store     Store
	catalog   catalog.Lookup
	publisher Publisher
	log       *slog.Logger
	producer  string
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithProducerName(name string) Option { return func(s *Service) { s.producer = name } }

func NewService(store Store, lookup catalog.Lookup, pub Publisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		catalog:   lookup,
		publisher: pub,
		log:       slog.Default(),
		producer:  "order-api",
		now:       time.Now,
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create snapshots prices and descriptions into a NEW order. Stock is not
// touched; reservation happens on confirmation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Summary, error) {
	ctx, span := tracer.Start(ctx, "orders.Create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return Summary{}, err
	}
	owner, err := resolveOwner(ctx, req.CustomerID)
	if err != nil {
		return Summary{}, err
	}
	method, _ := ParsePaymentMethod(string(req.PaymentMethod))

	units := make([]catalog.StockUnit, len(req.Lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range req.Lines {
		g.Go(func() error {
			u, err := s.catalog.StockUnit(gctx, l.StockUnitID)
			if err != nil {
				return err
			}
			if !u.Item.Released {
				return &catalog.ItemNotAvailableError{ItemID: u.ItemID, Name: u.Item.Name}
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Summary{}, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		CustomerID:    owner,
		Status:        StatusNew,
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
		Shipping:      req.Shipping,
		TotalAmount:   decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, l := range req.Lines {
		u := units[i]
		price := u.UnitPrice()
		discount := u.DiscountPercent(now)
		line := Line{
			ID:              uuid.NewString(),
			OrderID:         o.ID,
			ItemID:          u.ItemID,
			StockUnitID:     u.ID,
			Quantity:        l.Quantity,
			UnitPrice:       price,
			DiscountPercent: discount,
			ItemTotal:       LineTotal(price, l.Quantity, discount),
			Snapshot: Snapshot{
				Name:        u.Item.Name,
				VariantName: u.Name,
				Image:       u.DisplayImage(),
				Category:    u.Item.Category,
			},
		}
		o.TotalAmount = o.TotalAmount.Add(line.ItemTotal)
		o.Lines = append(o.Lines, line)
	}

	if err := s.store.RunOrderTx(ctx, func(tx Tx) error {
		return tx.InsertOrder(ctx, o)
	}); err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.Int("order.lines", len(o.Lines)))

	s.publish(TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Items:       itemQtys(o.Lines),
		TotalAmount: o.TotalAmount,
	})
	s.log.InfoContext(ctx, "order created", "order_id", o.ID, "total", o.TotalAmount.String(), "lines", len(o.Lines))
	return o.Summary(), nil
}

// Transition moves an order along the state machine. Stock is reserved on
// NEW -> PROCESSING and released on PROCESSING -> CANCELLED; every stock write
// and the status write commit together or not at all.
func (s *Service) Transition(ctx context.Context, orderID string, to Status) (Summary, error) {
	ctx, span := tracer.Start(ctx, "orders.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.to", string(to)))

	actor, hasActor := auth.ActorFrom(ctx)
	var (
		from    Status
		updated *Order
		moved   bool
	)
	err := s.store.RunOrderTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if hasActor && !actor.IsStaff() && (o.CustomerID != actor.ID || to != StatusCancelled) {
			return ErrForbidden
		}
		from = o.Status
		if !CanTransition(from, to) {
			return &InvalidTransitionError{From: from, To: to}
		}

		switch {
		case from == StatusNew && to == StatusProcessing:
			if err := reserve(ctx, tx, o.Lines); err != nil {
				return err
			}
			moved = true
		case from == StatusProcessing && to == StatusCancelled:
			if err := release(ctx, tx, o.Lines); err != nil {
				return err
			}
			moved = true
		}

		now := s.now().UTC()
		ok, err := tx.UpdateStatus(ctx, o.ID, from, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return errConcurrentUpdate
		}
		if err := tx.AppendHistory(ctx, HistoryEntry{OrderID: o.ID, From: from, To: to, ActorID: actor.ID, At: now}); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = now
		updated = o
		return nil
	})
	if err != nil {
		err = classify(err)
		metrics.Transition(string(from), string(to), "rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.WarnContext(ctx, "order transition rejected", "order_id", orderID, "from", from, "to", to, "err", err)
		return Summary{}, err
	}

	metrics.Transition(string(from), string(to), "ok")
	payload := OrderStatusChangedPayload{OrderID: orderID, From: from, To: to, ActorID: actor.ID}
	if moved {
		payload.Items = itemQtys(updated.Lines)
	}
	s.publish(TopicOrderStatusChanged, EventOrderStatusChanged, orderID, payload)
	s.log.InfoContext(ctx, "order transitioned", "order_id", orderID, "from", from, "to", to, "stock_moved", moved)
	return updated.Summary(), nil
}

// reserve decrements every line's stock unit. The first shortfall aborts the
// whole transition; the caller's transaction discards earlier decrements.
func reserve(ctx context.Context, tx Tx, lines []Line) error {
	for _, l := range lockOrder(lines) {
		if _, err := tx.Adjust(ctx, l.StockUnitID, -l.Quantity); err != nil {
			metrics.StockAdjusted(-l.Quantity, false)
			return err
		}
		metrics.StockAdjusted(-l.Quantity, true)
	}
	return nil
}

func release(ctx context.Context, tx Tx, lines []Line) error {
	for _, l := range lockOrder(lines) {
		if _, err := tx.Adjust(ctx, l.StockUnitID, l.Quantity); err != nil {
			return err
		}
		metrics.StockAdjusted(l.Quantity, true)
	}
	return nil
}

// lockOrder sorts lines by (item, stock unit) so concurrent transitions take
// row locks in the same order.
func lockOrder(lines []Line) []Line {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b Line) int {
		if c := strings.Compare(a.ItemID, b.ItemID); c != 0 {
			return c
		}
		return strings.Compare(a.StockUnitID, b.StockUnitID)
	})
	return out
}

// classify keeps validation errors as they are and folds everything else into ErrTransitionFailed.
func classify(err error) error {
	var (
		invalid   *InvalidTransitionError
		shortfall *inventory.InsufficientStockError
		unknown   *catalog.UnknownStockUnitError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &shortfall), errors.As(err, &unknown),
		errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrForbidden):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransitionFailed, err)
	}
}

// Order returns the order aggregate.
func (s *Service) Order(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	if a, ok := auth.ActorFrom(ctx); ok && !a.IsStaff() && a.ID != o.CustomerID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) Summary(ctx context.Context, id string) (Summary, error) {
	o, err := s.Order(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return o.Summary(), nil
}

// MarkPaymentSettled flips the order's payment status to COMPLETED inside the
// caller's transaction. It reports false when the order was already settled.
func (s *Service) MarkPaymentSettled(ctx context.Context, tx Tx, orderID string) (bool, error) {
	ok, err := tx.UpdatePaymentStatus(ctx, orderID,
		[]PaymentStatus{PaymentPending, PaymentFailed}, PaymentCompleted, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("settle payment for order %s: %w", orderID, err)
	}
	return ok, nil
}

// MarkPaymentFailed flips a still-pending payment status to FAILED.
func (s *Service) MarkPaymentFailed(ctx context.Context, tx Tx, orderID string) (bool, error) {
	ok, err := tx.UpdatePaymentStatus(ctx, orderID,
		[]PaymentStatus{PaymentPending}, PaymentFailed, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("fail payment for order %s: %w", orderID, err)
	}
	return ok, nil
}

func resolveOwner(ctx context.Context, requested string) (string, error) {
	a, ok := auth.ActorFrom(ctx)
	switch {
	case !ok || a.IsStaff():
		if requested == "" {
			return "", fmt.Errorf("%w: missing customer id", ErrInvalidRequest)
		}
		return requested, nil
	case requested == "" || requested == a.ID:
		return a.ID, nil
	default:
		return "", ErrForbidden
	}
}

func (s *Service) publish(topic, eventType, orderID string, payload any) {
	env := kafkax.NewEnvelope(eventType, s.producer, orderID, payload)
	s.publisher.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(env), env.Headers()...)
}

func itemQtys(lines []Line) []ItemQty {
	out := make([]ItemQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, ItemQty{StockUnitID: l.StockUnitID, Qty: l.Quantity})
	}
	return out
}
