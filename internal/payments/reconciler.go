package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/metrics"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-retail-orders/internal/payments")

const (
	reasonInvalidSignature = "invalid signature"
	reasonAmountMismatch   = "amount mismatch"
	maxTxnIDAttempts       = 3
)

type IssueRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	OrderInfo string
	Locale    string
	ClientIP  string
	ReturnURL string // empty: gateway config default
}

type Issued struct {
	Intent     *Intent
	PaymentURL string
}

type Reconciler struct {
	cfg       GatewayConfig
	store     Store
	settler   Settler
	publisher orders.Publisher
	log       *slog.Logger
	producer  string
	now       func() time.Time
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option { return func(r *Reconciler) { r.now = now } }

func WithLogger(l *slog.Logger) Option { return func(r *Reconciler) { r.log = l } }

func WithProducerName(name string) Option { return func(r *Reconciler) { r.producer = name } }

func NewReconciler(cfg GatewayConfig, store Store, settler Settler, pub orders.Publisher, opts ...Option) *Reconciler {
	r := &Reconciler{
		cfg:       cfg,
		store:     store,
		settler:   settler,
		publisher: pub,
		log:       slog.Default(),
		producer:  "order-api",
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// IssueIntent persists a PENDING intent for the order and returns the signed
// gateway redirect URL.
func (r *Reconciler) IssueIntent(ctx context.Context, req IssueRequest) (*Issued, error) {
	ctx, span := tracer.Start(ctx, "payments.IssueIntent")
	defer span.End()

	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(r.cfg.MinAmount) {
		return nil, fmt.Errorf("%w: %s is below the minimum %s", ErrInvalidAmount, req.Amount, r.cfg.MinAmount)
	}
	if req.OrderInfo == "" {
		req.OrderInfo = "Payment for order " + req.OrderID
	}

	now := r.now()
	var in *Intent
	for attempt := 0; ; attempt++ {
		in = &Intent{
			ID:            uuid.NewString(),
			TransactionID: newTransactionID(now),
			OrderID:       req.OrderID,
			Amount:        req.Amount,
			Status:        StatusPending,
			OrderInfo:     req.OrderInfo,
			CreatedAt:     now.UTC(),
			UpdatedAt:     now.UTC(),
		}
		err := r.store.RunPaymentTx(ctx, func(tx Tx) error {
			o, err := tx.LockOrder(ctx, req.OrderID)
			if err != nil {
				return err
			}
			if err := payable(o); err != nil {
				return err
			}
			return tx.InsertIntent(ctx, in)
		})
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateTransaction) && attempt+1 < maxTxnIDAttempts {
			continue
		}
		span.RecordError(err)
		return nil, err
	}

	u, err := r.cfg.PaymentURL(PaymentRequest{
		TransactionID: in.TransactionID,
		Amount:        in.Amount,
		OrderInfo:     in.OrderInfo,
		Locale:        req.Locale,
		ReturnURL:     req.ReturnURL,
		ClientIP:      req.ClientIP,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.transaction_id", in.TransactionID), attribute.String("order.id", in.OrderID))
	r.log.InfoContext(ctx, "payment intent issued", "order_id", in.OrderID, "transaction_id", in.TransactionID, "amount", in.Amount.String())
	return &Issued{Intent: in, PaymentURL: u}, nil
}

// Reconcile applies a gateway callback to its intent exactly once. A callback
// for an intent that already left PENDING returns the stored record
// unchanged, with the integrity error it was rejected with, if any. Integrity
// failures (signature, amount) mark the intent FAILED and return it together
// with ErrInvalidSignature or ErrAmountMismatch.
func (r *Reconciler) Reconcile(ctx context.Context, q url.Values) (*Intent, error) {
	ctx, span := tracer.Start(ctx, "payments.Reconcile")
	defer span.End()

	cb, err := ParseCallback(q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.transaction_id", cb.TxnRef))

	stored, err := r.store.IntentByTransactionID(ctx, cb.TxnRef)
	if err != nil {
		return nil, err
	}
	if stored.Status.Terminal() {
		metrics.Reconciled("duplicate")
		return stored, rejection(stored)
	}

	next, integrityErr := r.evaluate(stored, cb)

	var (
		result        *Intent
		duplicate     bool
		paidCancelled bool
	)
	err = r.store.RunPaymentTx(ctx, func(tx Tx) error {
		won, err := tx.FinalizeIntent(ctx, next)
		if err != nil {
			return err
		}
		if !won {
			duplicate = true
			result, err = tx.IntentByTransactionID(ctx, cb.TxnRef)
			return err
		}
		switch {
		case next.Status == StatusSuccess:
			// money was captured; the settlement is recorded even on a cancelled order
			o, err := tx.LockOrder(ctx, next.OrderID)
			if err != nil {
				return err
			}
			paidCancelled = o.Status == orders.StatusCancelled
			if _, err := r.settler.MarkPaymentSettled(ctx, tx, next.OrderID); err != nil {
				return err
			}
		case integrityErr == nil:
			if _, err := r.settler.MarkPaymentFailed(ctx, tx, next.OrderID); err != nil {
				return err
			}
		}
		result = next
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reconcile %s: %w", cb.TxnRef, err)
	}
	if duplicate {
		metrics.Reconciled("duplicate")
		return result, rejection(result)
	}

	r.record(ctx, result, integrityErr)
	if paidCancelled {
		metrics.Reconciled("refund_required")
		r.log.WarnContext(ctx, "payment settled on a cancelled order; refund required",
			"order_id", result.OrderID, "transaction_id", result.TransactionID, "gateway_txn", result.GatewayTransactionNo)
	}
	if integrityErr != nil {
		return result, integrityErr
	}
	return result, nil
}

// payable rejects orders that cannot take an online payment.
func payable(o *orders.Order) error {
	if o.PaymentMethod != orders.PaymentVNPay || o.PaymentStatus == orders.PaymentCompleted || o.Status == orders.StatusCancelled {
		return fmt.Errorf("%w: method %s, payment %s, status %s",
			ErrOrderNotPayable, o.PaymentMethod, o.PaymentStatus, o.Status)
	}
	return nil
}

// rejection replays the integrity error a finished intent was rejected with,
// so repeated deliveries of a forged callback fail the same way.
func rejection(in *Intent) error {
	if in.Status != StatusFailed {
		return nil
	}
	switch in.FailureReason {
	case reasonInvalidSignature:
		return ErrInvalidSignature
	case reasonAmountMismatch:
		return ErrAmountMismatch
	}
	return nil
}

// evaluate decides the terminal state for a pending intent.
func (r *Reconciler) evaluate(stored *Intent, cb Callback) (*Intent, error) {
	next := stored.Clone()
	next.UpdatedAt = r.now().UTC()
	next.RawPayload = cb.RawJSON()
	next.Status = StatusFailed

	if !Verify(r.cfg.HashSecret, cb.SignedParams(), cb.SecureHash) {
		next.FailureReason = reasonInvalidSignature
		return next, ErrInvalidSignature
	}
	if cb.Amount != stored.MinorUnits() {
		next.FailureReason = reasonAmountMismatch
		return next, ErrAmountMismatch
	}

	next.ResponseCode = cb.ResponseCode
	next.BankCode = cb.BankCode
	next.BankTransactionNo = cb.BankTranNo
	next.CardType = cb.CardType
	next.GatewayTransactionNo = cb.TransactionNo
	next.PaidAt = cb.PayDate
	if cb.Approved() {
		next.Status = StatusSuccess
		return next, nil
	}
	next.FailureReason = ResponseMessage(cb.FailureCode())
	return next, nil
}

func (r *Reconciler) record(ctx context.Context, in *Intent, integrityErr error) {
	payload := orders.PaymentPayload{
		OrderID:       in.OrderID,
		TransactionID: in.TransactionID,
		Amount:        in.Amount,
		GatewayRef:    in.GatewayTransactionNo,
		Reason:        in.FailureReason,
	}
	switch {
	case in.Status == StatusSuccess:
		metrics.Reconciled("success")
		r.publish(orders.TopicPaymentSettled, orders.EventPaymentSettled, in.OrderID, payload)
		r.log.InfoContext(ctx, "payment settled", "order_id", in.OrderID, "transaction_id", in.TransactionID, "gateway_txn", in.GatewayTransactionNo)
	case errors.Is(integrityErr, ErrInvalidSignature):
		metrics.Reconciled("invalid_signature")
		r.log.WarnContext(ctx, "payment callback rejected", "transaction_id", in.TransactionID, "reason", in.FailureReason)
	case errors.Is(integrityErr, ErrAmountMismatch):
		metrics.Reconciled("amount_mismatch")
		r.log.WarnContext(ctx, "payment callback rejected", "transaction_id", in.TransactionID, "reason", in.FailureReason)
	default:
		metrics.Reconciled("failed")
		r.publish(orders.TopicPaymentFailed, orders.EventPaymentFailed, in.OrderID, payload)
		r.log.InfoContext(ctx, "payment failed", "order_id", in.OrderID, "transaction_id", in.TransactionID, "code", in.ResponseCode)
	}
}

func (r *Reconciler) publish(topic, eventType, orderID string, payload any) {
	if r.publisher == nil {
		return
	}
	env := kafkax.NewEnvelope(eventType, r.producer, orderID, payload)
	r.publisher.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(env), env.Headers()...)
}

// newTransactionID is the gateway-zone timestamp followed by 8 random hex chars.
func newTransactionID(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return now.In(GatewayZone).Format(TimeLayout) + hex.EncodeToString(b[:])
}
