package payments_test

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
	"github.com/ariefcatur/go-retail-orders/internal/store/memory"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "TESTSECRET0123456789"

var now = time.Date(2026, 10, 18, 3, 30, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *recorder) Publish(topic string, _, _ []byte, _ ...kafkago.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type fixture struct {
	store *memory.Store
	svc   *orders.Service
	rec   *payments.Reconciler
	pub   *recorder
	order orders.Summary
}

func gateway() payments.GatewayConfig {
	return payments.GatewayConfig{
		TmnCode:    "DEMO0001",
		HashSecret: secret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payments/vnpay/return",
		MinAmount:  decimal.NewFromInt(5000),
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	st.PutItem(catalog.Item{ID: "item-1", Name: "Rice cooker", Price: decimal.NewFromInt(300000), Released: true})
	require.NoError(t, st.PutStockUnit(catalog.StockUnit{ID: "su-1", ItemID: "item-1", Quantity: 10}))

	clock := func() time.Time { return now }
	pub := &recorder{}
	svc := orders.NewService(st, st, pub, orders.WithClock(clock))
	order, err := svc.Create(context.Background(), orders.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: orders.PaymentVNPay,
		Lines:         []orders.LineRequest{{StockUnitID: "su-1", Quantity: 1}},
	})
	require.NoError(t, err)

	rec := payments.NewReconciler(gateway(), st, svc, pub, payments.WithClock(clock))
	return &fixture{store: st, svc: svc, rec: rec, pub: pub, order: order}
}

func (f *fixture) issue(t *testing.T) *payments.Intent {
	t.Helper()
	issued, err := f.rec.IssueIntent(context.Background(), payments.IssueRequest{
		OrderID:  f.order.ID,
		Amount:   f.order.TotalAmount,
		ClientIP: "10.0.0.7:41000",
	})
	require.NoError(t, err)
	return issued.Intent
}

// callback builds a correctly signed gateway return for in.
func callback(in *payments.Intent, code, status string, minor int64) url.Values {
	params := map[string]string{
		payments.ParamTmnCode:           "DEMO0001",
		payments.ParamTxnRef:            in.TransactionID,
		payments.ParamAmount:            strconv.FormatInt(minor, 10),
		payments.ParamOrderInfo:         in.OrderInfo,
		payments.ParamResponseCode:      code,
		payments.ParamTransactionStatus: status,
		payments.ParamTransactionNo:     "14000001",
		payments.ParamBankCode:          "NCB",
		payments.ParamBankTranNo:        "VNP14000001",
		payments.ParamCardType:          "ATM",
		payments.ParamPayDate:           "20261018103500",
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set(payments.ParamSecureHashType, "HmacSHA512")
	q.Set(payments.ParamSecureHash, payments.Sign(secret, params))
	return q
}

func (f *fixture) paymentStatus(t *testing.T) orders.PaymentStatus {
	t.Helper()
	o, err := f.store.Order(context.Background(), f.order.ID)
	require.NoError(t, err)
	return o.PaymentStatus
}

func TestIssueIntent(t *testing.T) {
	f := setup(t)

	issued, err := f.rec.IssueIntent(context.Background(), payments.IssueRequest{
		OrderID:  f.order.ID,
		Amount:   f.order.TotalAmount,
		Locale:   "en",
		ClientIP: "[::1]:5000",
	})
	require.NoError(t, err)

	in := issued.Intent
	assert.Equal(t, payments.StatusPending, in.Status)
	assert.Regexp(t, `^20261018103000[0-9a-f]{8}$`, in.TransactionID)
	assert.Equal(t, "Payment for order "+f.order.ID, in.OrderInfo)

	stored, err := f.store.IntentByTransactionID(context.Background(), in.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusPending, stored.Status)

	u, err := url.Parse(issued.PaymentURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "30000000", q.Get(payments.ParamAmount))
	assert.Equal(t, "127.0.0.1", q.Get(payments.ParamIPAddr))
	assert.Equal(t, "en", q.Get(payments.ParamLocale))
	assert.Equal(t, in.TransactionID, q.Get(payments.ParamTxnRef))

	hash := q.Get(payments.ParamSecureHash)
	signed := map[string]string{}
	for k := range q {
		if k != payments.ParamSecureHash {
			signed[k] = q.Get(k)
		}
	}
	assert.True(t, payments.Verify(secret, signed, hash))
}

func TestIssueIntent_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.rec.IssueIntent(ctx, payments.IssueRequest{OrderID: f.order.ID, Amount: decimal.NewFromInt(4999)})
	assert.ErrorIs(t, err, payments.ErrInvalidAmount)
	_, err = f.rec.IssueIntent(ctx, payments.IssueRequest{OrderID: f.order.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, payments.ErrInvalidAmount)

	_, err = f.rec.IssueIntent(ctx, payments.IssueRequest{OrderID: "missing", Amount: decimal.NewFromInt(10000)})
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	cod, err := f.svc.Create(ctx, orders.CreateRequest{
		CustomerID: "cust-1",
		Lines:      []orders.LineRequest{{StockUnitID: "su-1", Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = f.rec.IssueIntent(ctx, payments.IssueRequest{OrderID: cod.ID, Amount: cod.TotalAmount})
	assert.ErrorIs(t, err, payments.ErrOrderNotPayable)

	_, err = f.svc.Transition(ctx, f.order.ID, orders.StatusCancelled)
	require.NoError(t, err)
	_, err = f.rec.IssueIntent(ctx, payments.IssueRequest{OrderID: f.order.ID, Amount: f.order.TotalAmount})
	assert.ErrorIs(t, err, payments.ErrOrderNotPayable)

	cfg := gateway()
	cfg.HashSecret = ""
	noSecret := payments.NewReconciler(cfg, f.store, f.svc, nil)
	_, err = noSecret.IssueIntent(ctx, payments.IssueRequest{OrderID: f.order.ID, Amount: f.order.TotalAmount})
	assert.ErrorIs(t, err, payments.ErrMissingGatewayConfig)
}

func TestReconcile_SuccessSettlesOnce(t *testing.T) {
	f := setup(t)
	in := f.issue(t)
	q := callback(in, "00", "00", 30000000)

	got, err := f.rec.Reconcile(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSuccess, got.Status)
	assert.Equal(t, "14000001", got.GatewayTransactionNo)
	assert.Equal(t, "NCB", got.BankCode)
	assert.Equal(t, "VNP14000001", got.BankTransactionNo)
	assert.Equal(t, "ATM", got.CardType)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(time.Date(2026, 10, 18, 3, 35, 0, 0, time.UTC)))
	assert.NotEmpty(t, got.RawPayload)
	assert.Equal(t, orders.PaymentCompleted, f.paymentStatus(t))
	assert.Equal(t, 1, f.pub.count(orders.TopicPaymentSettled))

	again, err := f.rec.Reconcile(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSuccess, again.Status)
	assert.Equal(t, got.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, 1, f.pub.count(orders.TopicPaymentSettled))

	// a conflicting late callback cannot rewrite a finished intent
	late, err := f.rec.Reconcile(context.Background(), callback(in, "24", "02", 30000000))
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSuccess, late.Status)
	assert.Equal(t, orders.PaymentCompleted, f.paymentStatus(t))
}

func TestReconcile_PaymentForCancelledOrderIsRecorded(t *testing.T) {
	f := setup(t)
	in := f.issue(t)
	_, err := f.svc.Transition(context.Background(), f.order.ID, orders.StatusCancelled)
	require.NoError(t, err)

	got, err := f.rec.Reconcile(context.Background(), callback(in, "00", "00", 30000000))
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSuccess, got.Status)
	assert.Equal(t, orders.PaymentCompleted, f.paymentStatus(t))
	assert.Equal(t, 1, f.pub.count(orders.TopicPaymentSettled))
}

func TestReconcile_ConcurrentDuplicatesSettleOnce(t *testing.T) {
	f := setup(t)
	in := f.issue(t)
	q := callback(in, "00", "00", 30000000)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*payments.Intent, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.rec.Reconcile(context.Background(), q)
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, payments.StatusSuccess, results[i].Status)
	}
	assert.Equal(t, 1, f.pub.count(orders.TopicPaymentSettled))
	assert.Equal(t, orders.PaymentCompleted, f.paymentStatus(t))
}

func TestReconcile_AmountMismatch(t *testing.T) {
	f := setup(t)
	in := f.issue(t)

	got, err := f.rec.Reconcile(context.Background(), callback(in, "00", "00", 100))
	require.ErrorIs(t, err, payments.ErrAmountMismatch)
	require.NotNil(t, got)
	assert.Equal(t, payments.StatusFailed, got.Status)
	assert.Equal(t, "amount mismatch", got.FailureReason)
	assert.Empty(t, got.ResponseCode)
	assert.Empty(t, got.GatewayTransactionNo)
	assert.Equal(t, orders.PaymentPending, f.paymentStatus(t), "integrity failures leave the order alone")
	assert.Zero(t, f.pub.count(orders.TopicPaymentSettled))

	_, err = f.rec.Reconcile(context.Background(), callback(in, "00", "00", 100))
	assert.ErrorIs(t, err, payments.ErrAmountMismatch)
}

func TestReconcile_InvalidSignature(t *testing.T) {
	f := setup(t)
	in := f.issue(t)

	q := callback(in, "00", "00", 30000000)
	q.Set(payments.ParamBankCode, "EVIL")
	got, err := f.rec.Reconcile(context.Background(), q)
	require.ErrorIs(t, err, payments.ErrInvalidSignature)
	assert.Equal(t, payments.StatusFailed, got.Status)
	assert.Equal(t, "invalid signature", got.FailureReason)
	assert.Empty(t, got.BankCode)
	assert.Empty(t, got.ResponseCode, "unverified gateway fields are not stored")
	assert.Equal(t, orders.PaymentPending, f.paymentStatus(t))

	// a replay of the forged callback is rejected the same way
	replay, err := f.rec.Reconcile(context.Background(), q)
	require.ErrorIs(t, err, payments.ErrInvalidSignature)
	assert.Equal(t, payments.StatusFailed, replay.Status)
	assert.Empty(t, replay.ResponseCode)

	// the intent is frozen; a genuine callback afterwards changes nothing
	again, err := f.rec.Reconcile(context.Background(), callback(in, "00", "00", 30000000))
	require.ErrorIs(t, err, payments.ErrInvalidSignature)
	assert.Equal(t, payments.StatusFailed, again.Status)
	assert.Equal(t, orders.PaymentPending, f.paymentStatus(t))
}

func TestReconcile_Declined(t *testing.T) {
	tests := []struct {
		code, status, reason string
	}{
		{"24", "02", "Customer cancelled the transaction"},
		{"51", "02", "Insufficient account balance"},
		{"42", "02", "failed, code=42"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := setup(t)
			in := f.issue(t)

			got, err := f.rec.Reconcile(context.Background(), callback(in, tt.code, tt.status, 30000000))
			require.NoError(t, err)
			assert.Equal(t, payments.StatusFailed, got.Status)
			assert.Equal(t, tt.reason, got.FailureReason)
			assert.Equal(t, tt.code, got.ResponseCode)
			assert.Equal(t, orders.PaymentFailed, f.paymentStatus(t))
			assert.Equal(t, 1, f.pub.count(orders.TopicPaymentFailed))
		})
	}
}

func TestReconcile_RetryAfterFailureSettles(t *testing.T) {
	f := setup(t)

	first := f.issue(t)
	_, err := f.rec.Reconcile(context.Background(), callback(first, "24", "02", 30000000))
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentFailed, f.paymentStatus(t))

	second := f.issue(t)
	require.NotEqual(t, first.TransactionID, second.TransactionID)
	got, err := f.rec.Reconcile(context.Background(), callback(second, "00", "00", 30000000))
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSuccess, got.Status)
	assert.Equal(t, orders.PaymentCompleted, f.paymentStatus(t))
}

func TestReconcile_UnknownAndMalformed(t *testing.T) {
	f := setup(t)
	ghost := &payments.Intent{TransactionID: "20261018103000deadbeef", OrderInfo: "x"}

	_, err := f.rec.Reconcile(context.Background(), callback(ghost, "00", "00", 30000000))
	assert.ErrorIs(t, err, payments.ErrIntentNotFound)

	_, err = f.rec.Reconcile(context.Background(), url.Values{payments.ParamTxnRef: {"abc"}})
	assert.ErrorIs(t, err, payments.ErrMalformedCallback)
}

func TestPaymentEventsCarryEnvelope(t *testing.T) {
	st := memory.New()
	st.PutItem(catalog.Item{ID: "item-1", Name: "Kettle", Price: decimal.NewFromInt(10000), Released: true})
	require.NoError(t, st.PutStockUnit(catalog.StockUnit{ID: "su-1", ItemID: "item-1", Quantity: 1}))
	svc := orders.NewService(st, st, nil)
	o, err := svc.Create(context.Background(), orders.CreateRequest{CustomerID: "c", PaymentMethod: orders.PaymentVNPay, Lines: []orders.LineRequest{{StockUnitID: "su-1", Quantity: 1}}})
	require.NoError(t, err)

	var mu sync.Mutex
	var envs []kafkax.Envelope
	pub := publishFunc(func(topic string, key, value []byte, _ ...kafkago.Header) {
		env, err := kafkax.UnmarshalEnvelope(value)
		require.NoError(t, err)
		assert.Equal(t, o.ID, string(key))
		mu.Lock()
		envs = append(envs, env)
		mu.Unlock()
	})
	rec := payments.NewReconciler(gateway(), st, svc, pub, payments.WithProducerName("payments-test"))
	issued, err := rec.IssueIntent(context.Background(), payments.IssueRequest{OrderID: o.ID, Amount: o.TotalAmount})
	require.NoError(t, err)
	_, err = rec.Reconcile(context.Background(), callback(issued.Intent, "00", "00", 1000000))
	require.NoError(t, err)

	require.Len(t, envs, 1)
	assert.Equal(t, orders.EventPaymentSettled, envs[0].EventType)
	assert.Equal(t, "payments-test", envs[0].Producer)
	payload, err := kafkax.UnwrapPayload[orders.PaymentPayload](envs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, issued.Intent.TransactionID, payload.TransactionID)
	assert.Equal(t, "14000001", payload.GatewayRef)
}

type publishFunc func(topic string, key, value []byte, headers ...kafkago.Header)

func (f publishFunc) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	f(topic, key, value, headers...)
}
