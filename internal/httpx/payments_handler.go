package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/logging"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
	"github.com/go-chi/chi/v5"
)

// Result codes sent to the storefront when a return request cannot be
// matched to a stored outcome. They follow the gateway's IPN conventions.
const (
	resultOrderNotFound    = "01"
	resultInvalidAmount    = "04"
	resultInvalidSignature = "97"
	resultUnknown          = "99"
)

type PaymentsHandler struct {
	Reconciler *payments.Reconciler
	Orders     *orders.Service
	Cache      SummaryCache // optional
	ResultURL  string       // storefront page the return request redirects to
}

type IssuePaymentReq struct {
	OrderID   string `json:"order_id"`
	Locale    string `json:"locale"`
	OrderInfo string `json:"order_info"`
}

type IssuePaymentResp struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
}

// Register mounts the issue route on authed and the gateway return route on public.
func (h *PaymentsHandler) Register(authed, public chi.Router) {
	authed.Post("/payments/vnpay", h.issue)
	public.Get("/payments/vnpay/return", h.gatewayReturn)
}

func (h *PaymentsHandler) issue(w http.ResponseWriter, r *http.Request) {
	var body IssuePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if body.OrderID == "" {
		badRequest(w, "missing order_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// ownership and amount; payability is checked under the order lock
	o, err := h.Orders.Order(ctx, body.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	issued, err := h.Reconciler.IssueIntent(ctx, payments.IssueRequest{
		OrderID:   o.ID,
		Amount:    o.TotalAmount,
		OrderInfo: body.OrderInfo,
		Locale:    body.Locale,
		ClientIP:  r.RemoteAddr,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IssuePaymentResp{
		TransactionID: issued.Intent.TransactionID,
		PaymentURL:    issued.PaymentURL,
	})
}

// gatewayReturn reconciles the callback and sends the customer to the
// storefront result page. Replays land on the same page with the stored outcome.
func (h *PaymentsHandler) gatewayReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	in, err := h.Reconciler.Reconcile(ctx, r.URL.Query())
	q := url.Values{}
	switch {
	case in != nil:
		cacheOr(h.Cache).Invalidate(ctx, in.OrderID)
		q.Set("orderId", in.OrderID)
		if in.Status == payments.StatusSuccess {
			q.Set("amount", in.Amount.String())
			q.Set("transactionNo", in.GatewayTransactionNo)
			break
		}
		code := in.ResponseCode
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			code = resultInvalidSignature
		case errors.Is(err, payments.ErrAmountMismatch):
			code = resultInvalidAmount
		}
		q.Set("code", code)
		q.Set("message", in.FailureReason)
	case errors.Is(err, payments.ErrIntentNotFound):
		q.Set("code", resultOrderNotFound)
		q.Set("message", err.Error())
	default:
		logging.FromCtx(ctx).WarnContext(ctx, "gateway return not reconciled", "err", err)
		q.Set("code", resultUnknown)
		q.Set("message", "payment could not be verified")
	}

	if h.ResultURL == "" {
		writeJSON(w, http.StatusOK, flatten(q))
		return
	}
	http.Redirect(w, r, h.ResultURL+"?"+q.Encode(), http.StatusFound)
}

func flatten(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k := range q {
		out[k] = q.Get(k)
	}
	return out
}
