package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	Service *orders.Service
	Cache   SummaryCache // optional
}

type createLineReq struct {
	StockUnitID string `json:"stock_unit_id"`
	Quantity    int    `json:"quantity"`
}

type CreateOrderReq struct {
	CustomerID    string          `json:"customer_id"`
	PaymentMethod string          `json:"payment_method"`
	Shipping      orders.Shipping `json:"shipping"`
	Lines         []createLineReq `json:"lines"`
}

type TransitionReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/transitions", h.transition)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	req := orders.CreateRequest{
		CustomerID:    body.CustomerID,
		PaymentMethod: orders.PaymentMethod(body.PaymentMethod),
		Shipping:      body.Shipping,
	}
	for _, l := range body.Lines {
		lr, err := orders.NewLineRequest(l.StockUnitID, l.Quantity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Lines = append(req.Lines, lr)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sum, err := h.Service.Create(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cacheOr(h.Cache).Set(ctx, sum)
	writeJSON(w, http.StatusCreated, sum)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first; ownership is still enforced on cached summaries
	if sum, ok := cacheOr(h.Cache).Get(ctx, id); ok {
		if a, has := auth.ActorFrom(ctx); !has || a.IsStaff() || a.ID == sum.CustomerID {
			writeJSON(w, http.StatusOK, sum)
			return
		}
	}

	sum, err := h.Service.Summary(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cacheOr(h.Cache).Set(ctx, sum)
	writeJSON(w, http.StatusOK, sum)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	to, err := orders.ParseStatus(body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// invalidate only: a payment settled concurrently would make this summary stale
	sum, err := h.Service.Transition(ctx, id, to)
	cacheOr(h.Cache).Invalidate(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
