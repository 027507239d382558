package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/logging"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
)

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Shortfall int    `json:"shortfall,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// writeError maps domain errors to HTTP statuses. Anything unrecognised is a
// 500 whose cause stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid     *orders.InvalidTransitionError
		shortfall   *inventory.InsufficientStockError
		unknown     *catalog.UnknownStockUnitError
		unavailable *catalog.ItemNotAvailableError
	)
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, errorBody{Error: "invalid_transition", Message: err.Error()})
	case errors.As(err, &shortfall):
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient_stock", Message: err.Error(), Shortfall: shortfall.Shortfall()})
	case errors.As(err, &unknown):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "unknown_stock_unit", Message: err.Error()})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "item_not_available", Message: err.Error()})
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, payments.ErrIntentNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.Is(err, payments.ErrOrderNotPayable):
		writeJSON(w, http.StatusConflict, errorBody{Error: "not_payable", Message: err.Error()})
	case errors.Is(err, orders.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, orders.ErrInvalidRequest), errors.Is(err, payments.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: err.Error()})
	case errors.Is(err, payments.ErrMissingGatewayConfig):
		logging.FromCtx(r.Context()).ErrorContext(r.Context(), "payment gateway not configured")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "gateway_unavailable", Message: err.Error()})
	default:
		logging.FromCtx(r.Context()).ErrorContext(r.Context(), "request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: orders.ErrTransitionFailed.Error()})
	}
}
