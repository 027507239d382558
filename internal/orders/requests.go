package orders

import (
	"fmt"
	"strings"
)

type LineRequest struct {
	StockUnitID string
	Quantity    int
}

func NewLineRequest(stockUnitID string, qty int) (LineRequest, error) {
	stockUnitID = strings.TrimSpace(stockUnitID)
	if stockUnitID == "" {
		return LineRequest{}, fmt.Errorf("%w: missing stock unit id", ErrInvalidRequest)
	}
	if qty <= 0 {
		return LineRequest{}, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidRequest, stockUnitID)
	}
	return LineRequest{StockUnitID: stockUnitID, Quantity: qty}, nil
}

type CreateRequest struct {
	CustomerID    string
	Lines         []LineRequest
	PaymentMethod PaymentMethod
	Shipping      Shipping
}

func (r CreateRequest) Validate() error {
	if len(r.Lines) == 0 {
		return fmt.Errorf("%w: order has no lines", ErrInvalidRequest)
	}
	for _, l := range r.Lines {
		if _, err := NewLineRequest(l.StockUnitID, l.Quantity); err != nil {
			return err
		}
	}
	if _, err := ParsePaymentMethod(string(r.PaymentMethod)); err != nil {
		return err
	}
	return nil
}
