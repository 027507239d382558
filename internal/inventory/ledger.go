// Package inventory owns the stock counters of stock units and their parent
// items. The only primitive is a guarded adjustment: a conditional write that
// never lets a quantity drop below zero.
package inventory

import (
	"context"
	"fmt"
)

// Level is the state of a stock unit and its parent item after an adjustment.
type Level struct {
	StockUnitID  string
	ItemID       string
	Quantity     int
	ItemQuantity int
}

// Ledger applies quantity += delta to a stock unit and, in the same unit of
// work, to its parent item. A negative delta must be a single conditional
// update (quantity >= -delta); when the guard fails the implementation
// returns *InsufficientStockError and changes nothing.
type Ledger interface {
	Adjust(ctx context.Context, stockUnitID string, delta int) (Level, error)
}

type InsufficientStockError struct {
	ItemID      string
	StockUnitID string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s (stock unit %s): available %d, requested %d",
		e.ItemID, e.StockUnitID, e.Available, e.Requested)
}

// Shortfall is how many units are missing.
func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }
