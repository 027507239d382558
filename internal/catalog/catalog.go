// Package catalog holds the read-side view of the product catalog that the
// order core consumes. Catalog CRUD lives elsewhere; this package only
// describes what a stock unit looks like at lookup time.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Discount is an item's discount policy. Nil bounds are open.
type Discount struct {
	Percent  decimal.Decimal
	StartsAt *time.Time
	EndsAt   *time.Time
}

// ActiveAt reports whether the policy applies at t, with [StartsAt, EndsAt).
func (d *Discount) ActiveAt(t time.Time) bool {
	if d == nil || !d.Percent.IsPositive() {
		return false
	}
	if d.StartsAt != nil && t.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && !t.Before(*d.EndsAt) {
		return false
	}
	return true
}

type Item struct {
	ID       string
	Name     string
	Image    string
	Category string
	Price    decimal.Decimal
	Released bool
	Quantity int // sum of its stock units
	Discount *Discount
}

// StockUnit is a variant: the smallest inventory-tracked unit of an item.
type StockUnit struct {
	ID       string
	ItemID   string
	Name     string
	Image    string
	Price    *decimal.Decimal // overrides Item.Price when set
	Quantity int
	Item     Item
}

func (u StockUnit) UnitPrice() decimal.Decimal {
	if u.Price != nil {
		return *u.Price
	}
	return u.Item.Price
}

// DiscountPercent returns the active discount at t, or zero.
func (u StockUnit) DiscountPercent(t time.Time) decimal.Decimal {
	if u.Item.Discount.ActiveAt(t) {
		return u.Item.Discount.Percent
	}
	return decimal.Zero
}

func (u StockUnit) DisplayImage() string {
	if u.Image != "" {
		return u.Image
	}
	return u.Item.Image
}

// Lookup resolves a stock unit together with its parent item.
type Lookup interface {
	StockUnit(ctx context.Context, id string) (StockUnit, error)
}

type UnknownStockUnitError struct {
	StockUnitID string
}

func (e *UnknownStockUnitError) Error() string {
	return fmt.Sprintf("unknown stock unit %s", e.StockUnitID)
}

type ItemNotAvailableError struct {
	ItemID string
	Name   string
}

func (e *ItemNotAvailableError) Error() string {
	return fmt.Sprintf("item %s (%s) is not available", e.ItemID, e.Name)
}
