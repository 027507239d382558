package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const stockUnitSQL = `
SELECT su.id, su.item_id, su.name, su.image, su.price::text, su.quantity,
       i.name, i.image, COALESCE(c.name, ''), i.price::text, i.released, i.quantity,
       d.percent::text, d.starts_at, d.ends_at
FROM stock_units su
JOIN items i ON i.id = su.item_id
LEFT JOIN categories c ON c.id = i.category_id
LEFT JOIN discounts d ON d.id = i.discount_id
WHERE su.id = $1`

// StockUnit implements catalog.Lookup.
func (s *Store) StockUnit(ctx context.Context, id string) (catalog.StockUnit, error) {
	var (
		u            catalog.StockUnit
		unitPrice    *string
		itemPrice    string
		discount     *string
		starts, ends *time.Time
	)
	err := s.db.QueryRow(ctx, stockUnitSQL, id).Scan(
		&u.ID, &u.ItemID, &u.Name, &u.Image, &unitPrice, &u.Quantity,
		&u.Item.Name, &u.Item.Image, &u.Item.Category, &itemPrice, &u.Item.Released, &u.Item.Quantity,
		&discount, &starts, &ends,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.StockUnit{}, &catalog.UnknownStockUnitError{StockUnitID: id}
	}
	if err != nil {
		return catalog.StockUnit{}, fmt.Errorf("lookup stock unit %s: %w", id, err)
	}
	u.Item.ID = u.ItemID
	if u.Item.Price, err = decimal.NewFromString(itemPrice); err != nil {
		return catalog.StockUnit{}, fmt.Errorf("item %s price: %w", u.ItemID, err)
	}
	if unitPrice != nil {
		p, err := decimal.NewFromString(*unitPrice)
		if err != nil {
			return catalog.StockUnit{}, fmt.Errorf("stock unit %s price: %w", id, err)
		}
		u.Price = &p
	}
	if discount != nil {
		pct, err := decimal.NewFromString(*discount)
		if err != nil {
			return catalog.StockUnit{}, fmt.Errorf("item %s discount: %w", u.ItemID, err)
		}
		u.Item.Discount = &catalog.Discount{Percent: pct, StartsAt: starts, EndsAt: ends}
	}
	return u, nil
}
