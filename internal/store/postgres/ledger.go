package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/jackc/pgx/v5"
)

// The guard lives in the WHERE clause: a concurrent writer blocks on the row
// lock and re-evaluates it against the committed quantity.
const adjustUnitSQL = `
UPDATE stock_units SET quantity = quantity + $2, updated_at = now()
WHERE id = $1 AND quantity + $2 >= 0
RETURNING item_id, quantity`

const adjustItemSQL = `
UPDATE items SET quantity = quantity + $2, updated_at = now()
WHERE id = $1
RETURNING quantity`

func (t *Tx) Adjust(ctx context.Context, stockUnitID string, delta int) (inventory.Level, error) {
	lvl := inventory.Level{StockUnitID: stockUnitID}
	err := t.q.QueryRow(ctx, adjustUnitSQL, stockUnitID, delta).Scan(&lvl.ItemID, &lvl.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return lvl, t.rejectAdjust(ctx, stockUnitID, delta)
	}
	if err != nil {
		return lvl, fmt.Errorf("adjust stock unit %s: %w", stockUnitID, err)
	}
	if err := t.q.QueryRow(ctx, adjustItemSQL, lvl.ItemID, delta).Scan(&lvl.ItemQuantity); err != nil {
		return lvl, fmt.Errorf("adjust item %s: %w", lvl.ItemID, err)
	}
	return lvl, nil
}

// rejectAdjust explains why the guarded update matched no row.
func (t *Tx) rejectAdjust(ctx context.Context, stockUnitID string, delta int) error {
	var (
		itemID string
		qty    int
	)
	err := t.q.QueryRow(ctx, `SELECT item_id, quantity FROM stock_units WHERE id = $1`, stockUnitID).Scan(&itemID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return &catalog.UnknownStockUnitError{StockUnitID: stockUnitID}
	}
	if err != nil {
		return fmt.Errorf("read stock unit %s: %w", stockUnitID, err)
	}
	return &inventory.InsufficientStockError{ItemID: itemID, StockUnitID: stockUnitID, Available: qty, Requested: -delta}
}

func (t *Tx) RecordReceipt(ctx context.Context, receiptID string) (bool, error) {
	ct, err := t.q.Exec(ctx, `
		INSERT INTO goods_receipts(receipt_id) VALUES ($1)
		ON CONFLICT (receipt_id) DO NOTHING`, receiptID)
	if err != nil {
		return false, fmt.Errorf("record receipt %s: %w", receiptID, err)
	}
	return ct.RowsAffected() == 1, nil
}
