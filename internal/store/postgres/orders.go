package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_id, total_amount::text, status, payment_method, payment_status,
       shipping_name, shipping_phone, shipping_address, shipping_note, created_at, updated_at`

func (t *Tx) LockOrder(ctx context.Context, id string) (*orders.Order, error) {
	return t.loadOrder(ctx, id, true)
}

func (t *Tx) loadOrder(ctx context.Context, id string, lock bool) (*orders.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	var (
		o                             orders.Order
		total, status, method, paying string
	)
	err := t.q.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.CustomerID, &total, &status, &method, &paying,
		&o.Shipping.Name, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.Note,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	o.Status = orders.Status(status)
	o.PaymentMethod = orders.PaymentMethod(method)
	o.PaymentStatus = orders.PaymentStatus(paying)
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", id, err)
	}
	if o.Lines, err = t.loadLines(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *Tx) loadLines(ctx context.Context, orderID string) ([]orders.Line, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, item_id, stock_unit_id, quantity, unit_price::text, discount_percent::text, item_total::text, snapshot
		FROM order_lines WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load lines of %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []orders.Line
	for rows.Next() {
		var (
			l                      orders.Line
			price, discount, total string
			snapshot               []byte
		)
		if err := rows.Scan(&l.ID, &l.ItemID, &l.StockUnitID, &l.Quantity, &price, &discount, &total, &snapshot); err != nil {
			return nil, err
		}
		l.OrderID = orderID
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if l.DiscountPercent, err = decimal.NewFromString(discount); err != nil {
			return nil, err
		}
		if l.ItemTotal, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snapshot, &l.Snapshot); err != nil {
			return nil, fmt.Errorf("line %s snapshot: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *Tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, customer_id, total_amount, status, payment_method, payment_status,
		                   shipping_name, shipping_phone, shipping_address, shipping_note, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.CustomerID, o.TotalAmount.String(), string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		o.Shipping.Name, o.Shipping.Phone, o.Shipping.Address, o.Shipping.Note, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	for i, l := range o.Lines {
		snapshot, err := json.Marshal(l.Snapshot)
		if err != nil {
			return err
		}
		if _, err := t.q.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, position, item_id, stock_unit_id, quantity,
			                        unit_price, discount_percent, item_total, snapshot)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10)`,
			l.ID, o.ID, i, l.ItemID, l.StockUnitID, l.Quantity,
			l.UnitPrice.String(), l.DiscountPercent.String(), l.ItemTotal.String(), snapshot,
		); err != nil {
			return fmt.Errorf("insert line %d of %s: %w", i, o.ID, err)
		}
	}
	return nil
}

func (t *Tx) UpdateStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) (bool, error) {
	ct, err := t.q.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at,
	)
	if err != nil {
		return false, fmt.Errorf("update status of %s: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

func (t *Tx) UpdatePaymentStatus(ctx context.Context, id string, from []orders.PaymentStatus, to orders.PaymentStatus, at time.Time) (bool, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	ct, err := t.q.Exec(ctx, `
		UPDATE orders SET payment_status = $3, updated_at = $4
		WHERE id = $1 AND payment_status = ANY($2)`,
		id, allowed, string(to), at,
	)
	if err != nil {
		return false, fmt.Errorf("update payment status of %s: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

func (t *Tx) AppendHistory(ctx context.Context, h orders.HistoryEntry) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO order_status_history(order_id, from_status, to_status, actor_id, at)
		VALUES ($1, $2, $3, $4, $5)`,
		h.OrderID, string(h.From), string(h.To), h.ActorID, h.At,
	)
	if err != nil {
		return fmt.Errorf("append history of %s: %w", h.OrderID, err)
	}
	return nil
}
