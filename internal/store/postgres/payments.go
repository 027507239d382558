package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func (t *Tx) InsertIntent(ctx context.Context, in *payments.Intent) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO payment_intents(id, transaction_id, order_id, amount, status, order_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		in.ID, in.TransactionID, in.OrderID, in.Amount.String(), string(in.Status), in.OrderInfo, in.CreatedAt, in.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return payments.ErrDuplicateTransaction
		case foreignKeyViolation:
			return orders.ErrOrderNotFound
		}
	}
	if err != nil {
		return fmt.Errorf("insert intent %s: %w", in.TransactionID, err)
	}
	return nil
}

func (t *Tx) IntentByTransactionID(ctx context.Context, transactionID string) (*payments.Intent, error) {
	var (
		in             payments.Intent
		amount, status string
	)
	err := t.q.QueryRow(ctx, `
		SELECT id, transaction_id, order_id, amount::text, status, order_info, bank_code, bank_transaction_no,
		       card_type, gateway_transaction_no, response_code, failure_reason, paid_at, raw_payload,
		       created_at, updated_at
		FROM payment_intents WHERE transaction_id = $1`, transactionID).Scan(
		&in.ID, &in.TransactionID, &in.OrderID, &amount, &status, &in.OrderInfo, &in.BankCode, &in.BankTransactionNo,
		&in.CardType, &in.GatewayTransactionNo, &in.ResponseCode, &in.FailureReason, &in.PaidAt, &in.RawPayload,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payments.ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", transactionID, err)
	}
	in.Status = payments.Status(status)
	if in.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("intent %s amount: %w", transactionID, err)
	}
	return &in, nil
}

// FinalizeIntent is the compare-and-set on status = 'PENDING'.
func (t *Tx) FinalizeIntent(ctx context.Context, in *payments.Intent) (bool, error) {
	ct, err := t.q.Exec(ctx, `
		UPDATE payment_intents
		SET status = $2, bank_code = $3, bank_transaction_no = $4, card_type = $5, gateway_transaction_no = $6,
		    response_code = $7, failure_reason = $8, paid_at = $9, raw_payload = $10, updated_at = $11
		WHERE transaction_id = $1 AND status = 'PENDING'`,
		in.TransactionID, string(in.Status), in.BankCode, in.BankTransactionNo, in.CardType, in.GatewayTransactionNo,
		in.ResponseCode, in.FailureReason, in.PaidAt, in.RawPayload, in.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("finalize intent %s: %w", in.TransactionID, err)
	}
	return ct.RowsAffected() == 1, nil
}
