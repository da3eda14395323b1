package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const paymentColumns = `id, subscription_id, customer_id, amount, currency, status,
	failure_reason, provider_payment_id, COALESCE(idempotency_key, ''), attempted_at, created_at`

// Record inserts a payment attempt. A second call with the same idempotency
// key returns the row written by the first one.
func (s *Store) Record(ctx context.Context, in subscription.PaymentInput) (*subscription.Payment, error) {
	var key *string
	if in.IdempotencyKey != "" {
		key = &in.IdempotencyKey
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO payments (id, subscription_id, customer_id, amount, currency, status,
			failure_reason, provider_payment_id, idempotency_key, attempted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING `+paymentColumns,
		uuid.New(), in.SubscriptionID, in.CustomerID, in.Amount, in.Currency, string(in.Status),
		in.FailureReason, in.ProviderPaymentID, key, in.AttemptedAt.UTC(), time.Now().UTC(),
	)
	p, err := scanPayment(row)
	if err == nil {
		return p, nil
	}
	if !pg.IsNotFoundError(err) || key == nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	// The key already exists.
	p, err = scanPayment(s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`,
		in.IdempotencyKey,
	))
	if err != nil {
		return nil, fmt.Errorf("load existing payment: %w", err)
	}
	return p, nil
}

// Payments returns the payments recorded for a subscription in attempt order.
func (s *Store) Payments(ctx context.Context, subscriptionID uuid.UUID) ([]subscription.Payment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE subscription_id = $1
		 ORDER BY attempted_at, created_at`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []subscription.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*subscription.Payment, error) {
	var (
		p      subscription.Payment
		status string
	)
	if err := row.Scan(
		&p.ID, &p.SubscriptionID, &p.CustomerID, &p.Amount, &p.Currency, &status,
		&p.FailureReason, &p.ProviderPaymentID, &p.IdempotencyKey, &p.AttemptedAt, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = subscription.PaymentStatus(status)
	return &p, nil
}
