package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// DB is the subset of *pgxpool.Pool (and pgx.Tx) used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists subscriptions, plan prices and payment records in PostgreSQL.
// It implements subscription.SubscriptionStore, subscription.PriceCatalog and
// subscription.PaymentRecorder.
type Store struct {
	db  DB
	log *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report rows that cannot be decoded.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Store on top of db. The schema must already be migrated,
// see Migrations.
func New(db DB, opts ...Option) *Store {
	if db == nil {
		panic("pgstore: db cannot be nil")
	}

	s := &Store{
		db:  db,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const subscriptionColumns = `id, customer_id, plan_id, status, trial_start, trial_end,
	current_period_start, current_period_end, cancel_at_period_end, quantity,
	payment_method_id, metadata, lifecycle, version, cancel_reason, canceled_at,
	created_at, updated_at`

// Create inserts a new subscription with version 1.
func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	sub.Version = 1

	metadata, lifecycle, err := encodeSubscription(sub)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sub.ID, sub.CustomerID, sub.PlanID, string(sub.Status), sub.TrialStart, sub.TrialEnd,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.Quantity,
		sub.PaymentMethodID, metadata, lifecycle, sub.Version, string(sub.CancelReason), sub.CanceledAt,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// List returns every non-deleted subscription ordered by creation time.
// Rows that cannot be decoded are logged and skipped so a single corrupt
// record does not block the whole run.
func (s *Store) List(ctx context.Context) ([]subscription.Subscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE deleted_at IS NULL
		 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			if errors.Is(err, subscription.ErrCorruptLifecycleState) || errors.Is(err, subscription.ErrCorruptRecord) {
				s.log.WarnContext(ctx, "skipping undecodable subscription",
					logger.Component("pgstore"),
					logger.Error(err),
				)
				continue
			}
			return nil, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// Get returns the subscription with the given ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// Update writes sub if its Version still matches the stored row and bumps Version.
func (s *Store) Update(ctx context.Context, sub *subscription.Subscription) error {
	metadata, lifecycle, err := encodeSubscription(sub)
	if err != nil {
		return err
	}

	var (
		version   int64
		updatedAt time.Time
	)
	err = s.db.QueryRow(ctx,
		`UPDATE subscriptions SET
			status = $3,
			trial_start = $4,
			trial_end = $5,
			current_period_start = $6,
			current_period_end = $7,
			cancel_at_period_end = $8,
			quantity = $9,
			payment_method_id = $10,
			metadata = $11,
			lifecycle = $12,
			cancel_reason = $13,
			canceled_at = $14,
			version = version + 1,
			updated_at = NOW()
		 WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		 RETURNING version, updated_at`,
		sub.ID, sub.Version, string(sub.Status), sub.TrialStart, sub.TrialEnd,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.Quantity,
		sub.PaymentMethodID, metadata, lifecycle, string(sub.CancelReason), sub.CanceledAt,
	).Scan(&version, &updatedAt)
	if err == nil {
		sub.Version = version
		sub.UpdatedAt = updatedAt
		return nil
	}
	if !pg.IsNotFoundError(err) {
		return fmt.Errorf("update subscription: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1 AND deleted_at IS NULL)`,
		sub.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}
	if !exists {
		return subscription.ErrSubscriptionNotFound
	}
	return subscription.ErrVersionConflict
}

// Cancel marks the subscription canceled and persists it with the same
// version check as Update.
func (s *Store) Cancel(ctx context.Context, sub *subscription.Subscription, reason subscription.CancelReason, at time.Time) error {
	canceledAt := at.UTC()
	sub.Status = subscription.StatusCanceled
	sub.CancelReason = reason
	sub.CanceledAt = &canceledAt
	return s.Update(ctx, sub)
}

func encodeSubscription(sub *subscription.Subscription) (metadata, lifecycle []byte, err error) {
	if sub.Metadata != nil {
		metadata, err = json.Marshal(sub.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	lifecycle, err = json.Marshal(sub.Lifecycle)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal lifecycle: %w", err)
	}
	return metadata, lifecycle, nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub          subscription.Subscription
		status       string
		cancelReason string
		metadata     []byte
		lifecycle    []byte
	)
	if err := row.Scan(
		&sub.ID, &sub.CustomerID, &sub.PlanID, &status, &sub.TrialStart, &sub.TrialEnd,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.Quantity,
		&sub.PaymentMethodID, &metadata, &lifecycle, &sub.Version, &cancelReason, &sub.CanceledAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, err
		}
		return nil, errors.Join(subscription.ErrCorruptRecord, fmt.Errorf("scan subscription: %w", err))
	}
	sub.Status = subscription.SubscriptionStatus(status)
	sub.CancelReason = subscription.CancelReason(cancelReason)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &sub.Metadata); err != nil {
			return nil, errors.Join(subscription.ErrCorruptRecord, fmt.Errorf("unmarshal metadata of %s: %w", sub.ID, err))
		}
	}
	state, err := decodeLifecycle(lifecycle)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	sub.Lifecycle = state
	return &sub, nil
}

// decodeLifecycle parses the stored lifecycle document. An empty document is
// the zero state of a never processed subscription.
func decodeLifecycle(raw []byte) (subscription.LifecycleState, error) {
	var state subscription.LifecycleState
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, errors.Join(subscription.ErrCorruptLifecycleState, err)
	}
	if err := state.Validate(); err != nil {
		return state, err
	}
	return state, nil
}
