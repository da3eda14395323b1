package subscription

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory SubscriptionStore with per-record optimistic locking.
// Every read and write copies the record so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewMemoryStore returns a store seeded with the given subscriptions.
// Seeded records start at Version 1 unless they carry a version already.
func NewMemoryStore(subs ...Subscription) *MemoryStore {
	s := &MemoryStore{subs: make(map[uuid.UUID]Subscription, len(subs))}
	for _, sub := range subs {
		if sub.Version == 0 {
			sub.Version = 1
		}
		s.subs[sub.ID] = sub.Clone()
	}
	return s
}

// Add inserts or replaces a subscription without version checks.
func (s *MemoryStore) Add(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.Version == 0 {
		sub.Version = 1
	}
	s.subs[sub.ID] = sub.Clone()
}

// List returns all subscriptions ordered by creation time, then ID, for deterministic runs.
func (s *MemoryStore) List(_ context.Context) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub.Clone())
	}
	slices.SortFunc(out, func(a, b Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	c := sub.Clone()
	return &c, nil
}

// Update stores sub if its Version matches, then bumps Version on both copies.
func (s *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.subs[sub.ID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if current.Version != sub.Version {
		return ErrVersionConflict
	}

	sub.Version++
	sub.UpdatedAt = time.Now().UTC()
	s.subs[sub.ID] = sub.Clone()
	return nil
}

// Cancel marks the subscription canceled with the given reason.
func (s *MemoryStore) Cancel(ctx context.Context, sub *Subscription, reason CancelReason, at time.Time) error {
	sub.Status = StatusCanceled
	sub.CancelReason = reason
	sub.CanceledAt = timePtr(at)
	return s.Update(ctx, sub)
}

// MemoryCatalog is an in-memory PriceCatalog keyed by plan ID.
type MemoryCatalog struct {
	mu     sync.RWMutex
	prices map[string][]Price
}

// NewMemoryCatalog returns a catalog holding a copy of the given prices.
func NewMemoryCatalog(prices ...Price) *MemoryCatalog {
	c := &MemoryCatalog{prices: make(map[string][]Price)}
	for _, p := range prices {
		c.prices[p.PlanID] = append(c.prices[p.PlanID], p)
	}
	return c
}

// Prices returns a copy of the plan's prices; unknown plans have none.
func (c *MemoryCatalog) Prices(_ context.Context, planID string) ([]Price, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.prices[planID]), nil
}

// MemoryPayments is an in-memory PaymentRecorder, idempotent on IdempotencyKey.
type MemoryPayments struct {
	mu       sync.RWMutex
	payments []Payment
	byKey    map[string]int
}

func NewMemoryPayments() *MemoryPayments {
	return &MemoryPayments{byKey: make(map[string]int)}
}

func (m *MemoryPayments) Record(_ context.Context, in PaymentInput) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in.IdempotencyKey != "" {
		if i, ok := m.byKey[in.IdempotencyKey]; ok {
			p := m.payments[i]
			return &p, nil
		}
	}

	p := Payment{
		ID:                uuid.New(),
		SubscriptionID:    in.SubscriptionID,
		CustomerID:        in.CustomerID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		Status:            in.Status,
		FailureReason:     in.FailureReason,
		ProviderPaymentID: in.ProviderPaymentID,
		IdempotencyKey:    in.IdempotencyKey,
		AttemptedAt:       in.AttemptedAt,
		CreatedAt:         time.Now().UTC(),
	}
	m.payments = append(m.payments, p)
	if in.IdempotencyKey != "" {
		m.byKey[in.IdempotencyKey] = len(m.payments) - 1
	}
	return &p, nil
}

// Payments returns the recorded payments for a subscription in recording order.
func (m *MemoryPayments) Payments(subscriptionID uuid.UUID) []Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Payment
	for _, p := range m.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out
}
