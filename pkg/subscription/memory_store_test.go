package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("update enforces versions", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(testNow)
		store := subscription.NewMemoryStore(sub)

		first, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		stale, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)

		first.Quantity = 5
		require.NoError(t, store.Update(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		stale.Quantity = 9
		assert.ErrorIs(t, store.Update(ctx, stale), subscription.ErrVersionConflict)

		got, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Quantity)
	})

	t.Run("reads are isolated copies", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(testNow)
		sub.Metadata = map[string]any{"k": "v"}
		store := subscription.NewMemoryStore(sub)

		got, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		got.Metadata["k"] = "changed"

		again, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "v", again.Metadata["k"])
	})

	t.Run("cancel records reason and time", func(t *testing.T) {
		t.Parallel()
		sub := activeSub(testNow)
		store := subscription.NewMemoryStore(sub)

		current, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		require.NoError(t, store.Cancel(ctx, current, subscription.CancelReasonScheduled, testNow))

		got, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)
		assert.Equal(t, subscription.CancelReasonScheduled, got.CancelReason)
		assert.True(t, got.CanceledAt.Equal(testNow))
	})

	t.Run("unknown subscription", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()

		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

		sub := activeSub(testNow)
		assert.ErrorIs(t, store.Update(ctx, &sub), subscription.ErrSubscriptionNotFound)
	})

	t.Run("list is ordered by creation", func(t *testing.T) {
		t.Parallel()
		older := activeSub(testNow)
		newer := activeSub(testNow.Add(5 * day))
		store := subscription.NewMemoryStore(newer, older)

		subs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, older.ID, subs[0].ID)
		assert.Equal(t, newer.ID, subs[1].ID)
	})
}

func TestMemoryPayments_Idempotent(t *testing.T) {
	t.Parallel()

	payments := subscription.NewMemoryPayments()
	in := subscription.PaymentInput{
		SubscriptionID: uuid.New(),
		Amount:         2900,
		Currency:       "USD",
		Status:         subscription.PaymentStatusFailed,
		IdempotencyKey: "key-1",
		AttemptedAt:    testNow,
	}

	first, err := payments.Record(context.Background(), in)
	require.NoError(t, err)
	second, err := payments.Record(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, payments.Payments(in.SubscriptionID), 1)
}
