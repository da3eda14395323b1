package subscription_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, subscription.PaymentInput) (*subscription.Payment, error) {
	return nil, errors.New("db down")
}

func TestPaymentOrchestrator_Attempt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("successful charge is recorded and reported", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		payments := subscription.NewMemoryPayments()
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway, payments)

		sub := activeSub(testNow)
		sub.Quantity = 3

		gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req subscription.ChargeRequest) bool {
			return req.Amount == 8700 &&
				req.Currency == "USD" &&
				req.CustomerID == "cus_456" &&
				req.PaymentMethodID == "pm_card" &&
				req.IdempotencyKey != ""
		})).Return(&subscription.ChargeResult{Succeeded: true, ProviderPaymentID: "pi_1"}, nil).Once()

		attempt, err := o.Attempt(ctx, &sub, testNow)
		require.NoError(t, err)

		assert.True(t, attempt.Succeeded)
		assert.Equal(t, int64(8700), attempt.Amount)
		assert.Equal(t, "USD", attempt.Currency)
		assert.Equal(t, subscription.EventPaymentSucceeded, attempt.Event.Type)
		assert.Equal(t, "pi_1", attempt.Event.Data[subscription.DataProviderPaymentID])

		recorded := payments.Payments(sub.ID)
		require.Len(t, recorded, 1)
		assert.Equal(t, subscription.PaymentStatusSucceeded, recorded[0].Status)
		assert.Equal(t, attempt.Payment.ID, recorded[0].ID)
		gateway.AssertExpectations(t)
	})

	t.Run("declined charge is a recorded failure", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		payments := subscription.NewMemoryPayments()
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway, payments)
		sub := activeSub(testNow)

		gateway.On("Charge", mock.Anything, mock.Anything).
			Return(&subscription.ChargeResult{ProviderPaymentID: "pi_2"}, nil).Once()

		attempt, err := o.Attempt(ctx, &sub, testNow)
		require.NoError(t, err)

		assert.False(t, attempt.Succeeded)
		assert.Equal(t, subscription.EventPaymentFailed, attempt.Event.Type)
		assert.Equal(t, subscription.FailureDeclined, attempt.Event.Data[subscription.DataFailureReason])

		recorded := payments.Payments(sub.ID)
		require.Len(t, recorded, 1)
		assert.Equal(t, subscription.PaymentStatusFailed, recorded[0].Status)
		assert.Equal(t, subscription.FailureDeclined, recorded[0].FailureReason)
	})

	t.Run("no payment method fails without calling the gateway", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		payments := subscription.NewMemoryPayments()
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway, payments)
		sub := activeSub(testNow)
		sub.PaymentMethodID = ""

		attempt, err := o.Attempt(ctx, &sub, testNow)
		require.NoError(t, err)

		assert.False(t, attempt.Succeeded)
		assert.Equal(t, subscription.FailureNoPaymentMethod, attempt.Payment.FailureReason)
		gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("falls back to the saved default payment method", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		lookup := &mockMethodLookup{}
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway,
			subscription.NewMemoryPayments(), subscription.WithPaymentMethodLookup(lookup))
		sub := activeSub(testNow)
		sub.PaymentMethodID = ""

		lookup.On("DefaultPaymentMethod", mock.Anything, "cus_456").Return("pm_saved", nil).Once()
		gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req subscription.ChargeRequest) bool {
			return req.PaymentMethodID == "pm_saved"
		})).Return(&subscription.ChargeResult{Succeeded: true}, nil).Once()

		attempt, err := o.Attempt(ctx, &sub, testNow)
		require.NoError(t, err)
		assert.True(t, attempt.Succeeded)
		lookup.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("plan without price is a configuration error", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		payments := subscription.NewMemoryPayments()
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(), gateway, payments)
		sub := activeSub(testNow)

		attempt, err := o.Attempt(ctx, &sub, testNow)
		require.ErrorIs(t, err, subscription.ErrPlanHasNoPrice)
		assert.Nil(t, attempt)
		assert.Empty(t, payments.Payments(sub.ID))
		gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("unreachable gateway is a collaborator error and nothing is recorded", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		payments := subscription.NewMemoryPayments()
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway, payments)
		sub := activeSub(testNow)

		gateway.On("Charge", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

		_, err := o.Attempt(ctx, &sub, testNow)
		require.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
		assert.Empty(t, payments.Payments(sub.ID))
	})

	t.Run("recorder failure surfaces as ErrPaymentNotRecorded", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway, failingRecorder{})
		sub := activeSub(testNow)

		gateway.On("Charge", mock.Anything, mock.Anything).Return(&subscription.ChargeResult{Succeeded: true}, nil).Once()

		_, err := o.Attempt(ctx, &sub, testNow)
		require.ErrorIs(t, err, subscription.ErrPaymentNotRecorded)
	})

	t.Run("same period and attempt reuse the idempotency key", func(t *testing.T) {
		t.Parallel()
		gateway := &mockGateway{}
		payments := subscription.NewMemoryPayments()
		o := subscription.NewPaymentOrchestrator(subscription.NewMemoryCatalog(testPrice), gateway, payments)
		sub := activeSub(testNow)

		var keys []string
		gateway.On("Charge", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(1).(subscription.ChargeRequest).IdempotencyKey)
		}).Return(&subscription.ChargeResult{}, nil).Twice()

		first, err := o.Attempt(ctx, &sub, testNow)
		require.NoError(t, err)
		second, err := o.Attempt(ctx, &sub, testNow)
		require.NoError(t, err)

		require.Len(t, keys, 2)
		assert.Equal(t, keys[0], keys[1])
		assert.Equal(t, first.Payment.ID, second.Payment.ID)
		assert.Len(t, payments.Payments(sub.ID), 1)
	})
}

func TestNewPaymentOrchestrator_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()

	catalog := subscription.NewMemoryCatalog()
	payments := subscription.NewMemoryPayments()

	assert.Panics(t, func() { subscription.NewPaymentOrchestrator(nil, &mockGateway{}, payments) })
	assert.Panics(t, func() { subscription.NewPaymentOrchestrator(catalog, nil, payments) })
	assert.Panics(t, func() { subscription.NewPaymentOrchestrator(catalog, &mockGateway{}, nil) })
}
