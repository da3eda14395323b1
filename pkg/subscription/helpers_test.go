package subscription_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

var testPrice = subscription.Price{
	ID:         "price_pro_monthly",
	PlanID:     "pro",
	UnitAmount: 2900,
	Currency:   "USD",
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Charge(ctx context.Context, req subscription.ChargeRequest) (*subscription.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.ChargeResult), args.Error(1)
}

type mockMethodLookup struct {
	mock.Mock
}

func (m *mockMethodLookup) DefaultPaymentMethod(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type testEnv struct {
	store    *subscription.MemoryStore
	catalog  *subscription.MemoryCatalog
	payments *subscription.MemoryPayments
	gateway  *mockGateway
	sink     *subscription.MemorySink
	machine  *subscription.Machine
	driver   *subscription.Driver
}

func newTestEnv(t *testing.T, subs ...subscription.Subscription) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, subscription.DefaultConfig(), subs...)
}

func newTestEnvWithConfig(t *testing.T, cfg subscription.Config, subs ...subscription.Subscription) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    subscription.NewMemoryStore(subs...),
		catalog:  subscription.NewMemoryCatalog(testPrice),
		payments: subscription.NewMemoryPayments(),
		gateway:  &mockGateway{},
		sink:     subscription.NewMemorySink(),
	}

	orchestrator := subscription.NewPaymentOrchestrator(env.catalog, env.gateway, env.payments,
		subscription.WithPaymentLogger(discardLogger()),
	)
	machine, err := subscription.NewMachine(cfg, orchestrator, subscription.WithMachineLogger(discardLogger()))
	require.NoError(t, err)
	env.machine = machine
	env.driver = subscription.NewDriver(env.store, machine,
		subscription.WithEventSink(env.sink),
		subscription.WithDriverLogger(discardLogger()),
	)
	return env
}

func (e *testEnv) chargeSucceeds() {
	e.gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&subscription.ChargeResult{Succeeded: true, ProviderPaymentID: "pi_ok"}, nil)
}

func (e *testEnv) chargeDeclines(reason string) {
	e.gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&subscription.ChargeResult{ProviderPaymentID: "pi_declined", FailureReason: reason}, nil)
}

func (e *testEnv) get(t *testing.T, id uuid.UUID) *subscription.Subscription {
	t.Helper()
	sub, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func trialingSub(trialEnd time.Time) subscription.Subscription {
	start := trialEnd.AddDate(0, 0, -14)
	end := trialEnd
	return subscription.Subscription{
		ID:              uuid.New(),
		CustomerID:      "cus_123",
		PlanID:          "pro",
		Status:          subscription.StatusTrialing,
		TrialStart:      &start,
		TrialEnd:        &end,
		Quantity:        1,
		PaymentMethodID: "pm_card",
		Lifecycle: subscription.LifecycleState{
			TrialEndTracked: &end,
		},
		CreatedAt: start,
	}
}

func activeSub(periodEnd time.Time) subscription.Subscription {
	start := periodEnd.AddDate(0, 0, -30)
	end := periodEnd
	return subscription.Subscription{
		ID:                 uuid.New(),
		CustomerID:         "cus_456",
		PlanID:             "pro",
		Status:             subscription.StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Quantity:           1,
		PaymentMethodID:    "pm_card",
		Lifecycle: subscription.LifecycleState{
			PeriodEndTracked: &end,
		},
		CreatedAt: start,
	}
}

// graceSub is an active subscription whose renewal failed graceDaysAgo days ago.
func graceSub(graceDaysAgo int, attempts int) subscription.Subscription {
	graceStart := testNow.Add(-time.Duration(graceDaysAgo) * day)
	sub := activeSub(graceStart)
	sub.Lifecycle.InGracePeriod = true
	sub.Lifecycle.GracePeriodStartedAt = &graceStart
	sub.Lifecycle.PaymentRetryAttempts = attempts
	sub.Lifecycle.LastPaymentAttemptAt = &graceStart
	return sub
}

func eventTypes(events []subscription.Event) []subscription.EventType {
	types := make([]subscription.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func findEvent(events []subscription.Event, t subscription.EventType) (subscription.Event, bool) {
	for _, e := range events {
		if e.Type == t {
			return e, true
		}
	}
	return subscription.Event{}, false
}
