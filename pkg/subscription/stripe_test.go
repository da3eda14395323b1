package subscription_test

import (
	"context"
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type mockIntents struct {
	mock.Mock
}

func (m *mockIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.PaymentIntent), args.Error(1)
}

type mockCustomers struct {
	mock.Mock
}

func (m *mockCustomers) Get(id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	args := m.Called(id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func chargeRequest() subscription.ChargeRequest {
	return subscription.ChargeRequest{
		CustomerID:      "cus_123",
		PaymentMethodID: "pm_card",
		Amount:          2900,
		Currency:        "USD",
		IdempotencyKey:  "sub:1:0",
		Description:     "Subscription renewal",
	}
}

func TestNewStripeGateway(t *testing.T) {
	t.Parallel()

	_, err := subscription.NewStripeGateway(subscription.StripeConfig{})
	assert.ErrorIs(t, err, subscription.ErrMissingAPIKey)

	gw, err := subscription.NewStripeGateway(subscription.StripeConfig{SecretKey: "sk_test_123"})
	require.NoError(t, err)
	assert.NotNil(t, gw)

	assert.Panics(t, func() { subscription.NewStripeGatewayWithClients(nil, &mockCustomers{}) })
	assert.Panics(t, func() { subscription.NewStripeGatewayWithClients(&mockIntents{}, nil) })
}

func TestStripeGateway_Charge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("confirmed intent succeeds", func(t *testing.T) {
		t.Parallel()
		intents := &mockIntents{}
		gw := subscription.NewStripeGatewayWithClients(intents, &mockCustomers{})

		intents.On("New", mock.MatchedBy(func(p *stripe.PaymentIntentParams) bool {
			return *p.Amount == 2900 &&
				*p.Currency == "usd" &&
				*p.Customer == "cus_123" &&
				*p.PaymentMethod == "pm_card" &&
				*p.Confirm &&
				*p.OffSession &&
				*p.IdempotencyKey == "sub:1:0"
		})).Return(&stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}, nil).Once()

		res, err := gw.Charge(ctx, chargeRequest())
		require.NoError(t, err)
		assert.True(t, res.Succeeded)
		assert.Equal(t, "pi_1", res.ProviderPaymentID)
		intents.AssertExpectations(t)
	})

	t.Run("intent needing customer action is a failed charge", func(t *testing.T) {
		t.Parallel()
		intents := &mockIntents{}
		gw := subscription.NewStripeGatewayWithClients(intents, &mockCustomers{})
		intents.On("New", mock.Anything).
			Return(&stripe.PaymentIntent{ID: "pi_2", Status: stripe.PaymentIntentStatusRequiresAction}, nil).Once()

		res, err := gw.Charge(ctx, chargeRequest())
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		assert.Equal(t, string(stripe.PaymentIntentStatusRequiresAction), res.FailureReason)
	})

	t.Run("card error is a decline", func(t *testing.T) {
		t.Parallel()
		intents := &mockIntents{}
		gw := subscription.NewStripeGatewayWithClients(intents, &mockCustomers{})
		intents.On("New", mock.Anything).Return(nil, &stripe.Error{
			Type:           stripe.ErrorTypeCard,
			Code:           stripe.ErrorCodeCardDeclined,
			DeclineCode:    stripe.DeclineCodeInsufficientFunds,
			HTTPStatusCode: 402,
			PaymentIntent:  &stripe.PaymentIntent{ID: "pi_3"},
		}).Once()

		res, err := gw.Charge(ctx, chargeRequest())
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		assert.Equal(t, string(stripe.DeclineCodeInsufficientFunds), res.FailureReason)
		assert.Equal(t, "pi_3", res.ProviderPaymentID)
	})

	t.Run("rejected payment method is a decline", func(t *testing.T) {
		t.Parallel()
		intents := &mockIntents{}
		gw := subscription.NewStripeGatewayWithClients(intents, &mockCustomers{})
		intents.On("New", mock.Anything).Return(nil, &stripe.Error{
			Type:           stripe.ErrorTypeInvalidRequest,
			Code:           stripe.ErrorCodeResourceMissing,
			HTTPStatusCode: 404,
		}).Once()

		res, err := gw.Charge(ctx, chargeRequest())
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		assert.Equal(t, string(stripe.ErrorCodeResourceMissing), res.FailureReason)
	})

	t.Run("api and rate limit errors are returned", func(t *testing.T) {
		t.Parallel()
		for _, stripeErr := range []*stripe.Error{
			{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 500},
			{Type: stripe.ErrorTypeInvalidRequest, Code: stripe.ErrorCodeRateLimit, HTTPStatusCode: 429},
			{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 401},
		} {
			intents := &mockIntents{}
			gw := subscription.NewStripeGatewayWithClients(intents, &mockCustomers{})
			intents.On("New", mock.Anything).Return(nil, stripeErr).Once()

			res, err := gw.Charge(ctx, chargeRequest())
			require.Error(t, err)
			assert.Nil(t, res)
		}
	})

	t.Run("transport errors are returned", func(t *testing.T) {
		t.Parallel()
		intents := &mockIntents{}
		gw := subscription.NewStripeGatewayWithClients(intents, &mockCustomers{})
		netErr := errors.New("connection reset by peer")
		intents.On("New", mock.Anything).Return(nil, netErr).Once()

		_, err := gw.Charge(ctx, chargeRequest())
		assert.ErrorIs(t, err, netErr)
	})

	t.Run("missing identifiers", func(t *testing.T) {
		t.Parallel()
		gw := subscription.NewStripeGatewayWithClients(&mockIntents{}, &mockCustomers{})

		req := chargeRequest()
		req.CustomerID = ""
		_, err := gw.Charge(ctx, req)
		assert.ErrorIs(t, err, subscription.ErrMissingCustomerID)

		req = chargeRequest()
		req.PaymentMethodID = ""
		_, err = gw.Charge(ctx, req)
		assert.ErrorIs(t, err, subscription.ErrMissingPaymentMethod)
	})
}

func TestStripeGateway_DefaultPaymentMethod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns invoice default method", func(t *testing.T) {
		t.Parallel()
		customers := &mockCustomers{}
		gw := subscription.NewStripeGatewayWithClients(&mockIntents{}, customers)
		customers.On("Get", "cus_123", mock.Anything).Return(&stripe.Customer{
			ID: "cus_123",
			InvoiceSettings: &stripe.CustomerInvoiceSettings{
				DefaultPaymentMethod: &stripe.PaymentMethod{ID: "pm_default"},
			},
		}, nil).Once()

		id, err := gw.DefaultPaymentMethod(ctx, "cus_123")
		require.NoError(t, err)
		assert.Equal(t, "pm_default", id)
	})

	t.Run("customer without method", func(t *testing.T) {
		t.Parallel()
		customers := &mockCustomers{}
		gw := subscription.NewStripeGatewayWithClients(&mockIntents{}, customers)
		customers.On("Get", "cus_123", mock.Anything).Return(&stripe.Customer{ID: "cus_123"}, nil).Once()

		id, err := gw.DefaultPaymentMethod(ctx, "cus_123")
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()
		customers := &mockCustomers{}
		gw := subscription.NewStripeGatewayWithClients(&mockIntents{}, customers)
		customers.On("Get", "cus_123", mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := gw.DefaultPaymentMethod(ctx, "cus_123")
		assert.Error(t, err)

		_, err = gw.DefaultPaymentMethod(ctx, "")
		assert.ErrorIs(t, err, subscription.ErrMissingCustomerID)
	})
}

func TestStripeGateway_CustomerEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	customers := &mockCustomers{}
	gw := subscription.NewStripeGatewayWithClients(&mockIntents{}, customers)

	customers.On("Get", "cus_123", mock.Anything).Return(&stripe.Customer{ID: "cus_123", Email: "jane@example.com"}, nil).Once()
	customers.On("Get", "cus_gone", mock.Anything).Return(&stripe.Customer{ID: "cus_gone", Deleted: true, Email: "old@example.com"}, nil).Once()

	addr, err := gw.CustomerEmail(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", addr)

	addr, err = gw.CustomerEmail(ctx, "cus_gone")
	require.NoError(t, err)
	assert.Empty(t, addr)

	_, err = gw.CustomerEmail(ctx, "")
	assert.ErrorIs(t, err, subscription.ErrMissingCustomerID)
	customers.AssertExpectations(t)
}
