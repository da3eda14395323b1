package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeConfig holds configuration for the Stripe payment gateway.
type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY,required"`
}

// StripePaymentIntents is the subset of the Stripe payment intents API the gateway uses.
type StripePaymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeCustomers is the subset of the Stripe customers API the gateway uses.
type StripeCustomers interface {
	Get(id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

// StripeGateway charges saved payment methods off-session through Stripe payment intents.
// It implements both PaymentGateway and PaymentMethodLookup.
type StripeGateway struct {
	intents   StripePaymentIntents
	customers StripeCustomers
}

// NewStripeGateway creates a gateway with its own API clients, leaving the global stripe.Key untouched.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	backend := stripe.GetBackend(stripe.APIBackend)
	return NewStripeGatewayWithClients(
		&paymentintent.Client{B: backend, Key: cfg.SecretKey},
		&customer.Client{B: backend, Key: cfg.SecretKey},
	), nil
}

// NewStripeGatewayWithClients wires the gateway to explicit API clients.
// Panics if either client is nil to fail fast during initialization.
func NewStripeGatewayWithClients(intents StripePaymentIntents, customers StripeCustomers) *StripeGateway {
	if intents == nil {
		panic("subscription: StripePaymentIntents is required")
	}
	if customers == nil {
		panic("subscription: StripeCustomers is required")
	}
	return &StripeGateway{intents: intents, customers: customers}
}

// Charge confirms an off-session payment intent. Card declines and rejected payment
// methods come back as a failed ChargeResult; connectivity, authentication and rate
// limit problems are returned as errors so they do not consume a retry.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.CustomerID == "" {
		return nil, ErrMissingCustomerID
	}
	if req.PaymentMethodID == "" {
		return nil, ErrMissingPaymentMethod
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := g.intents.New(params)
	if err != nil {
		return classifyStripeError(err)
	}

	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		return &ChargeResult{Succeeded: true, ProviderPaymentID: pi.ID}, nil
	}
	return &ChargeResult{
		ProviderPaymentID: pi.ID,
		FailureReason:     string(pi.Status),
	}, nil
}

// DefaultPaymentMethod returns the customer's invoice default payment method, if any.
func (g *StripeGateway) DefaultPaymentMethod(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", ErrMissingCustomerID
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := g.customers.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("failed to get stripe customer: %w", err)
	}
	if c.Deleted || c.InvoiceSettings == nil || c.InvoiceSettings.DefaultPaymentMethod == nil {
		return "", nil
	}
	return c.InvoiceSettings.DefaultPaymentMethod.ID, nil
}

// CustomerEmail returns the email address stored on the Stripe customer.
// Deleted customers have no address.
func (g *StripeGateway) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", ErrMissingCustomerID
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := g.customers.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("failed to get stripe customer: %w", err)
	}
	if c.Deleted {
		return "", nil
	}
	return c.Email, nil
}

func classifyStripeError(err error) (*ChargeResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil, fmt.Errorf("stripe charge failed: %w", err)
	}

	switch {
	case stripeErr.Code == stripe.ErrorCodeRateLimit:
		return nil, fmt.Errorf("stripe rate limited: %w", err)
	case stripeErr.Type == stripe.ErrorTypeCard:
		reason := string(stripeErr.DeclineCode)
		if reason == "" {
			reason = string(stripeErr.Code)
		}
		res := &ChargeResult{FailureReason: reason}
		if stripeErr.PaymentIntent != nil {
			res.ProviderPaymentID = stripeErr.PaymentIntent.ID
		}
		return res, nil
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest && stripeErr.HTTPStatusCode < 500 &&
		stripeErr.Code != "" && stripeErr.HTTPStatusCode != 401:
		// e.g. a detached or expired payment method: the customer has to act
		return &ChargeResult{FailureReason: string(stripeErr.Code)}, nil
	default:
		return nil, fmt.Errorf("stripe charge failed: %w", err)
	}
}
