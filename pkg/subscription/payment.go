package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// PaymentAttempt is the classified outcome of one charge attempt.
type PaymentAttempt struct {
	Succeeded bool
	Amount    int64
	Currency  string
	Payment   *Payment
	Event     Event // payment.succeeded or payment.failed
}

// PaymentOrchestrator resolves the price and payment method for a subscription,
// charges it and records the attempt. It never changes subscription state; the
// state machine decides what an outcome means.
type PaymentOrchestrator struct {
	catalog  PriceCatalog
	methods  PaymentMethodLookup
	gateway  PaymentGateway
	recorder PaymentRecorder
	logger   *slog.Logger
}

// PaymentOrchestratorOption configures a PaymentOrchestrator.
type PaymentOrchestratorOption func(*PaymentOrchestrator)

// WithPaymentLogger sets the logger for the orchestrator.
func WithPaymentLogger(l *slog.Logger) PaymentOrchestratorOption {
	return func(o *PaymentOrchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPaymentMethodLookup enables falling back to the customer's saved default method
// when the subscription carries none.
func WithPaymentMethodLookup(lookup PaymentMethodLookup) PaymentOrchestratorOption {
	return func(o *PaymentOrchestrator) {
		o.methods = lookup
	}
}

// NewPaymentOrchestrator panics if a required collaborator is nil to fail fast during initialization.
func NewPaymentOrchestrator(catalog PriceCatalog, gateway PaymentGateway, recorder PaymentRecorder, opts ...PaymentOrchestratorOption) *PaymentOrchestrator {
	if catalog == nil {
		panic("subscription: PriceCatalog is required")
	}
	if gateway == nil {
		panic("subscription: PaymentGateway is required")
	}
	if recorder == nil {
		panic("subscription: PaymentRecorder is required")
	}

	o := &PaymentOrchestrator{
		catalog:  catalog,
		gateway:  gateway,
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attempt charges the subscription for one billing period.
//
// ErrPlanHasNoPrice is returned without contacting the gateway or recording anything.
// A missing payment method is a recorded, failed attempt. Gateway and recorder errors
// are returned as collaborator errors.
func (o *PaymentOrchestrator) Attempt(ctx context.Context, sub *Subscription, now time.Time) (*PaymentAttempt, error) {
	prices, err := o.catalog.Prices(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for plan %s: %w", sub.PlanID, err)
	}
	if len(prices) == 0 {
		o.logger.LogAttrs(ctx, slog.LevelError, "plan has no price, payment not attempted",
			logger.SubscriptionID(sub.ID),
			logger.PlanID(sub.PlanID),
		)
		return nil, errors.Join(ErrPlanHasNoPrice, fmt.Errorf("plan %s", sub.PlanID))
	}

	price := prices[0]
	amount := price.UnitAmount * int64(max(sub.Quantity, 1))
	input := PaymentInput{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Amount:         amount,
		Currency:       price.Currency,
		IdempotencyKey: idempotencyKey(sub),
		AttemptedAt:    now,
	}

	methodID, err := o.paymentMethod(ctx, sub)
	if err != nil {
		return nil, err
	}

	if methodID == "" {
		input.Status = PaymentStatusFailed
		input.FailureReason = FailureNoPaymentMethod
	} else {
		res, err := o.gateway.Charge(ctx, ChargeRequest{
			CustomerID:      sub.CustomerID,
			PaymentMethodID: methodID,
			Amount:          amount,
			Currency:        price.Currency,
			IdempotencyKey:  input.IdempotencyKey,
			Description:     fmt.Sprintf("Subscription %s (%s)", sub.ID, sub.PlanID),
		})
		if err != nil {
			return nil, errors.Join(ErrGatewayUnavailable, err)
		}
		input.ProviderPaymentID = res.ProviderPaymentID
		if res.Succeeded {
			input.Status = PaymentStatusSucceeded
		} else {
			input.Status = PaymentStatusFailed
			input.FailureReason = res.FailureReason
			if input.FailureReason == "" {
				input.FailureReason = FailureDeclined
			}
		}
	}

	payment, err := o.recorder.Record(ctx, input)
	if err != nil {
		return nil, errors.Join(ErrPaymentNotRecorded, err)
	}

	attempt := &PaymentAttempt{
		Succeeded: input.Status == PaymentStatusSucceeded,
		Amount:    amount,
		Currency:  price.Currency,
		Payment:   payment,
	}

	data := map[string]any{
		DataAmount:    amount,
		DataCurrency:  price.Currency,
		DataPaymentID: payment.ID.String(),
	}
	if input.ProviderPaymentID != "" {
		data[DataProviderPaymentID] = input.ProviderPaymentID
	}
	if attempt.Succeeded {
		attempt.Event = newEvent(EventPaymentSucceeded, sub, now, data)
	} else {
		data[DataFailureReason] = input.FailureReason
		attempt.Event = newEvent(EventPaymentFailed, sub, now, data)
		o.logger.LogAttrs(ctx, slog.LevelInfo, "payment attempt failed",
			logger.SubscriptionID(sub.ID),
			logger.CustomerID(sub.CustomerID),
			slog.String("failure_reason", input.FailureReason),
		)
	}

	return attempt, nil
}

func (o *PaymentOrchestrator) paymentMethod(ctx context.Context, sub *Subscription) (string, error) {
	if sub.PaymentMethodID != "" {
		return sub.PaymentMethodID, nil
	}
	if o.methods == nil || sub.CustomerID == "" {
		return "", nil
	}
	methodID, err := o.methods.DefaultPaymentMethod(ctx, sub.CustomerID)
	if err != nil {
		return "", errors.Join(ErrGatewayUnavailable, fmt.Errorf("payment method lookup: %w", err))
	}
	return methodID, nil
}

// idempotencyKey is stable for a given billing period and attempt number, so a pass
// replayed after a version conflict reuses the same charge and payment record.
func idempotencyKey(sub *Subscription) string {
	attempt := 0
	if sub.Lifecycle.InGracePeriod {
		attempt = sub.Lifecycle.PaymentRetryAttempts
	}
	anchor := sub.CurrentPeriodEnd
	if sub.IsTrialing() && sub.TrialEnd != nil {
		anchor = *sub.TrialEnd
	}
	return fmt.Sprintf("%s:%d:%d", sub.ID, anchor.Unix(), attempt)
}
