package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/email/templates"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// RecipientResolver maps a gateway customer ID to an email address.
// An empty address without error means the customer cannot be emailed.
type RecipientResolver interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// RecipientFunc adapts a function to RecipientResolver.
type RecipientFunc func(ctx context.Context, customerID string) (string, error)

func (f RecipientFunc) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	return f(ctx, customerID)
}

// NotificationSink emails customers about lifecycle events that concern them:
// trial and renewal reminders, failed payments, the end of a grace period and
// cancellation. Other events are ignored. It satisfies subscription.EventSink.
type NotificationSink struct {
	sender       EmailSender
	recipients   RecipientResolver
	product      string
	supportEmail string
	billingURL   string
	log          *slog.Logger
}

// NotificationSinkOption configures a NotificationSink.
type NotificationSinkOption func(*NotificationSink)

// WithBillingURL adds a call to action pointing at the customer's billing page.
func WithBillingURL(url string) NotificationSinkOption {
	return func(s *NotificationSink) {
		s.billingURL = url
	}
}

func WithNotificationLogger(l *slog.Logger) NotificationSinkOption {
	return func(s *NotificationSink) {
		if l != nil {
			s.log = l
		}
	}
}

// NewNotificationSink creates a sink sending through sender. Product name and
// support address come from cfg.
func NewNotificationSink(sender EmailSender, recipients RecipientResolver, cfg Config, opts ...NotificationSinkOption) *NotificationSink {
	if sender == nil {
		panic("email: sender cannot be nil")
	}
	if recipients == nil {
		panic("email: recipient resolver cannot be nil")
	}

	s := &NotificationSink{
		sender:       sender,
		recipients:   recipients,
		product:      cfg.ProductName,
		supportEmail: cfg.SupportEmail,
		log:          slog.Default(),
	}
	if s.product == "" {
		s.product = "Billing"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit sends the email for event, if it has one.
func (s *NotificationSink) Emit(ctx context.Context, event subscription.Event) error {
	notice, ok := s.notice(event)
	if !ok {
		return nil
	}

	addr, err := s.recipients.CustomerEmail(ctx, event.CustomerID)
	if err != nil {
		return errors.Join(ErrRecipientLookup, err)
	}
	if addr == "" {
		s.log.DebugContext(ctx, "no email address for customer, notification skipped",
			logger.Component("notification_sink"),
			logger.EventType(string(event.Type)),
			logger.CustomerID(event.CustomerID),
		)
		return nil
	}

	body, err := templates.Render(ctx, templates.NoticeEmail(notice))
	if err != nil {
		return errors.Join(ErrTemplateRenderFailed, err)
	}

	return s.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   addr,
		Subject:  fmt.Sprintf("%s: %s", s.product, notice.Heading),
		BodyHTML: body,
		Tag:      string(event.Type),
	})
}

func (s *NotificationSink) notice(event subscription.Event) (templates.Notice, bool) {
	n := templates.Notice{
		Product:      s.product,
		SupportEmail: s.supportEmail,
	}
	d := event.Data

	switch event.Type {
	case subscription.EventTrialEnding:
		n.Heading = "Your trial is ending soon"
		n.Paragraphs = []string{
			fmt.Sprintf("Your free trial ends in %s, on %s.", pluralDays(dataInt(d, subscription.DataDaysRemaining)), dataDate(d, subscription.DataTrialEnd)),
			"We will charge your saved payment method when it ends so your subscription continues without interruption.",
		}
		n.ActionLabel = "Review billing details"

	case subscription.EventTrialConverted:
		n.Heading = "Welcome aboard"
		n.Paragraphs = []string{
			fmt.Sprintf("Your trial has converted to a paid subscription. We charged %s.", dataAmount(d)),
			fmt.Sprintf("Your next renewal is on %s.", dataDate(d, subscription.DataPeriodEnd)),
		}

	case subscription.EventTrialEnded:
		n.Heading = "Your trial has ended"
		n.Paragraphs = []string{
			"We could not charge a payment method when your trial ended, so your subscription was not started.",
			"You can subscribe again at any time.",
		}
		n.ActionLabel = "Subscribe"

	case subscription.EventExpiring:
		if cancelAtPeriodEnd, _ := d["cancelAtPeriodEnd"].(bool); cancelAtPeriodEnd {
			n.Heading = "Your subscription is ending"
			n.Paragraphs = []string{
				fmt.Sprintf("Your subscription ends in %s, on %s, and will not renew.", pluralDays(dataInt(d, subscription.DataDaysRemaining)), dataDate(d, subscription.DataPeriodEnd)),
			}
			n.ActionLabel = "Keep my subscription"
		} else {
			n.Heading = "Upcoming renewal"
			n.Paragraphs = []string{
				fmt.Sprintf("Your subscription renews in %s, on %s.", pluralDays(dataInt(d, subscription.DataDaysRemaining)), dataDate(d, subscription.DataPeriodEnd)),
			}
			n.ActionLabel = "Review billing details"
		}

	case subscription.EventRenewalFailed:
		n.Heading = "We could not process your payment"
		n.Paragraphs = []string{
			fmt.Sprintf("The renewal charge of %s was declined.", dataAmount(d)),
			"We will retry automatically over the next few days. Updating your payment method avoids an interruption.",
		}
		n.ActionLabel = "Update payment method"

	case subscription.EventGracePeriodEnding:
		n.Heading = "Action required: your subscription will be canceled"
		n.Paragraphs = []string{
			fmt.Sprintf("We still could not collect your payment. Your subscription will be canceled on %s.", dataDate(d, subscription.DataGraceEndsAt)),
		}
		n.ActionLabel = "Update payment method"

	case subscription.EventCanceledNonpayment:
		n.Heading = "Your subscription has been canceled"
		reason, _ := d[subscription.DataReason].(string)
		switch subscription.CancelReason(reason) {
		case subscription.CancelReasonScheduled:
			n.Paragraphs = []string{"Your subscription has ended as requested. Thank you for being a customer."}
		default:
			n.Paragraphs = []string{"We were unable to collect payment for your subscription, so it has been canceled."}
		}
		n.ActionLabel = "Resubscribe"

	default:
		return n, false
	}

	if s.billingURL != "" && n.ActionLabel != "" {
		n.ActionURL = s.billingURL
	}
	return n, true
}

func dataInt(d map[string]any, key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func dataDate(d map[string]any, key string) string {
	switch v := d[key].(type) {
	case time.Time:
		return v.UTC().Format("January 2, 2006")
	case *time.Time:
		if v != nil {
			return v.UTC().Format("January 2, 2006")
		}
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC().Format("January 2, 2006")
		}
	}
	return "the scheduled date"
}

func dataAmount(d map[string]any) string {
	var amount int64
	switch v := d[subscription.DataAmount].(type) {
	case int64:
		amount = v
	case int:
		amount = int64(v)
	case float64:
		amount = int64(v)
	}
	currency, _ := d[subscription.DataCurrency].(string)
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, currency)
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
