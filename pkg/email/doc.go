// Package email delivers customer notifications for subscription lifecycle
// events.
//
// EmailSender is the delivery abstraction with two implementations:
// the Postmark client for production and DevSender, which writes each message
// to disk as HTML plus a JSON envelope.
//
// NotificationSink is a subscription.EventSink. It turns the customer-facing
// events (trial and renewal reminders, failed renewals, grace period ending,
// cancellation) into emails rendered with the templ components in the
// templates subpackage, resolving the address through a RecipientResolver
// such as subscription.StripeGateway:
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//		return err
//	}
//	sink := email.NewNotificationSink(sender, stripeGateway, cfg,
//		email.WithBillingURL("https://app.example.com/billing"),
//	)
//
// Send failures wrap ErrFailedToSendEmail, invalid parameters ErrInvalidParams
// and misconfiguration ErrInvalidConfig.
package email
