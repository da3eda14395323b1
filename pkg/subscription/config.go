package subscription

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config drives one lifecycle run. It is immutable for the duration of a pass.
type Config struct {
	TrialEndingReminderDays []int `env:"BILLING_TRIAL_REMINDER_DAYS" envDefault:"7,3,1" validate:"dive,gt=0"`
	RenewalReminderDays     []int `env:"BILLING_RENEWAL_REMINDER_DAYS" envDefault:"7,3,1" validate:"dive,gt=0"`
	GracePeriodDays         int   `env:"BILLING_GRACE_PERIOD_DAYS" envDefault:"7" validate:"gt=0"`
	// Offsets in days from the grace period start at which retries happen.
	PaymentRetryDays []int `env:"BILLING_PAYMENT_RETRY_DAYS" envDefault:"1,3,5" validate:"min=1,dive,gt=0"`
	BillingCycleDays int   `env:"BILLING_CYCLE_DAYS" envDefault:"30" validate:"gt=0"`
}

// DefaultConfig mirrors the env defaults for callers that build Config in code.
func DefaultConfig() Config {
	return Config{
		TrialEndingReminderDays: []int{7, 3, 1},
		RenewalReminderDays:     []int{7, 3, 1},
		GracePeriodDays:         7,
		PaymentRetryDays:        []int{1, 3, 5},
		BillingCycleDays:        30,
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the retry schedule ordering.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	for i, d := range c.PaymentRetryDays {
		if i > 0 && d <= c.PaymentRetryDays[i-1] {
			return errors.Join(ErrInvalidConfig,
				fmt.Errorf("payment retry days must be strictly ascending: %v", c.PaymentRetryDays))
		}
		if d >= c.GracePeriodDays {
			return errors.Join(ErrInvalidConfig,
				fmt.Errorf("payment retry day %d falls outside the %d day grace period", d, c.GracePeriodDays))
		}
	}
	return nil
}

// retryDue reports whether the next retry offset has been reached. Offsets count
// whole days from the grace period start, not from the previous attempt.
func (c Config) retryDue(state LifecycleState, now time.Time) bool {
	if !state.InGracePeriod || state.PaymentRetryAttempts >= len(c.PaymentRetryDays) {
		return false
	}
	return DaysSince(*state.GracePeriodStartedAt, now) >= c.PaymentRetryDays[state.PaymentRetryAttempts]
}

// finalRetryDay is the offset of the last scheduled retry.
func (c Config) finalRetryDay() int {
	if len(c.PaymentRetryDays) == 0 {
		return 0
	}
	return c.PaymentRetryDays[len(c.PaymentRetryDays)-1]
}

// nextRetryDay returns the offset of the upcoming retry, or false when none remain.
func (c Config) nextRetryDay(attempts int) (int, bool) {
	if attempts >= len(c.PaymentRetryDays) {
		return 0, false
	}
	return c.PaymentRetryDays[attempts], true
}

func (c Config) clone() Config {
	c.TrialEndingReminderDays = slices.Clone(c.TrialEndingReminderDays)
	c.RenewalReminderDays = slices.Clone(c.RenewalReminderDays)
	c.PaymentRetryDays = slices.Clone(c.PaymentRetryDays)
	return c
}
