package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func TestDaysUntil(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target time.Time
		want   int
	}{
		{name: "exact days", target: testNow.Add(3 * day), want: 3},
		{name: "partial day rounds up", target: testNow.Add(2*day + time.Hour), want: 3},
		{name: "less than a day", target: testNow.Add(time.Minute), want: 1},
		{name: "same instant", target: testNow, want: 0},
		{name: "past", target: testNow.Add(-2 * day), want: -2},
		{name: "partial past day", target: testNow.Add(-36 * time.Hour), want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, subscription.DaysUntil(tt.target, testNow))
		})
	}
}

func TestDaysSince(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, subscription.DaysSince(testNow.Add(-23*time.Hour), testNow))
	assert.Equal(t, 1, subscription.DaysSince(testNow.Add(-day), testNow))
	assert.Equal(t, 5, subscription.DaysSince(testNow.Add(-5*day-time.Hour), testNow))
}

func TestDueReminders(t *testing.T) {
	t.Parallel()

	thresholds := []int{7, 3, 1}

	t.Run("single threshold due", func(t *testing.T) {
		t.Parallel()
		due := subscription.DueReminders(thresholds, 3, subscription.ReminderSet{7})
		assert.Equal(t, []int{3}, due)
	})

	t.Run("several thresholds due at once, largest first", func(t *testing.T) {
		t.Parallel()
		due := subscription.DueReminders(thresholds, 2, nil)
		assert.Equal(t, []int{7, 3}, due)
	})

	t.Run("already sent thresholds are skipped", func(t *testing.T) {
		t.Parallel()
		due := subscription.DueReminders(thresholds, 3, subscription.ReminderSet{3, 7})
		assert.Empty(t, due)
	})

	t.Run("outside every threshold", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, subscription.DueReminders(thresholds, 10, nil))
	})

	t.Run("nothing fires once the deadline has passed", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, subscription.DueReminders(thresholds, 0, nil))
		assert.Empty(t, subscription.DueReminders(thresholds, -1, nil))
	})

	t.Run("duplicate thresholds fire once", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []int{3}, subscription.DueReminders([]int{3, 3}, 2, nil))
	})
}

func TestReminderSet(t *testing.T) {
	t.Parallel()

	var set subscription.ReminderSet
	assert.False(t, set.Has(3))

	set = set.With(3, 7, 3)
	assert.Equal(t, subscription.ReminderSet{3, 7}, set)
	assert.True(t, set.Has(7))

	extended := set.With(1)
	assert.Equal(t, subscription.ReminderSet{1, 3, 7}, extended)
	assert.Equal(t, subscription.ReminderSet{3, 7}, set, "With must not modify the receiver")
}
