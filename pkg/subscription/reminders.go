package subscription

import (
	"slices"
	"time"
)

// DaysUntil returns ceil((target - now) / 1 day). Negative once target has passed.
func DaysUntil(target, now time.Time) int {
	d := target.Sub(now)
	days := int(d / day)
	if d%day > 0 {
		days++
	}
	return days
}

// DaysSince returns the whole days elapsed from start to now.
func DaysSince(start, now time.Time) int {
	return int(now.Sub(start) / day)
}

// DueReminders returns the thresholds satisfying 0 < daysRemaining <= threshold that
// are not in sent, largest first. The caller must mark them as sent in the same pass,
// before emitting, so a replay for the same "now" cannot fire them again.
func DueReminders(thresholds []int, daysRemaining int, sent ReminderSet) []int {
	if daysRemaining <= 0 {
		return nil
	}
	var due []int
	for _, threshold := range thresholds {
		if daysRemaining <= threshold && !sent.Has(threshold) && !slices.Contains(due, threshold) {
			due = append(due, threshold)
		}
	}
	slices.Sort(due)
	slices.Reverse(due)
	return due
}
