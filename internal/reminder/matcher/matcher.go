// Package matcher decides which reminders of a snapshot are due at a given
// instant. It is pure: no I/O, no clock, no mutation of its input.
package matcher

import (
	"time"

	"lifebook-backend/internal/reminder/domain"
)

// Tolerance is how far, in minutes, a timed reminder may be from now and
// still count as due. It absorbs coarse trigger granularity.
const Tolerance = 1

// DueReminders returns the reminders of snapshot that are due at now, in
// their original order. now's location defines "today".
func DueReminders(snapshot []domain.Reminder, now time.Time) []domain.Reminder {
	due := make([]domain.Reminder, 0)
	for _, r := range snapshot {
		if IsDue(r, now) {
			due = append(due, r)
		}
	}
	return due
}

// IsDue applies the eligibility rule and the time window to one reminder.
func IsDue(r domain.Reminder, now time.Time) bool {
	if !r.Eligible(now) {
		return false
	}

	at, timed, err := r.Clock()
	if err != nil {
		return false
	}
	if !timed {
		// Untimed reminders fire once, at the start of the day.
		return now.Hour() == 0 && now.Minute() == 0
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	diff := nowMinutes - at.Minutes()
	if diff < 0 {
		diff = -diff
	}
	return diff <= Tolerance
}
