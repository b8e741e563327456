package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReminderType tells income reminders from expense reminders. Empty for notes.
type ReminderType string

const (
	TypeIncome  ReminderType = "Income"
	TypeExpense ReminderType = "Expense"
)

// ReminderStatus represents where a reminder is in its lifecycle
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusCompleted ReminderStatus = "completed"
	StatusSkipped   ReminderStatus = "skipped"
)

// DateLayout is the layout of ReminderDate.
const DateLayout = "2006-01-02"

// Reminder is a payment/income reminder or a plain note, owned by the
// reminder service. The scheduler only ever reads it.
type Reminder struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Type               ReminderType   `json:"type,omitempty"`
	Amount             *float64       `json:"amount,omitempty"`
	ReminderDate       string         `json:"reminder_date"`           // local calendar date, no offset
	ReminderTime       *string        `json:"reminder_time,omitempty"` // "HH:MM" or "HH:MM:SS"; nil means start of day
	Status             ReminderStatus `json:"status"`
	EnableNotification bool           `json:"enable_notification"`
}

// IsFinancial reports whether the reminder carries an amount.
func (r Reminder) IsFinancial() bool {
	return r.Amount != nil
}

// IsIncome matches the type case-insensitively.
func (r Reminder) IsIncome() bool {
	return strings.EqualFold(string(r.Type), string(TypeIncome))
}

// Date returns the calendar part of ReminderDate. Backends sometimes send
// full ISO timestamps; only the first ten characters count.
func (r Reminder) Date() string {
	d := strings.TrimSpace(r.ReminderDate)
	if len(d) > len(DateLayout) {
		d = d[:len(DateLayout)]
	}
	return d
}

// Eligible reports whether the reminder may be notified on the given day:
// pending, notifications enabled, dated that day.
func (r Reminder) Eligible(day time.Time) bool {
	return r.Status == StatusPending &&
		r.EnableNotification &&
		r.Date() == day.Format(DateLayout)
}

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM" or "HH:MM:SS". Seconds are ignored.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid reminder time %q", s)
}

// Clock returns the parsed reminder time. ok is false when the reminder is
// untimed; err is set when the stored value cannot be parsed.
func (r Reminder) Clock() (c ClockTime, ok bool, err error) {
	if r.ReminderTime == nil || strings.TrimSpace(*r.ReminderTime) == "" {
		return ClockTime{}, false, nil
	}
	c, err = ParseClock(*r.ReminderTime)
	if err != nil {
		return ClockTime{}, true, err
	}
	return c, true, nil
}

// Snapshot is the full reminder list as last published by the foreground.
// Version increases by one on every write so readers can tell snapshots apart.
type Snapshot struct {
	Version   uint64     `json:"version"`
	Reminders []Reminder `json:"reminders"`
}
