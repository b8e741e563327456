package repository

import (
	"context"

	"lifebook-backend/internal/reminder/domain"
)

// ReminderRepository is a read-only view of the reminders owned by the
// reminder service. This backend never writes reminders.
type ReminderRepository interface {
	ListReminders(ctx context.Context) ([]domain.Reminder, error)
}
