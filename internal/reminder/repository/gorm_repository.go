package repository

import (
	"context"
	"fmt"

	"lifebook-backend/internal/reminder/domain"

	"gorm.io/gorm"
)

// reminderRow is the projection read from the reminders table. Date and time
// are formatted by the database so no time zone conversion happens here.
type reminderRow struct {
	ID                 string
	Title              string
	Type               string
	Amount             *float64
	ReminderDate       string
	ReminderTime       *string
	Status             string
	EnableNotification bool
}

type gormReminderRepository struct {
	db      *gorm.DB
	ownerID string
}

// NewGormReminderRepository reads from the reminders table. A non-empty
// ownerID restricts the list to one user's reminders.
func NewGormReminderRepository(db *gorm.DB, ownerID string) ReminderRepository {
	return &gormReminderRepository{db: db, ownerID: ownerID}
}

func (r *gormReminderRepository) ListReminders(ctx context.Context) ([]domain.Reminder, error) {
	var rows []reminderRow

	query := r.db.WithContext(ctx).
		Table("reminders").
		Select(`id, title, type, amount,
			to_char(reminder_date, 'YYYY-MM-DD') AS reminder_date,
			to_char(reminder_time, 'HH24:MI:SS') AS reminder_time,
			status, enable_notification`)
	if r.ownerID != "" {
		query = query.Where("user_id = ?", r.ownerID)
	}

	err := query.Order("reminder_date ASC, reminder_time ASC NULLS FIRST").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	reminders := make([]domain.Reminder, 0, len(rows))
	for _, row := range rows {
		reminders = append(reminders, row.toDomain())
	}
	return reminders, nil
}

func (row reminderRow) toDomain() domain.Reminder {
	return domain.Reminder{
		ID:                 row.ID,
		Title:              row.Title,
		Type:               domain.ReminderType(row.Type),
		Amount:             row.Amount,
		ReminderDate:       row.ReminderDate,
		ReminderTime:       row.ReminderTime,
		Status:             domain.ReminderStatus(row.Status),
		EnableNotification: row.EnableNotification,
	}
}
