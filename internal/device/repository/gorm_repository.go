package repository

import (
	"context"
	"fmt"
	"time"

	"lifebook-backend/internal/device/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormDeviceRepository struct {
	db      *gorm.DB
	ownerID string
}

// NewGormDeviceRepository migrates the token table. A non-empty ownerID
// restricts ListTokens to that user's devices.
func NewGormDeviceRepository(db *gorm.DB, ownerID string) (DeviceRepository, error) {
	if err := db.AutoMigrate(&domain.FCMToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate fcm tokens: %w", err)
	}
	return &gormDeviceRepository{db: db, ownerID: ownerID}, nil
}

// SaveToken saves or updates an FCM token for a user (atomic upsert)
func (r *gormDeviceRepository) SaveToken(ctx context.Context, userID, token, deviceInfo string) error {
	now := time.Now()
	fcmToken := &domain.FCMToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(fcmToken).Error
}

func (r *gormDeviceRepository) GetTokensByUserID(ctx context.Context, userID string) ([]domain.FCMToken, error) {
	var tokens []domain.FCMToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *gormDeviceRepository) ListTokens(ctx context.Context) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&domain.FCMToken{})
	if r.ownerID != "" {
		query = query.Where("user_id = ?", r.ownerID)
	}

	var tokens []string
	if err := query.Pluck("token", &tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *gormDeviceRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.FCMToken{}).Error
}
