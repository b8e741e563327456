package repository

import (
	"context"

	"lifebook-backend/internal/device/domain"
)

// DeviceRepository stores FCM device tokens. It also serves as the token
// source of the FCM notification sink.
type DeviceRepository interface {
	SaveToken(ctx context.Context, userID, token, deviceInfo string) error
	GetTokensByUserID(ctx context.Context, userID string) ([]domain.FCMToken, error)
	// ListTokens returns the tokens notifications are pushed to.
	ListTokens(ctx context.Context) ([]string, error)
	DeleteToken(ctx context.Context, token string) error
}
