package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifebook-backend/internal/device/domain"

	"github.com/google/uuid"
)

type memoryDeviceRepository struct {
	mu      sync.RWMutex
	tokens  map[string]domain.FCMToken
	ownerID string
}

func NewMemoryDeviceRepository(ownerID string) DeviceRepository {
	return &memoryDeviceRepository{tokens: make(map[string]domain.FCMToken), ownerID: ownerID}
}

func (r *memoryDeviceRepository) SaveToken(_ context.Context, userID, token, deviceInfo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, ok := r.tokens[token]
	if !ok {
		existing = domain.FCMToken{ID: uuid.New().String(), Token: token, CreatedAt: now}
	}
	existing.UserID = userID
	existing.DeviceInfo = deviceInfo
	existing.UpdatedAt = now
	r.tokens[token] = existing
	return nil
}

func (r *memoryDeviceRepository) GetTokensByUserID(_ context.Context, userID string) ([]domain.FCMToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.FCMToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryDeviceRepository) ListTokens(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for token, t := range r.tokens {
		if r.ownerID == "" || t.UserID == r.ownerID {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memoryDeviceRepository) DeleteToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}
