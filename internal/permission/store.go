package permission

import (
	"context"
	"errors"
	"sync"
	"time"

	"lifebook-backend/pkg/kv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemoryStore keeps the state in process.
type MemoryStore struct {
	mu    sync.RWMutex
	state State
}

func NewMemoryStore(initial State) *MemoryStore {
	return &MemoryStore{state: initial}
}

func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

// record is the single row of notification_permissions.
type record struct {
	ID        uint      `gorm:"primaryKey"`
	State     string    `gorm:"not null;default:default"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (record) TableName() string { return "notification_permissions" }

const recordID = 1

// GormStore persists the state so every process sees the same answer.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed Store and migrates its table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context) (State, error) {
	var r record
	err := s.db.WithContext(ctx).Where("id = ?", recordID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StateDefault, nil
		}
		return "", err
	}
	return State(r.State), nil
}

func (s *GormStore) Save(ctx context.Context, state State) error {
	r := &record{ID: recordID, State: string(state), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(r).Error
}

// KVKey is where KVStore keeps the state. It lives in the reminder data
// namespace so activation cleanup leaves it alone.
const KVKey = "reminder-data/permission"

// KVStore persists the state in a key-value cache, for deployments without
// postgres.
type KVStore struct {
	kv kv.Store
}

func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{kv: store}
}

func (s *KVStore) Load(ctx context.Context) (State, error) {
	raw, err := s.kv.Get(ctx, KVKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return StateDefault, nil
		}
		return "", err
	}
	return ParseState(string(raw))
}

func (s *KVStore) Save(ctx context.Context, state State) error {
	return s.kv.Put(ctx, KVKey, []byte(state))
}
