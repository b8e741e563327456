package kv

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the kv_entries table.
type Entry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Entry) TableName() string { return "kv_entries" }

// Gorm stores entries in a relational table (postgres in production).
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a gorm-backed Store and migrates its table.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e.Value, nil
}

// Put overwrites the entry (atomic upsert on the key).
func (g *Gorm) Put(ctx context.Context, key string, value []byte) error {
	e := &Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(e).Error
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("key = ?", key).Delete(&Entry{}).Error
}

func (g *Gorm) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := g.db.WithContext(ctx).Model(&Entry{}).
		Where("key LIKE ?", escapeLike(prefix)+"%").
		Order("key ASC").
		Pluck("key", &keys).Error
	return keys, err
}
