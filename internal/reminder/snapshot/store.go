// Package snapshot persists the latest reminder list handed from the
// foreground to the background worker.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/pkg/kv"
)

const (
	// Namespace is the cache name holding reminder data. Activation cleanup
	// must never delete it.
	Namespace = "reminder-data"
	// Key is the fixed key of the snapshot inside Namespace.
	Key = Namespace + "/reminders"
)

// Store reads and writes the snapshot under one fixed key. Writes should
// come from a single owner (the worker loop); Put derives the next version
// from the stored one.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// Put replaces the stored snapshot with reminders and returns what was written.
func (s *Store) Put(ctx context.Context, reminders []domain.Reminder) (domain.Snapshot, error) {
	if reminders == nil {
		reminders = []domain.Reminder{}
	}

	prev := s.Get(ctx)
	snap := domain.Snapshot{
		Version:   prev.Version + 1,
		Reminders: reminders,
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.kv.Put(ctx, Key, payload); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to store snapshot: %w", err)
	}
	return snap, nil
}

// Get returns the last stored snapshot. Missing, unreadable or malformed
// data all come back as an empty snapshot; a skipped check is better than a
// crashed worker.
func (s *Store) Get(ctx context.Context) domain.Snapshot {
	empty := domain.Snapshot{Reminders: []domain.Reminder{}}

	payload, err := s.kv.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("[Snapshot] Error reading snapshot: %v", err)
		}
		return empty
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Printf("[Snapshot] Discarding malformed snapshot: %v", err)
		return empty
	}
	if snap.Reminders == nil {
		snap.Reminders = []domain.Reminder{}
	}
	return snap
}
