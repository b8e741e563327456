// Package permission wraps the notification permission granted by the user.
//
// Only foreground code (HTTP handlers, the CLI, the publisher) holds a *Gate.
// Background code depends on Checker, which cannot prompt.
package permission

import (
	"context"
	"fmt"
	"log"
	"time"
)

// State mirrors the browser Notification.permission values.
type State string

const (
	StateDefault State = "default"
	StateGranted State = "granted"
	StateDenied  State = "denied"
)

// ParseState validates a client supplied permission value.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateDefault, StateGranted, StateDenied:
		return State(s), nil
	}
	return "", fmt.Errorf("unknown permission state %q", s)
}

// Checker is the read-only view used by the background worker.
type Checker interface {
	HasPermission(ctx context.Context) bool
}

// Store persists the current permission state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Prompter asks the user for permission. Each call shows one prompt.
type Prompter interface {
	Prompt(ctx context.Context) (State, error)
}

// Gate answers whether notifications may be shown and asks for permission.
type Gate struct {
	store    Store
	prompter Prompter
}

func NewGate(store Store, prompter Prompter) *Gate {
	return &Gate{store: store, prompter: prompter}
}

// State returns the stored state; unknown or unreadable means default.
func (g *Gate) State(ctx context.Context) State {
	state, err := g.store.Load(ctx)
	if err != nil {
		log.Printf("[Permission] Error loading permission state: %v", err)
		return StateDefault
	}
	if state == "" {
		return StateDefault
	}
	return state
}

// HasPermission reads the current state without prompting.
func (g *Gate) HasPermission(ctx context.Context) bool {
	return g.State(ctx) == StateGranted
}

// RequestPermission prompts the user once and stores the outcome.
func (g *Gate) RequestPermission(ctx context.Context) (bool, error) {
	if g.prompter == nil {
		return false, fmt.Errorf("no permission prompter configured")
	}

	state, err := g.prompter.Prompt(ctx)
	if err != nil {
		return false, fmt.Errorf("permission prompt failed: %w", err)
	}
	if err := g.store.Save(ctx, state); err != nil {
		return state == StateGranted, fmt.Errorf("failed to save permission: %w", err)
	}

	log.Printf("[Permission] User answered prompt: %s", state)
	return state == StateGranted, nil
}

// Record stores a state reported by a client, e.g. after the user changed
// browser settings outside the app.
func (g *Gate) Record(ctx context.Context, state State) error {
	if _, err := ParseState(string(state)); err != nil {
		return err
	}
	return g.store.Save(ctx, state)
}

// Watch polls HasPermission every interval and calls onChange whenever the
// answer differs from the previous poll. The first poll always reports.
// It blocks until ctx is cancelled.
func (g *Gate) Watch(ctx context.Context, interval time.Duration, onChange func(granted bool)) {
	if interval <= 0 {
		log.Printf("[Permission] Watch disabled (interval %v)", interval)
		return
	}

	last := g.HasPermission(ctx)
	onChange(last)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			granted := g.HasPermission(ctx)
			if granted != last {
				last = granted
				onChange(granted)
			}
		}
	}
}
