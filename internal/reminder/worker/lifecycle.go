package worker

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lifebook-backend/internal/reminder/snapshot"
)

// State is the install/activate lifecycle of a worker release.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Install moves the worker to installed. With SkipWaitingOnInstall it
// activates straight away, otherwise it waits for SKIP_WAITING.
func (w *Worker) Install(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateParsed {
		w.mu.Unlock()
		return nil
	}
	w.state = StateInstalling
	w.mu.Unlock()

	log.Println("[Worker] Installing...")

	w.mu.Lock()
	w.state = StateInstalled
	w.mu.Unlock()

	if w.config.SkipWaitingOnInstall {
		return w.SkipWaiting(ctx)
	}
	log.Println("[Worker] Installed, waiting for SKIP_WAITING")
	return nil
}

// SkipWaiting activates an installed worker. It is a no-op in any other state.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateInstalled {
		w.mu.Unlock()
		return nil
	}
	w.state = StateActivating
	w.mu.Unlock()

	return w.activate(ctx, StateInstalled)
}

// Activate drops stale cache generations and claims open windows.
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	prev := w.state
	w.state = StateActivating
	w.mu.Unlock()

	return w.activate(ctx, prev)
}

// activate runs the activation steps. On failure the worker goes back to
// prev so SKIP_WAITING can retry.
func (w *Worker) activate(ctx context.Context, prev State) error {
	log.Println("[Worker] Activating...")

	removed, err := w.dropStaleCaches(ctx)
	if err != nil {
		w.mu.Lock()
		w.state = prev
		w.mu.Unlock()
		return fmt.Errorf("failed to clean caches: %w", err)
	}
	if removed > 0 {
		log.Printf("[Worker] Removed %d stale cache entries", removed)
	}

	claimed := 0
	if w.claimer != nil {
		claimed = w.claimer.Claim(ctx)
	}

	w.mu.Lock()
	w.state = StateActivated
	w.mu.Unlock()

	log.Printf("[Worker] Activated (generation: %s, claimed %d windows)", w.config.CacheGeneration, claimed)
	return nil
}

// dropStaleCaches deletes entries of cache generations other than the current
// one. The reminder snapshot namespace is always kept.
func (w *Worker) dropStaleCaches(ctx context.Context) (int, error) {
	if w.cache == nil {
		return 0, nil
	}

	keys, err := w.cache.Keys(ctx, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		namespace, _, _ := strings.Cut(key, "/")
		if namespace == snapshot.Namespace || namespace == w.config.CacheGeneration {
			continue
		}
		if err := w.cache.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}
