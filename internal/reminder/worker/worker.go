// Package worker is the background side of the reminder scheduler. It owns
// the snapshot (all writes happen on its loop), reacts to foreground
// messages, one-shot syncs and the periodic sync, and runs the
// check-and-notify routine behind a single-flight guard.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"lifebook-backend/internal/reminder/dispatcher"
	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/internal/reminder/matcher"
	"lifebook-backend/pkg/clock"
	"lifebook-backend/pkg/kv"
	"lifebook-backend/pkg/notify"
)

var (
	// ErrCheckInProgress is returned when another check is still running.
	ErrCheckInProgress = errors.New("reminder check already in progress")
	// ErrUnknownSyncTag is returned by Sync for tags the worker never registered.
	ErrUnknownSyncTag = errors.New("unknown sync tag")
	// ErrStopped is returned by Post once Run has returned.
	ErrStopped = errors.New("worker stopped")
)

// SnapshotStore is the persisted reminder snapshot.
type SnapshotStore interface {
	Put(ctx context.Context, reminders []domain.Reminder) (domain.Snapshot, error)
	Get(ctx context.Context) domain.Snapshot
}

// Dispatcher shows notifications.
type Dispatcher interface {
	DispatchAll(ctx context.Context, due []domain.Reminder) dispatcher.Report
	Show(ctx context.Context, title string, opts notify.Options) error
}

// Claimer takes control of open application windows on activation.
type Claimer interface {
	Claim(ctx context.Context) int
}

// Config tunes the worker.
type Config struct {
	InboxSize int
	// PeriodicSupported tells whether the host can run periodic syncs at all.
	PeriodicSupported bool
	PeriodicInterval  time.Duration
	// CacheGeneration is the cache namespace of the current release; other
	// generations are dropped on activation.
	CacheGeneration      string
	SkipWaitingOnInstall bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		InboxSize:            32,
		PeriodicSupported:    true,
		PeriodicInterval:     time.Minute,
		CacheGeneration:      "lifebook-cache-v1",
		SkipWaitingOnInstall: true,
	}
}

// Result describes one check-and-notify run.
type Result struct {
	Trigger          string `json:"trigger"`
	SnapshotVersion  uint64 `json:"snapshot_version"`
	Checked          int    `json:"checked"`
	Due              int    `json:"due"`
	Sent             int    `json:"sent"`
	Failed           int    `json:"failed"`
	PermissionDenied bool   `json:"permission_denied,omitempty"`
}

// Observer is told about every finished check started by the loop.
type Observer func(res Result, err error)

// Worker is one background execution context.
type Worker struct {
	store      SnapshotStore
	dispatcher Dispatcher
	gate       dispatcher.PermissionChecker
	clock      clock.Source
	cache      kv.Store
	claimer    Claimer
	config     Config

	inbox   chan Message
	// syncs holds at most one pending request per tag; pending marks them.
	syncs   chan string
	pending map[string]bool
	done    chan struct{}

	checking atomic.Bool
	tasks    sync.WaitGroup
	observer Observer

	mu    sync.Mutex
	state State
}

// New creates a worker. cache and claimer may be nil when activation cleanup
// and window claiming are not wanted.
func New(
	store SnapshotStore,
	disp Dispatcher,
	gate dispatcher.PermissionChecker,
	clk clock.Source,
	cache kv.Store,
	claimer Claimer,
	cfg Config,
) *Worker {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 32
	}
	return &Worker{
		store:      store,
		dispatcher: disp,
		gate:       gate,
		clock:      clk,
		cache:      cache,
		claimer:    claimer,
		config:     cfg,
		inbox:      make(chan Message, cfg.InboxSize),
		syncs:      make(chan string, 2),
		pending:    make(map[string]bool),
		done:       make(chan struct{}),
		state:      StateParsed,
	}
}

// SetObserver registers a callback for checks started by the loop.
func (w *Worker) SetObserver(o Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observer = o
}

// Post hands a message to the worker. It blocks while the inbox is full.
func (w *Worker) Post(ctx context.Context, msg Message) error {
	if !msg.Type.Valid() {
		return fmt.Errorf("unknown message type %q", msg.Type)
	}

	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	select {
	case w.inbox <- msg:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync requests a background sync. A request for a tag that is already
// pending is merged into it.
func (w *Worker) Sync(tag string) error {
	switch tag {
	case TagCheck:
	case TagCheckPeriodic:
		if !w.periodicEnabled() {
			return fmt.Errorf("%w: %s (periodic sync not supported)", ErrUnknownSyncTag, tag)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSyncTag, tag)
	}

	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	w.mu.Lock()
	if w.pending[tag] {
		w.mu.Unlock()
		log.Printf("[Worker] Sync %s already pending", tag)
		return nil
	}
	w.pending[tag] = true
	w.mu.Unlock()

	w.syncs <- tag
	return nil
}

func (w *Worker) periodicEnabled() bool {
	return w.config.PeriodicSupported && w.config.PeriodicInterval > 0
}

// Run is the worker's event loop. It blocks until ctx is cancelled, then
// waits for in-flight checks.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)

	var periodic <-chan time.Time
	if w.periodicEnabled() {
		ticker := time.NewTicker(w.config.PeriodicInterval)
		defer ticker.Stop()
		periodic = ticker.C
		log.Printf("[Worker] Registered periodic sync %s (interval: %v)", TagCheckPeriodic, w.config.PeriodicInterval)
	} else {
		log.Printf("[Worker] Periodic sync not supported, skipping %s", TagCheckPeriodic)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("[Worker] Shutting down...")
			w.tasks.Wait()
			return nil
		case msg := <-w.inbox:
			w.handle(ctx, msg)
		case tag := <-w.syncs:
			w.mu.Lock()
			delete(w.pending, tag)
			w.mu.Unlock()
			w.startCheck(ctx, tag, nil)
		case <-periodic:
			w.startCheck(ctx, TagCheckPeriodic, nil)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case MsgSkipWaiting:
		if err := w.SkipWaiting(ctx); err != nil {
			log.Printf("[Worker] Activation failed: %v", err)
		}

	case MsgCheckReminders:
		if len(msg.Reminders) == 0 {
			w.startCheck(ctx, string(msg.Type), nil)
			return
		}
		snap, err := w.store.Put(ctx, msg.Reminders)
		if err != nil {
			log.Printf("[Worker] Error storing reminders: %v", err)
			snap = domain.Snapshot{Reminders: msg.Reminders}
		}
		w.startCheck(ctx, string(msg.Type), &snap)

	case MsgStoreReminders:
		snap, err := w.store.Put(ctx, msg.Reminders)
		if err != nil {
			log.Printf("[Worker] Error storing reminders: %v", err)
			return
		}
		log.Printf("[Worker] Stored %d reminders (version %d)", len(snap.Reminders), snap.Version)

	case MsgShowNotification:
		w.tasks.Add(1)
		go func() {
			defer w.tasks.Done()
			if err := w.dispatcher.Show(ctx, msg.Title, msg.Options); err != nil {
				log.Printf("[Worker] Error showing notification: %v", err)
			}
		}()

	default:
		log.Printf("[Worker] Ignoring unknown message type %q", msg.Type)
	}
}

// startCheck runs a check off the loop so the loop keeps taking messages.
func (w *Worker) startCheck(ctx context.Context, trigger string, supplied *domain.Snapshot) {
	w.tasks.Add(1)
	go func() {
		defer w.tasks.Done()

		res, err := w.check(ctx, trigger, supplied)
		if errors.Is(err, ErrCheckInProgress) {
			log.Printf("[Worker] Skipping %s: previous check still running", trigger)
		}

		w.mu.Lock()
		observer := w.observer
		w.mu.Unlock()
		if observer != nil {
			observer(res, err)
		}
	}()
}

// CheckAndNotify checks the stored snapshot and notifies due reminders.
func (w *Worker) CheckAndNotify(ctx context.Context) (Result, error) {
	return w.check(ctx, "manual", nil)
}

// CheckWith checks the supplied reminders instead of the stored snapshot.
// An empty list falls back to the stored snapshot.
func (w *Worker) CheckWith(ctx context.Context, reminders []domain.Reminder) (Result, error) {
	if len(reminders) == 0 {
		return w.check(ctx, "manual", nil)
	}
	return w.check(ctx, "manual", &domain.Snapshot{Reminders: reminders})
}

func (w *Worker) check(ctx context.Context, trigger string, supplied *domain.Snapshot) (Result, error) {
	res := Result{Trigger: trigger}

	if !w.checking.CompareAndSwap(false, true) {
		return res, ErrCheckInProgress
	}
	defer w.checking.Store(false)

	if w.gate != nil && !w.gate.HasPermission(ctx) {
		res.PermissionDenied = true
		log.Printf("[Worker] Notification permission not granted, skipping %s", trigger)
		return res, nil
	}

	var snap domain.Snapshot
	if supplied != nil {
		snap = *supplied
	} else {
		snap = w.store.Get(ctx)
	}
	res.SnapshotVersion = snap.Version
	res.Checked = len(snap.Reminders)

	due := matcher.DueReminders(snap.Reminders, w.clock.Now())
	res.Due = len(due)
	if len(due) == 0 {
		return res, nil
	}

	log.Printf("[Worker] Found %d due reminders (%s)", len(due), trigger)
	report := w.dispatcher.DispatchAll(ctx, due)
	res.Sent = report.Sent
	res.Failed = report.Failed
	return res, nil
}
