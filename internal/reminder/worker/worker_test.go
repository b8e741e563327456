package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lifebook-backend/internal/reminder/dispatcher"
	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/internal/reminder/snapshot"
	"lifebook-backend/pkg/clock"
	"lifebook-backend/pkg/kv"
	"lifebook-backend/pkg/notify"
)

type allow bool

func (a allow) HasPermission(context.Context) bool { return bool(a) }

type countingClaimer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClaimer) Claim(context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 2
}

// blockingDispatcher holds DispatchAll until release is closed.
type blockingDispatcher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingDispatcher) DispatchAll(ctx context.Context, due []domain.Reminder) dispatcher.Report {
	close(b.entered)
	<-b.release
	return dispatcher.Report{Sent: len(due)}
}

func (b *blockingDispatcher) Show(context.Context, string, notify.Options) error { return nil }

func strPtr(s string) *string { return &s }

var nineAM = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func dueReminder(id string) domain.Reminder {
	return domain.Reminder{
		ID:                 id,
		Title:              "Reminder " + id,
		ReminderDate:       "2026-03-10",
		ReminderTime:       strPtr("09:00"),
		Status:             domain.StatusPending,
		EnableNotification: true,
	}
}

type fixture struct {
	worker *Worker
	store  *snapshot.Store
	cache  *kv.Memory
	tray   *notify.Memory
	claims *countingClaimer
}

func newFixture(t *testing.T, granted bool, cfg Config) *fixture {
	t.Helper()

	cache := kv.NewMemory()
	store := snapshot.NewStore(cache)
	tray := notify.NewMemory()
	dcfg := dispatcher.DefaultConfig()
	dcfg.Delay = 0
	disp := dispatcher.New(tray, allow(granted), dcfg)
	claims := &countingClaimer{}

	w := New(store, disp, allow(granted), clock.Fixed(nineAM), cache, claims, cfg)
	return &fixture{worker: w, store: store, cache: cache, tray: tray, claims: claims}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PeriodicSupported = false
	return cfg
}

// start runs the loop and returns a channel of finished checks.
func start(t *testing.T, w *Worker) <-chan Result {
	t.Helper()

	results := make(chan Result, 8)
	w.SetObserver(func(res Result, err error) {
		if errors.Is(err, ErrCheckInProgress) {
			return
		}
		if err != nil {
			t.Errorf("unexpected check error: %v", err)
		}
		select {
		case results <- res:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run returned %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for check")
		return Result{}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCheckAndNotifyUsesStoredSnapshot(t *testing.T) {
	f := newFixture(t, true, testConfig())
	ctx := context.Background()

	later := dueReminder("r2")
	later.ReminderTime = strPtr("18:00")
	if _, err := f.store.Put(ctx, []domain.Reminder{dueReminder("r1"), later}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	res, err := f.worker.CheckAndNotify(ctx)
	if err != nil {
		t.Fatalf("CheckAndNotify failed: %v", err)
	}
	if res.Checked != 2 || res.Due != 1 || res.Sent != 1 || res.SnapshotVersion != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := f.tray.Visible(); len(got) != 1 || got[0].Options.Data.ReminderID != "r1" {
		t.Errorf("Expected only r1 in the tray, got %+v", got)
	}
}

func TestCheckWithoutPermissionShowsNothing(t *testing.T) {
	f := newFixture(t, false, testConfig())
	ctx := context.Background()

	res, err := f.worker.CheckWith(ctx, []domain.Reminder{dueReminder("r1")})
	if err != nil {
		t.Fatalf("CheckWith failed: %v", err)
	}
	if !res.PermissionDenied || res.Sent != 0 {
		t.Errorf("Expected a denied check, got %+v", res)
	}
	if f.tray.ShownCount() != 0 {
		t.Errorf("Expected no notifications, got %d", f.tray.ShownCount())
	}
}

func TestEmptySnapshotIsANoop(t *testing.T) {
	f := newFixture(t, true, testConfig())

	res, err := f.worker.CheckAndNotify(context.Background())
	if err != nil {
		t.Fatalf("CheckAndNotify failed: %v", err)
	}
	if res.Checked != 0 || res.Due != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSingleFlight(t *testing.T) {
	cache := kv.NewMemory()
	store := snapshot.NewStore(cache)
	blocker := &blockingDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	w := New(store, blocker, allow(true), clock.Fixed(nineAM), cache, nil, testConfig())

	first := make(chan Result, 1)
	go func() {
		res, _ := w.CheckWith(context.Background(), []domain.Reminder{dueReminder("r1")})
		first <- res
	}()
	<-blocker.entered

	if _, err := w.CheckWith(context.Background(), []domain.Reminder{dueReminder("r2")}); !errors.Is(err, ErrCheckInProgress) {
		t.Fatalf("Expected ErrCheckInProgress, got %v", err)
	}

	close(blocker.release)
	if res := <-first; res.Sent != 1 {
		t.Errorf("Expected first check to finish with 1 sent, got %+v", res)
	}

	// the guard is released once the first check is done
	blocker.entered = make(chan struct{})
	blocker.release = make(chan struct{})
	close(blocker.release)
	if _, err := w.CheckWith(context.Background(), []domain.Reminder{dueReminder("r3")}); err != nil {
		t.Errorf("Expected a new check to run, got %v", err)
	}
}

func TestCheckRemindersMessageStoresThenChecks(t *testing.T) {
	f := newFixture(t, true, testConfig())
	results := start(t, f.worker)

	err := f.worker.Post(context.Background(), Message{
		Type:      MsgCheckReminders,
		Reminders: []domain.Reminder{dueReminder("r1")},
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	res := waitResult(t, results)
	if res.Trigger != string(MsgCheckReminders) || res.Sent != 1 || res.SnapshotVersion != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	snap := f.store.Get(context.Background())
	if len(snap.Reminders) != 1 || snap.Reminders[0].ID != "r1" {
		t.Errorf("Expected supplied list to be persisted, got %+v", snap)
	}
}

func TestStoreThenEmptyCheckReadsSnapshot(t *testing.T) {
	f := newFixture(t, true, testConfig())
	results := start(t, f.worker)
	ctx := context.Background()

	if err := f.worker.Post(ctx, Message{Type: MsgStoreReminders, Reminders: []domain.Reminder{dueReminder("r1"), dueReminder("r2")}}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if err := f.worker.Post(ctx, Message{Type: MsgCheckReminders}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	res := waitResult(t, results)
	if res.Checked != 2 || res.Sent != 2 {
		t.Errorf("Expected both stored reminders to be checked and sent, got %+v", res)
	}
}

func TestShowNotificationMessage(t *testing.T) {
	f := newFixture(t, true, testConfig())
	start(t, f.worker)

	err := f.worker.Post(context.Background(), Message{
		Type:    MsgShowNotification,
		Title:   "Xin chào",
		Options: notify.Options{Body: "test", Tag: "manual"},
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	waitFor(t, "notification", func() bool { return len(f.tray.Visible()) == 1 })
	if got := f.tray.Visible()[0]; got.Title != "Xin chào" || got.Options.Tag != "manual" {
		t.Errorf("unexpected notification %+v", got)
	}
}

func TestSyncTriggersCheck(t *testing.T) {
	f := newFixture(t, true, testConfig())
	if _, err := f.store.Put(context.Background(), []domain.Reminder{dueReminder("r1")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	results := start(t, f.worker)

	if err := f.worker.Sync(TagCheck); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	res := waitResult(t, results)
	if res.Trigger != TagCheck || res.Sent != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSyncRejectsUnknownTags(t *testing.T) {
	f := newFixture(t, true, testConfig())

	if err := f.worker.Sync("something-else"); !errors.Is(err, ErrUnknownSyncTag) {
		t.Errorf("Expected ErrUnknownSyncTag, got %v", err)
	}
	if err := f.worker.Sync(TagCheckPeriodic); !errors.Is(err, ErrUnknownSyncTag) {
		t.Errorf("Expected periodic tag to be rejected when unsupported, got %v", err)
	}
}

func TestPeriodicSync(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeriodicInterval = 10 * time.Millisecond
	f := newFixture(t, true, cfg)
	results := start(t, f.worker)

	res := waitResult(t, results)
	if res.Trigger != TagCheckPeriodic {
		t.Errorf("Expected a periodic check, got %+v", res)
	}
	if err := f.worker.Sync(TagCheckPeriodic); err != nil {
		t.Errorf("Expected periodic tag to be accepted, got %v", err)
	}
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t, true, testConfig())

	if err := f.worker.Post(context.Background(), Message{Type: "PING"}); err == nil {
		t.Error("Expected unknown message type to be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.worker.Run(ctx)
	}()
	cancel()
	<-done

	if err := f.worker.Post(context.Background(), Message{Type: MsgCheckReminders}); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped after Run returned, got %v", err)
	}
}

func TestInstallActivatesAndCleansCaches(t *testing.T) {
	f := newFixture(t, true, testConfig())
	ctx := context.Background()

	if _, err := f.store.Put(ctx, []domain.Reminder{dueReminder("r1")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for _, key := range []string{"lifebook-cache-v0/index.html", "lifebook-cache-v1/index.html", "other/app.js"} {
		if err := f.cache.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	if err := f.worker.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if f.worker.State() != StateActivated {
		t.Fatalf("Expected activated, got %s", f.worker.State())
	}
	if f.claims.calls != 1 {
		t.Errorf("Expected windows to be claimed once, got %d", f.claims.calls)
	}

	keys, _ := f.cache.Keys(ctx, "")
	want := map[string]bool{snapshot.Key: true, "lifebook-cache-v1/index.html": true}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d keys to survive, got %v", len(want), keys)
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected surviving key %s", k)
		}
	}

	if snap := f.store.Get(ctx); len(snap.Reminders) != 1 {
		t.Errorf("Expected snapshot to survive activation, got %+v", snap)
	}
}

func TestSkipWaitingMessageActivates(t *testing.T) {
	cfg := testConfig()
	cfg.SkipWaitingOnInstall = false
	f := newFixture(t, true, cfg)

	if err := f.worker.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if f.worker.State() != StateInstalled {
		t.Fatalf("Expected installed, got %s", f.worker.State())
	}

	start(t, f.worker)
	if err := f.worker.Post(context.Background(), Message{Type: MsgSkipWaiting}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	waitFor(t, "activation", func() bool { return f.worker.State() == StateActivated })
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"CHECK_REMINDERS","reminders":[{"id":"r1","title":"Tiền điện","type":"Expense","amount":250000,"reminder_date":"2026-03-10","reminder_time":"09:00","status":"pending","enable_notification":true}]}`))
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if msg.Type != MsgCheckReminders || len(msg.Reminders) != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}
	r := msg.Reminders[0]
	if r.Amount == nil || *r.Amount != 250000 || r.ReminderTime == nil || *r.ReminderTime != "09:00" {
		t.Errorf("unexpected reminder %+v", r)
	}

	if _, err := DecodeMessage([]byte(`{"type":"NOPE"}`)); err == nil {
		t.Error("Expected unknown type to be rejected")
	}
	if _, err := DecodeMessage([]byte(`not json`)); err == nil {
		t.Error("Expected malformed payload to be rejected")
	}
}

func TestExpenseReminderEndToEnd(t *testing.T) {
	cache := kv.NewMemory()
	tray := notify.NewMemory()
	dcfg := dispatcher.DefaultConfig()
	dcfg.Delay = 0
	eightAM := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	w := New(snapshot.NewStore(cache), dispatcher.New(tray, allow(true), dcfg), allow(true), clock.Fixed(eightAM), cache, nil, testConfig())
	results := start(t, w)

	amount := 100000.0
	r1 := domain.Reminder{
		ID:                 "r1",
		Title:              "Tiền điện",
		Type:               domain.TypeExpense,
		Amount:             &amount,
		ReminderDate:       "2026-03-10",
		ReminderTime:       strPtr("08:00"),
		Status:             domain.StatusPending,
		EnableNotification: true,
	}
	if err := w.Post(context.Background(), Message{Type: MsgCheckReminders, Reminders: []domain.Reminder{r1}}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	res := waitResult(t, results)
	if res.Due != 1 || res.Sent != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	shown := tray.Visible()
	if len(shown) != 1 {
		t.Fatalf("Expected one notification, got %d", len(shown))
	}
	n := shown[0]
	if n.Options.Tag != "reminder-r1" {
		t.Errorf("Expected tag reminder-r1, got %q", n.Options.Tag)
	}
	if !strings.Contains(n.Options.Body, "100.000") {
		t.Errorf("Expected body with 100.000, got %q", n.Options.Body)
	}
	if !strings.HasPrefix(n.Title, "💸") {
		t.Errorf("Expected expense title, got %q", n.Title)
	}
}

// stuckCache refuses deletes while fail is set.
type stuckCache struct {
	*kv.Memory
	mu   sync.Mutex
	fail bool
}

func (c *stuckCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	fail := c.fail
	c.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return c.Memory.Delete(ctx, key)
}

func TestFailedActivationCanBeRetried(t *testing.T) {
	ctx := context.Background()
	cache := &stuckCache{Memory: kv.NewMemory(), fail: true}
	if err := cache.Put(ctx, "lifebook-cache-v0/index.html", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	tray := notify.NewMemory()
	w := New(snapshot.NewStore(cache), dispatcher.New(tray, allow(true), dispatcher.DefaultConfig()), allow(true), clock.Fixed(nineAM), cache, nil, testConfig())

	if err := w.Install(ctx); err == nil {
		t.Fatal("Expected Install to report the cache error")
	}
	if w.State() != StateInstalled {
		t.Fatalf("Expected installed after failed activation, got %s", w.State())
	}

	cache.mu.Lock()
	cache.fail = false
	cache.mu.Unlock()

	start(t, w)
	if err := w.Post(ctx, Message{Type: MsgSkipWaiting}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	waitFor(t, "activation", func() bool { return w.State() == StateActivated })
}

func TestPendingSyncsAreMergedPerTag(t *testing.T) {
	f := newFixture(t, true, DefaultConfig())

	for _, tag := range []string{TagCheck, TagCheck, TagCheckPeriodic, TagCheckPeriodic} {
		if err := f.worker.Sync(tag); err != nil {
			t.Fatalf("Sync(%s) failed: %v", tag, err)
		}
	}

	if len(f.worker.syncs) != 2 {
		t.Fatalf("Expected one pending sync per tag, got %d", len(f.worker.syncs))
	}
	got := map[string]bool{<-f.worker.syncs: true, <-f.worker.syncs: true}
	if !got[TagCheck] || !got[TagCheckPeriodic] {
		t.Errorf("Expected both tags pending, got %v", got)
	}
}
