package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context) (State, error) { return "", errors.New("db down") }
func (brokenStore) Save(context.Context, State) error   { return errors.New("db down") }

func TestHasPermission(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		state State
		want  bool
	}{
		{StateGranted, true},
		{StateDenied, false},
		{StateDefault, false},
		{"", false},
	}
	for _, tt := range tests {
		g := NewGate(NewMemoryStore(tt.state), nil)
		if got := g.HasPermission(ctx); got != tt.want {
			t.Errorf("HasPermission with %q = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestHasPermissionStoreErrorIsDenied(t *testing.T) {
	g := NewGate(brokenStore{}, nil)
	if g.HasPermission(context.Background()) {
		t.Fatal("Expected no permission when store fails")
	}
}

func TestHasPermissionNeverPrompts(t *testing.T) {
	p := &StaticPrompter{Answer: StateGranted}
	g := NewGate(NewMemoryStore(StateDefault), p)

	_ = g.HasPermission(context.Background())
	if p.Calls != 0 {
		t.Fatalf("HasPermission prompted %d times", p.Calls)
	}
}

func TestRequestPermissionPromptsOncePerCall(t *testing.T) {
	ctx := context.Background()
	p := &StaticPrompter{Answer: StateGranted}
	store := NewMemoryStore(StateDefault)
	g := NewGate(store, p)

	granted, err := g.RequestPermission(ctx)
	if err != nil || !granted {
		t.Fatalf("RequestPermission = %v, %v", granted, err)
	}
	if p.Calls != 1 {
		t.Errorf("Expected 1 prompt, got %d", p.Calls)
	}
	if !g.HasPermission(ctx) {
		t.Error("Expected stored grant")
	}

	p.Answer = StateDenied
	granted, _ = g.RequestPermission(ctx)
	if granted || p.Calls != 2 {
		t.Errorf("second request: granted=%v calls=%d", granted, p.Calls)
	}
	if g.HasPermission(ctx) {
		t.Error("Expected denial to be stored")
	}
}

func TestRequestPermissionWithoutPrompter(t *testing.T) {
	g := NewGate(NewMemoryStore(StateDefault), nil)
	if _, err := g.RequestPermission(context.Background()); err == nil {
		t.Fatal("Expected error without prompter")
	}
}

func TestRecordValidates(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemoryStore(StateDefault), nil)

	if err := g.Record(ctx, "maybe"); err == nil {
		t.Error("Expected error for unknown state")
	}
	if err := g.Record(ctx, StateGranted); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !g.HasPermission(ctx) {
		t.Error("Expected recorded grant")
	}
}

func TestWatchReportsChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewMemoryStore(StateDefault)
	g := NewGate(store, nil)

	var mu sync.Mutex
	var seen []bool
	changed := make(chan struct{}, 8)

	go g.Watch(ctx, 5*time.Millisecond, func(granted bool) {
		mu.Lock()
		seen = append(seen, granted)
		mu.Unlock()
		changed <- struct{}{}
	})

	<-changed // initial report
	_ = store.Save(ctx, StateGranted)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not report the grant")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Fatalf("Expected [false true], got %v", seen)
	}
}

func TestParseAnswer(t *testing.T) {
	tests := map[string]State{
		"y":      StateGranted,
		" Yes ":  StateGranted,
		"có":     StateGranted,
		"n":      StateDenied,
		"không":  StateDenied,
		"":       StateDefault,
		"later?": StateDefault,
	}
	for in, want := range tests {
		if got := parseAnswer(in); got != want {
			t.Errorf("parseAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}
