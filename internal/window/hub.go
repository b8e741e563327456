// Package window tracks the application windows connected over SSE so the
// notification router can focus them.
package window

import (
	"context"
	"errors"
	"log"
	"sync"

	"lifebook-backend/internal/reminder/router"

	"github.com/google/uuid"
)

// Errors returned by Window.Focus.
var (
	ErrWindowBusy   = errors.New("window event buffer full")
	ErrWindowClosed = errors.New("window closed")
)

// Event is pushed to a window over its stream.
type Event struct {
	Name string
	Data map[string]interface{}
}

// Window is one open app window (browser tab or installed PWA).
type Window struct {
	id         string
	url        string
	controlled bool

	mu     sync.Mutex
	closed bool
	events chan Event
}

func (w *Window) ID() string  { return w.id }
func (w *Window) URL() string { return w.url }

// Events is the stream to forward to the client.
func (w *Window) Events() <-chan Event { return w.events }

// Focus asks the client to bring the window to the front.
func (w *Window) Focus(_ context.Context) error {
	return w.send(Event{Name: "focus", Data: map[string]interface{}{"window_id": w.id}})
}

func (w *Window) send(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWindowClosed
	}
	select {
	case w.events <- ev:
		return nil
	default:
		return ErrWindowBusy
	}
}

func (w *Window) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
}

// Hub keeps windows in registration order.
type Hub struct {
	mu      sync.RWMutex
	windows []*Window
	buffer  int
	opened  []string
}

func NewHub() *Hub {
	return &Hub{buffer: 16}
}

// Register adds a window at url. New windows are uncontrolled until the
// worker activates and claims them.
func (h *Hub) Register(url string) *Window {
	w := &Window{
		id:     uuid.New().String(),
		url:    url,
		events: make(chan Event, h.buffer),
	}

	h.mu.Lock()
	h.windows = append(h.windows, w)
	h.mu.Unlock()

	log.Printf("[Windows] Registered %s (%s)", w.id, url)
	return w
}

// Unregister removes the window and closes its stream.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, w := range h.windows {
		if w.id == id {
			h.windows = append(h.windows[:i], h.windows[i+1:]...)
			w.close()
			log.Printf("[Windows] Unregistered %s", id)
			return
		}
	}
}

// Windows implements router.WindowHost.
func (h *Hub) Windows(_ context.Context, includeUncontrolled bool) ([]router.Window, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]router.Window, 0, len(h.windows))
	for _, w := range h.windows {
		if w.controlled || includeUncontrolled {
			out = append(out, w)
		}
	}
	return out, nil
}

// OpenWindow records the request. The server cannot open a browser window;
// the click response carries the url back to the client that reported it.
func (h *Hub) OpenWindow(_ context.Context, url string) error {
	h.mu.Lock()
	h.opened = append(h.opened, url)
	h.mu.Unlock()

	log.Printf("[Windows] Requested new window at %s", url)
	return nil
}

// Opened returns the urls requested through OpenWindow.
func (h *Hub) Opened() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.opened...)
}

// Claim marks every open window as controlled and tells each about it.
func (h *Hub) Claim(_ context.Context) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, w := range h.windows {
		w.controlled = true
		if err := w.send(Event{Name: "controllerchange"}); err != nil {
			log.Printf("[Windows] Could not notify %s of claim: %v", w.id, err)
		}
	}
	return len(h.windows)
}
