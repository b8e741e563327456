// Package router handles user interaction with shown reminder notifications.
package router

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"lifebook-backend/pkg/notify"
)

// State is where a notification is in its lifecycle.
type State string

const (
	StateShown    State = "shown"
	StateClosing  State = "closing"
	StateRouting  State = "routing"
	StateTerminal State = "terminal"
)

// Action is what the router did for a click.
type Action string

const (
	ActionNone  Action = "none"
	ActionFocus Action = "focus"
	ActionOpen  Action = "open"
)

// Window is an open application window.
type Window interface {
	ID() string
	URL() string
	Focus(ctx context.Context) error
}

// WindowHost enumerates and opens application windows.
type WindowHost interface {
	// Windows lists open windows; includeUncontrolled adds windows the
	// background worker does not control yet.
	Windows(ctx context.Context, includeUncontrolled bool) ([]Window, error)
	OpenWindow(ctx context.Context, url string) error
}

// Event is a click or close reported for one notification.
type Event struct {
	Tag  string      `json:"tag"`
	Data notify.Data `json:"data"`
}

// Outcome records the path the notification took.
type Outcome struct {
	Tag      string  `json:"tag"`
	Action   Action  `json:"action"`
	WindowID string  `json:"window_id,omitempty"`
	URL      string  `json:"url,omitempty"`
	States   []State `json:"states"`
}

// Router focuses an existing app window or opens a new one on click.
type Router struct {
	host         WindowHost
	closer       notify.Closer
	origin       string
	defaultRoute string
}

// New creates a router. origin is the app origin ("https://host[:port]");
// defaultRoute is opened when no window is around.
func New(host WindowHost, closer notify.Closer, origin, defaultRoute string) *Router {
	if defaultRoute == "" {
		defaultRoute = "/"
	}
	return &Router{
		host:         host,
		closer:       closer,
		origin:       normalizeOrigin(origin),
		defaultRoute: defaultRoute,
	}
}

// HandleClick closes the notification, then focuses the first app window or
// opens a new one at the default route.
func (r *Router) HandleClick(ctx context.Context, ev Event) (Outcome, error) {
	out := Outcome{Tag: ev.Tag, Action: ActionNone, States: []State{StateShown, StateClosing}}

	if r.closer != nil && ev.Tag != "" {
		if err := r.closer.Close(ctx, ev.Tag); err != nil {
			log.Printf("[Router] Error closing notification %s: %v", ev.Tag, err)
		}
	}

	out.States = append(out.States, StateRouting)

	windows, err := r.host.Windows(ctx, true)
	if err != nil {
		log.Printf("[Router] Error listing windows: %v", err)
		windows = nil
	}

	for _, w := range windows {
		// A window reported by path only is a page of this app.
		if wo := normalizeOrigin(w.URL()); r.origin != "" && wo != "" && wo != r.origin {
			continue
		}
		if err := w.Focus(ctx); err != nil {
			log.Printf("[Router] Error focusing window %s: %v", w.ID(), err)
			continue
		}
		out.Action = ActionFocus
		out.WindowID = w.ID()
		out.URL = w.URL()
		log.Printf("[Router] Focused window %s for %s", w.ID(), ev.Tag)
		return finish(out), nil
	}

	// The notification's data.url is intentionally not used here
	if err := r.host.OpenWindow(ctx, r.defaultRoute); err != nil {
		return finish(out), fmt.Errorf("failed to open window: %w", err)
	}
	out.Action = ActionOpen
	out.URL = r.defaultRoute
	log.Printf("[Router] Opened %s for %s", r.defaultRoute, ev.Tag)
	return finish(out), nil
}

func finish(o Outcome) Outcome {
	o.States = append(o.States, StateTerminal)
	return o
}

// HandleClose is called when the user dismissed the notification.
func (r *Router) HandleClose(_ context.Context, ev Event) Outcome {
	log.Printf("[Router] Notification closed: %s", ev.Tag)
	return Outcome{Tag: ev.Tag, Action: ActionNone, States: []State{StateShown, StateTerminal}}
}

func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
