package router

import (
	"context"
	"errors"
	"slices"
	"testing"

	"lifebook-backend/pkg/notify"
)

type fakeWindow struct {
	id, url  string
	focused  int
	focusErr error
}

func (w *fakeWindow) ID() string  { return w.id }
func (w *fakeWindow) URL() string { return w.url }
func (w *fakeWindow) Focus(context.Context) error {
	if w.focusErr != nil {
		return w.focusErr
	}
	w.focused++
	return nil
}

type fakeHost struct {
	windows             []*fakeWindow
	opened              []string
	includeUncontrolled bool
	listErr             error
}

func (h *fakeHost) Windows(_ context.Context, includeUncontrolled bool) ([]Window, error) {
	h.includeUncontrolled = includeUncontrolled
	if h.listErr != nil {
		return nil, h.listErr
	}
	out := make([]Window, len(h.windows))
	for i, w := range h.windows {
		out[i] = w
	}
	return out, nil
}

func (h *fakeHost) OpenWindow(_ context.Context, url string) error {
	h.opened = append(h.opened, url)
	return nil
}

func shownTray(tag string) *notify.Memory {
	m := notify.NewMemory()
	_ = m.Show(context.Background(), notify.Notification{Title: "x", Options: notify.Options{Tag: tag}})
	return m
}

func TestClickFocusesFirstMatchingWindow(t *testing.T) {
	other := &fakeWindow{id: "w0", url: "https://evil.example.com/"}
	first := &fakeWindow{id: "w1", url: "https://app.example.com/wallets"}
	second := &fakeWindow{id: "w2", url: "https://app.example.com/"}
	host := &fakeHost{windows: []*fakeWindow{other, first, second}}
	tray := shownTray("reminder-r1")

	r := New(host, tray, "https://app.example.com", "/")
	out, err := r.HandleClick(context.Background(), Event{Tag: "reminder-r1"})
	if err != nil {
		t.Fatalf("HandleClick: %v", err)
	}

	if out.Action != ActionFocus || out.WindowID != "w1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if first.focused != 1 || second.focused != 0 || other.focused != 0 {
		t.Errorf("focus counts: w0=%d w1=%d w2=%d", other.focused, first.focused, second.focused)
	}
	if !host.includeUncontrolled {
		t.Error("Expected uncontrolled windows to be included")
	}
	if len(tray.Visible()) != 0 {
		t.Error("Expected notification to be closed")
	}
	if len(host.opened) != 0 {
		t.Error("Expected no new window")
	}
}

func TestClickOpensDefaultRouteWithoutWindows(t *testing.T) {
	host := &fakeHost{}
	r := New(host, notify.NewMemory(), "https://app.example.com", "/")

	out, err := r.HandleClick(context.Background(), Event{
		Tag:  "reminder-r1",
		Data: notify.Data{ReminderID: "r1", URL: "/reminders"},
	})
	if err != nil {
		t.Fatalf("HandleClick: %v", err)
	}
	if out.Action != ActionOpen || out.URL != "/" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !slices.Equal(host.opened, []string{"/"}) {
		t.Errorf("Expected default route opened, got %v", host.opened)
	}
	want := []State{StateShown, StateClosing, StateRouting, StateTerminal}
	if !slices.Equal(out.States, want) {
		t.Errorf("states = %v, want %v", out.States, want)
	}
}

func TestClickSkipsWindowThatFailsToFocus(t *testing.T) {
	broken := &fakeWindow{id: "w1", url: "https://app.example.com/", focusErr: errors.New("gone")}
	ok := &fakeWindow{id: "w2", url: "https://app.example.com/"}
	host := &fakeHost{windows: []*fakeWindow{broken, ok}}

	out, _ := New(host, nil, "https://app.example.com", "/").HandleClick(context.Background(), Event{Tag: "t"})
	if out.WindowID != "w2" {
		t.Fatalf("Expected w2 focused, got %+v", out)
	}
}

func TestClickListErrorOpensWindow(t *testing.T) {
	host := &fakeHost{listErr: errors.New("hub down")}
	out, err := New(host, nil, "https://app.example.com", "").HandleClick(context.Background(), Event{Tag: "t"})
	if err != nil || out.Action != ActionOpen || out.URL != "/" {
		t.Fatalf("unexpected outcome %+v, %v", out, err)
	}
}

func TestClickOnClosedNotificationIsFine(t *testing.T) {
	host := &fakeHost{}
	tray := notify.NewMemory()
	r := New(host, tray, "https://app.example.com", "/")

	for i := 0; i < 2; i++ {
		if _, err := r.HandleClick(context.Background(), Event{Tag: "reminder-gone"}); err != nil {
			t.Fatalf("click %d: %v", i, err)
		}
	}
}

func TestCloseTakesNoRoute(t *testing.T) {
	host := &fakeHost{windows: []*fakeWindow{{id: "w1", url: "https://app.example.com/"}}}
	r := New(host, nil, "https://app.example.com", "/")

	out := r.HandleClose(context.Background(), Event{Tag: "reminder-r1"})
	if out.Action != ActionNone {
		t.Fatalf("unexpected action %s", out.Action)
	}
	if host.windows[0].focused != 0 || len(host.opened) != 0 {
		t.Fatal("close must not route")
	}
	if !slices.Equal(out.States, []State{StateShown, StateTerminal}) {
		t.Errorf("states = %v", out.States)
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"https://App.Example.com/path?q=1": "https://app.example.com",
		"http://localhost:5173/":           "http://localhost:5173",
		"not a url":                        "",
		"":                                 "",
	}
	for in, want := range tests {
		if got := normalizeOrigin(in); got != want {
			t.Errorf("normalizeOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClickFocusesPathOnlyWindow(t *testing.T) {
	other := &fakeWindow{id: "w0", url: "https://evil.example.com/"}
	root := &fakeWindow{id: "w1", url: "/"}
	host := &fakeHost{windows: []*fakeWindow{other, root, {id: "w2", url: "/reminders"}}}

	r := New(host, nil, "http://localhost:5173", "/")
	out, err := r.HandleClick(context.Background(), Event{Tag: "reminder-r1"})
	if err != nil {
		t.Fatalf("HandleClick: %v", err)
	}
	if out.Action != ActionFocus || out.WindowID != "w1" {
		t.Fatalf("Expected focus on w1, got %+v", out)
	}
	if len(host.opened) != 0 {
		t.Errorf("Expected no new window, got %v", host.opened)
	}
}
