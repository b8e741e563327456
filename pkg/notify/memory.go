package notify

import (
	"context"
	"log"
	"sync"
)

// Memory models the platform notification tray: one visible entry per tag,
// in first-shown order. Untagged notifications always stack.
type Memory struct {
	mu      sync.Mutex
	visible []Notification
	shown   int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Show(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shown++
	if n.Options.Tag != "" {
		for i := range m.visible {
			if m.visible[i].Options.Tag == n.Options.Tag {
				m.visible[i] = n
				return nil
			}
		}
	}
	m.visible = append(m.visible, n)
	return nil
}

func (m *Memory) Close(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.visible {
		if m.visible[i].Options.Tag == tag {
			m.visible = append(m.visible[:i], m.visible[i+1:]...)
			return nil
		}
	}
	return nil
}

// Visible returns a copy of the notifications currently in the tray.
func (m *Memory) Visible() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.visible...)
}

// ShownCount counts every Show call, replacements included.
func (m *Memory) ShownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shown
}

// Log prints notifications instead of delivering them. Used when no push
// provider is configured.
type Log struct{}

func (Log) Show(_ context.Context, n Notification) error {
	log.Printf("[Notify] %s | %s (tag=%s, url=%s)", n.Title, n.Options.Body, n.Options.Tag, n.Options.Data.URL)
	return nil
}

func (Log) Close(_ context.Context, tag string) error {
	log.Printf("[Notify] Closed %s", tag)
	return nil
}
