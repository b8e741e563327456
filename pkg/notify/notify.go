// Package notify defines the notification payload shown on user devices and
// simple in-process sinks.
package notify

import "context"

// Data travels with the notification and comes back on click.
type Data struct {
	ReminderID string `json:"reminderId,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Options follow the web Notification options the app relies on.
type Options struct {
	Body               string `json:"body"`
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	Tag                string `json:"tag,omitempty"`
	RequireInteraction bool   `json:"requireInteraction"`
	Silent             bool   `json:"silent"`
	Vibrate            []int  `json:"vibrate,omitempty"`
	Data               Data   `json:"data"`
}

// Notification is one platform notification.
type Notification struct {
	Title   string  `json:"title"`
	Options Options `json:"options"`
}

// Sink shows notifications. A notification whose tag matches one already
// shown replaces it instead of stacking.
type Sink interface {
	Show(ctx context.Context, n Notification) error
}

// Closer dismisses a shown notification by tag. Closing an unknown or
// already closed tag is a no-op.
type Closer interface {
	Close(ctx context.Context, tag string) error
}
