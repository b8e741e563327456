package worker

import (
	"encoding/json"
	"fmt"

	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/pkg/notify"
)

// MessageType tags a message posted from the foreground.
type MessageType string

const (
	MsgSkipWaiting      MessageType = "SKIP_WAITING"
	MsgCheckReminders   MessageType = "CHECK_REMINDERS"
	MsgStoreReminders   MessageType = "STORE_REMINDERS"
	MsgShowNotification MessageType = "SHOW_NOTIFICATION"
)

// Valid reports whether the worker knows how to handle t.
func (t MessageType) Valid() bool {
	switch t {
	case MsgSkipWaiting, MsgCheckReminders, MsgStoreReminders, MsgShowNotification:
		return true
	}
	return false
}

// Message is the foreground to background protocol. Which fields are used
// depends on Type.
type Message struct {
	Type      MessageType       `json:"type"`
	Reminders []domain.Reminder `json:"reminders,omitempty"`
	Title     string            `json:"title,omitempty"`
	Options   notify.Options    `json:"options"`
}

// Background sync tags.
const (
	TagCheck         = "check-reminders"
	TagCheckPeriodic = "check-reminders-periodic"
)

// DecodeMessage parses a JSON message and rejects unknown types.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if !msg.Type.Valid() {
		return Message{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}
