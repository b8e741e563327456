// Package dispatcher turns due reminders into platform notifications.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/pkg/currency"
	"lifebook-backend/pkg/notify"
)

// ErrPermissionDenied is returned when the user has not granted notifications.
var ErrPermissionDenied = errors.New("notification permission not granted")

// PermissionChecker reports whether notifications may be shown.
type PermissionChecker interface {
	HasPermission(ctx context.Context) bool
}

// Config holds the presentation constants of reminder notifications.
type Config struct {
	TagNamespace string
	Icon         string
	Badge        string
	Vibrate      []int
	TargetRoute  string
	// Delay separates consecutive notifications in DispatchAll.
	Delay time.Duration
}

// DefaultConfig matches what the web client shipped with.
func DefaultConfig() Config {
	return Config{
		TagNamespace: "reminder",
		Icon:         "/icons/icon-192x192.png",
		Badge:        "/icons/badge-72x72.png",
		Vibrate:      []int{200, 100, 200},
		TargetRoute:  "/reminders",
		Delay:        500 * time.Millisecond,
	}
}

// Report summarizes one DispatchAll run.
type Report struct {
	Sent   int
	Failed int
}

// Dispatcher shows one notification per reminder, tagged so a repeat
// dispatch replaces the earlier notification.
type Dispatcher struct {
	sink   notify.Sink
	gate   PermissionChecker
	config Config
	// sleep waits between dispatches; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(sink notify.Sink, gate PermissionChecker, cfg Config) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		gate:   gate,
		config: cfg,
		sleep:  sleepContext,
	}
}

// Tag is the deduplication key of a reminder's notification.
func (d *Dispatcher) Tag(reminderID string) string {
	return d.config.TagNamespace + "-" + reminderID
}

// Compose builds the notification for a reminder without showing it.
func (d *Dispatcher) Compose(r domain.Reminder) notify.Notification {
	title, body := composeText(r)
	return notify.Notification{
		Title: title,
		Options: notify.Options{
			Body:               body,
			Icon:               d.config.Icon,
			Badge:              d.config.Badge,
			Tag:                d.Tag(r.ID),
			RequireInteraction: false,
			Silent:             false,
			Vibrate:            append([]int(nil), d.config.Vibrate...),
			Data: notify.Data{
				ReminderID: r.ID,
				URL:        d.config.TargetRoute,
			},
		},
	}
}

// Show is the low-level primitive: it shows any notification, reminder or not.
func (d *Dispatcher) Show(ctx context.Context, title string, opts notify.Options) error {
	if d.gate != nil && !d.gate.HasPermission(ctx) {
		return ErrPermissionDenied
	}
	if err := d.sink.Show(ctx, notify.Notification{Title: title, Options: opts}); err != nil {
		return fmt.Errorf("failed to show notification %q: %w", opts.Tag, err)
	}
	return nil
}

// Dispatch composes and shows the notification for one reminder.
func (d *Dispatcher) Dispatch(ctx context.Context, r domain.Reminder) (err error) {
	// A panicking sink must not take the worker down with it
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("dispatch of reminder %s panicked: %v", r.ID, p)
		}
	}()

	n := d.Compose(r)
	return d.Show(ctx, n.Title, n.Options)
}

// DispatchAll shows the due reminders one after another with a fixed delay
// in between. A failure is logged and the rest still go out. It stops early
// only when ctx is cancelled.
func (d *Dispatcher) DispatchAll(ctx context.Context, due []domain.Reminder) Report {
	var report Report

	for i, r := range due {
		if i > 0 && d.config.Delay > 0 {
			if err := d.sleep(ctx, d.config.Delay); err != nil {
				log.Printf("[Dispatcher] Stopped before %d remaining reminders: %v", len(due)-i, err)
				return report
			}
		}

		if err := d.Dispatch(ctx, r); err != nil {
			report.Failed++
			log.Printf("[Dispatcher] Error sending reminder %s: %v", r.ID, err)
			continue
		}
		report.Sent++
		log.Printf("[Dispatcher] Sent reminder '%s' (%s)", r.Title, d.Tag(r.ID))
	}

	return report
}

func composeText(r domain.Reminder) (title, body string) {
	if !r.IsFinancial() {
		return "📝 Ghi chú", r.Title
	}

	title = "💸 Nhắc nhở khoản chi"
	if r.IsIncome() {
		title = "💰 Nhắc nhở khoản thu"
	}
	body = fmt.Sprintf("%s: %s", r.Title, currency.FormatVND(*r.Amount))
	return title, body
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
