// Package publisher keeps the worker's snapshot fresh from the foreground.
package publisher

import (
	"context"
	"fmt"
	"log"
	"time"

	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/internal/reminder/worker"
)

// ReminderSource lists the current reminders.
type ReminderSource interface {
	ListReminders(ctx context.Context) ([]domain.Reminder, error)
}

// Poster delivers a message to the background worker.
type Poster interface {
	Post(ctx context.Context, msg worker.Message) error
}

// PermissionWatcher reports permission changes, see permission.Gate.Watch.
type PermissionWatcher interface {
	Watch(ctx context.Context, interval time.Duration, onChange func(granted bool))
}

type Config struct {
	Interval               time.Duration
	PermissionPollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:               time.Minute,
		PermissionPollInterval: 30 * time.Second,
	}
}

type Publisher struct {
	source  ReminderSource
	poster  Poster
	watcher PermissionWatcher
	config  Config
}

// New creates a publisher. watcher may be nil to skip permission polling.
func New(source ReminderSource, poster Poster, watcher PermissionWatcher, cfg Config) *Publisher {
	return &Publisher{
		source:  source,
		poster:  poster,
		watcher: watcher,
		config:  cfg,
	}
}

// PublishNow sends the current reminders to the worker. With check set the
// worker also runs a check against them right away.
func (p *Publisher) PublishNow(ctx context.Context, check bool) error {
	reminders, err := p.source.ListReminders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}

	msgType := worker.MsgStoreReminders
	if check {
		msgType = worker.MsgCheckReminders
	}
	if err := p.poster.Post(ctx, worker.Message{Type: msgType, Reminders: reminders}); err != nil {
		return fmt.Errorf("failed to post %s: %w", msgType, err)
	}

	log.Printf("[Publisher] Posted %s with %d reminders", msgType, len(reminders))
	return nil
}

// Run publishes immediately and then on every interval until ctx is done.
// When the permission becomes granted it publishes with a check.
func (p *Publisher) Run(ctx context.Context) {
	if p.watcher != nil {
		go p.watcher.Watch(ctx, p.config.PermissionPollInterval, func(granted bool) {
			if !granted {
				log.Println("[Publisher] Notification permission not granted")
				return
			}
			if err := p.PublishNow(ctx, true); err != nil {
				log.Printf("[Publisher] Error publishing after permission grant: %v", err)
			}
		})
	}

	p.publish(ctx)

	if p.config.Interval <= 0 {
		log.Println("[Publisher] No publish interval configured, published once")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Publisher] Stopped")
			return
		case <-ticker.C:
			p.publish(ctx)
		}
	}
}

func (p *Publisher) publish(ctx context.Context) {
	if err := p.PublishNow(ctx, false); err != nil {
		log.Printf("[Publisher] Error publishing reminders: %v", err)
	}
}
