// Package trigger wakes the reminder worker from outside the process. A
// scheduler (Cloud Scheduler, a cron job) publishes to a Pub/Sub topic and
// every message becomes a sync of the worker.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// ErrMissingTag is returned for messages that carry no sync tag.
var ErrMissingTag = errors.New("message has no sync tag")

// Syncer receives sync requests, see worker.Worker.Sync.
type Syncer interface {
	Sync(tag string) error
}

// Payload is the JSON body accepted when the tag attribute is absent.
type Payload struct {
	Tag string `json:"tag"`
}

type Listener struct {
	client    *pubsub.Client
	syncer    Syncer
	topicName string
	subName   string

	mu sync.Mutex
	// Deduplication: Pub/Sub redelivers, skip anything not newer than the
	// last message handled for the same tag
	lastPublish map[string]time.Time
}

func NewListener(ctx context.Context, projectID, topicName, credentialsFile string, syncer Syncer) (*Listener, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	l := newListener(syncer, topicName)
	l.client = client
	return l, nil
}

func newListener(syncer Syncer, topicName string) *Listener {
	return &Listener{
		syncer:      syncer,
		topicName:   topicName,
		subName:     topicName + "-sub", // Convention: topic-sub
		lastPublish: make(map[string]time.Time),
	}
}

// Start ensures the subscription exists and handles messages until ctx is
// cancelled. Setup failures are logged and end the listener.
func (l *Listener) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting reminder trigger with topic: %s, subscription: %s", l.topicName, l.subName)

	sub, err := l.ensureSubscription(ctx)
	if err != nil {
		log.Printf("[PubSub] %v", err)
		return
	}

	log.Printf("[PubSub] Listening for triggers on subscription: %s", l.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := l.handleMessage(msg.Attributes, msg.Data, msg.PublishTime); err != nil {
			log.Printf("[PubSub] Dropping message %s: %v", msg.ID, err)
		}
		// No retries: the next scheduled trigger covers a dropped one
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (l *Listener) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := l.client.Subscription(l.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking subscription existence: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := l.client.Topic(l.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking topic existence: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", l.topicName)
	}

	sub, err = l.client.CreateSubscription(ctx, l.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	log.Printf("[PubSub] Created subscription: %s", l.subName)
	return sub, nil
}

func (l *Listener) handleMessage(attrs map[string]string, data []byte, published time.Time) error {
	tag := attrs["tag"]
	if tag == "" && len(data) > 0 {
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		tag = p.Tag
	}
	if tag == "" {
		return ErrMissingTag
	}

	l.mu.Lock()
	last, seen := l.lastPublish[tag]
	if seen && !published.After(last) {
		l.mu.Unlock()
		log.Printf("[PubSub] Skipping duplicate %s trigger (published %s)", tag, published.Format(time.RFC3339))
		return nil
	}
	l.lastPublish[tag] = published
	l.mu.Unlock()

	log.Printf("[PubSub] Trigger %s", tag)
	return l.syncer.Sync(tag)
}

func (l *Listener) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// TopicName extracts the short topic name from a full resource name
// ("projects/p/topics/t" -> "t").
func TopicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return topic
}
