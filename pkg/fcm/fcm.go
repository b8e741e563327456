package fcm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lifebook-backend/pkg/notify"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// maxMulticastTokens is the FCM limit for one multicast request.
const maxMulticastTokens = 500

// TokenSource lists the device tokens notifications are pushed to.
type TokenSource interface {
	ListTokens(ctx context.Context) ([]string, error)
	DeleteToken(ctx context.Context, token string) error
}

// Messenger is the part of the Firebase messaging client we use.
type Messenger interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client pushes reminder notifications through Firebase Cloud Messaging
type Client struct {
	messenger Messenger
	tokens    TokenSource
	// linkBase is prefixed to the notification url for the web push click link.
	linkBase string
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string, tokens TokenSource, linkBase string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized successfully")
	return NewClientWithMessenger(messagingClient, tokens, linkBase), nil
}

// NewClientWithMessenger wires an existing messenger, mostly for tests.
func NewClientWithMessenger(m Messenger, tokens TokenSource, linkBase string) *Client {
	return &Client{messenger: m, tokens: tokens, linkBase: strings.TrimRight(linkBase, "/")}
}

// Show pushes n to every registered device. Tokens FCM rejects are removed.
func (c *Client) Show(ctx context.Context, n notify.Notification) error {
	tokens, err := c.tokens.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Printf("[FCM] No device tokens registered, skipping %s", n.Options.Tag)
		return nil
	}

	var failedTokens []string
	var sent int
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))
		batch := tokens[start:end]

		response, err := c.messenger.SendEachForMulticast(ctx, c.buildMessage(batch, n))
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast message: %w", err)
		}
		sent += response.SuccessCount

		for i, resp := range response.Responses {
			if !resp.Success {
				failedTokens = append(failedTokens, batch[i])
				log.Printf("[FCM] Failed to send to token %s: %v", maskToken(batch[i]), resp.Error)
			}
		}
	}

	log.Printf("[FCM] Sent %s to %d devices", n.Options.Tag, sent)

	// Cleanup failed tokens
	for _, token := range failedTokens {
		if err := c.tokens.DeleteToken(ctx, token); err != nil {
			log.Printf("[FCM] Error deleting token %s: %v", maskToken(token), err)
		}
	}

	if sent == 0 {
		return fmt.Errorf("notification %s reached no device", n.Options.Tag)
	}
	return nil
}

// Close cannot recall a delivered push; the device closes it on click.
func (c *Client) Close(_ context.Context, tag string) error {
	return nil
}

func (c *Client) buildMessage(tokens []string, n notify.Notification) *messaging.MulticastMessage {
	opts := n.Options

	webpush := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title:              n.Title,
			Body:               opts.Body,
			Icon:               opts.Icon,
			Badge:              opts.Badge,
			Tag:                opts.Tag,
			RequireInteraction: opts.RequireInteraction,
			Silent:             opts.Silent,
			Vibrate:            opts.Vibrate,
			Data:               opts.Data,
		},
	}
	// Web push links must be absolute https URLs
	if strings.HasPrefix(c.linkBase, "https://") && opts.Data.URL != "" {
		webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: c.linkBase + opts.Data.URL}
	}

	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  opts.Body,
		},
		Data: map[string]string{
			"type":       "reminder",
			"tag":        opts.Tag,
			"reminderId": opts.Data.ReminderID,
			"url":        opts.Data.URL,
		},
		Webpush: webpush,
	}
}

func maskToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
