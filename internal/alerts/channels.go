package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/keeperwatch/pricewatch/pkg/types"
)

// Channel is one delivery transport in the fallback chain. Transport
// specifics (SMTP credentials, messaging-provider auth) are out of scope;
// channels here implement only what the dispatch policy needs: whether a
// user has an address configured, and a best-effort send.
type Channel interface {
	Name() string
	Available(u types.User) bool
	Send(ctx context.Context, u types.User, subject, body string) error
}

// EmailChannel delivers to a user's email address. No SMTP transport is
// wired in; sending is logged, matching the spec's transport non-goal.
type EmailChannel struct {
	logger *slog.Logger
}

func NewEmailChannel(logger *slog.Logger) *EmailChannel {
	return &EmailChannel{logger: logger.With("channel", "email")}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Available(u types.User) bool { return u.Email != "" }

func (c *EmailChannel) Send(_ context.Context, u types.User, subject, body string) error {
	c.logger.Info("email dispatched", "to", u.Email, "subject", subject, "body", body)
	return nil
}

// MessagingChannel delivers to a user's messaging-provider handle. Same
// transport non-goal as EmailChannel.
type MessagingChannel struct {
	logger *slog.Logger
}

func NewMessagingChannel(logger *slog.Logger) *MessagingChannel {
	return &MessagingChannel{logger: logger.With("channel", "messaging")}
}

func (c *MessagingChannel) Name() string { return "messaging" }

func (c *MessagingChannel) Available(u types.User) bool { return u.MessagingHandle != "" }

func (c *MessagingChannel) Send(_ context.Context, u types.User, subject, body string) error {
	c.logger.Info("messaging dispatched", "to", u.MessagingHandle, "subject", subject, "body", body)
	return nil
}

// WebhookChannel POSTs a JSON payload to the user's configured webhook URL.
// This is the one channel whose wire format is in scope (the spec excludes
// SMTP/messaging-provider specifics but a webhook body is just JSON).
type WebhookChannel struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewWebhookChannel(logger *slog.Logger) *WebhookChannel {
	return &WebhookChannel{
		http:   resty.New().SetTimeout(10 * time.Second),
		logger: logger.With("channel", "webhook"),
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Available(u types.User) bool { return u.WebhookURL != "" }

func (c *WebhookChannel) Send(ctx context.Context, u types.User, subject, body string) error {
	payload, _ := json.Marshal(map[string]string{"subject": subject, "body": body})
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(u.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook post: status %s", resp.Status())
	}
	return nil
}
