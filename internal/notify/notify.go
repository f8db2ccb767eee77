// Package notify dispatches notifications to users over email, SMS and push.
// Delivery is best-effort: every provider failure is logged and swallowed so
// domain state transitions never depend on a channel being reachable.
package notify

import (
	"context"
	"log/slog"

	"github.com/retrouvtout/backend/internal/model"
)

// EmailProvider sends a single email.
type EmailProvider interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSProvider sends a single text message.
type SMSProvider interface {
	Send(ctx context.Context, phone, text string) error
}

// Dispatcher fans notifications out to the configured channels.
type Dispatcher struct {
	email  EmailProvider
	sms    SMSProvider
	hub    *Hub
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. Any provider may be nil, in which case
// that channel is silently skipped.
func NewDispatcher(email EmailProvider, sms SMSProvider, hub *Hub, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{email: email, sms: sms, hub: hub, logger: logger}
}

// SendEmail emails a user. No-op when the user's address is unverified.
func (d *Dispatcher) SendEmail(ctx context.Context, user *model.User, subject, body string) {
	if d.email == nil || user == nil {
		return
	}
	if !user.EmailVerified {
		d.logger.Debug("skipping email to unverified address", "user_id", user.ID)
		return
	}
	if err := d.email.Send(ctx, user.Email, subject, body); err != nil {
		d.logger.Error("email dispatch failed", "user_id", user.ID, "error", err)
	}
}

// SendSMS texts a phone number. No-op when the number is empty.
func (d *Dispatcher) SendSMS(ctx context.Context, phone, text string) {
	if d.sms == nil || phone == "" {
		return
	}
	if err := d.sms.Send(ctx, phone, text); err != nil {
		d.logger.Error("sms dispatch failed", "error", err)
	}
}

// SendPush delivers a push event to the user's live connections.
func (d *Dispatcher) SendPush(_ context.Context, userID int64, title, body, url string) {
	if d.hub == nil {
		return
	}
	d.hub.Publish(userID, Event{Type: "notification", Title: title, Body: body, URL: url})
}
