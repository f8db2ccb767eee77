package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/retrouvtout/backend/internal/model"
)

type failingEmail struct{}

func (failingEmail) Send(context.Context, string, string, string) error {
	return errors.New("smtp down")
}

func TestSendEmailSkipsUnverified(t *testing.T) {
	email := NewMockEmailProvider(nil)
	d := NewDispatcher(email, nil, nil, nil)

	d.SendEmail(context.Background(), &model.User{ID: 1, Email: "a@b.c"}, "subject", "body")
	if len(email.Sent()) != 0 {
		t.Error("unverified user should not receive email")
	}

	d.SendEmail(context.Background(), &model.User{ID: 1, Email: "a@b.c", EmailVerified: true}, "subject", "body")
	if len(email.Sent()) != 1 {
		t.Error("verified user should receive email")
	}
}

func TestSendSMSSkipsEmptyPhone(t *testing.T) {
	sms := NewMockSMSProvider(nil)
	d := NewDispatcher(nil, sms, nil, nil)

	d.SendSMS(context.Background(), "", "hello")
	if len(sms.Sent()) != 0 {
		t.Error("empty phone should be skipped")
	}

	d.SendSMS(context.Background(), "+38640123456", "hello")
	if len(sms.Sent()) != 1 {
		t.Error("SMS to a phone number should be sent")
	}
}

func TestSendEmailSwallowsProviderError(t *testing.T) {
	d := NewDispatcher(failingEmail{}, nil, nil, nil)

	// Must not panic or propagate.
	d.SendEmail(context.Background(), &model.User{ID: 1, Email: "a@b.c", EmailVerified: true}, "s", "b")
}

func TestSendPushWithoutHub(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)
	d.SendPush(context.Background(), 1, "title", "body", "/url")
}

func TestHubPublishWithoutConnections(t *testing.T) {
	hub := NewHub()
	hub.Publish(42, Event{Type: "notification", Title: "t"})
	if hub.Connections(42) != 0 {
		t.Error("no connections expected")
	}
}
