package notify

import (
	"context"
	"log/slog"
	"sync"
)

// MockEmailProvider records emails instead of sending them. Used in local
// development and tests.
type MockEmailProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []MockEmail
}

// MockEmail is one recorded email.
type MockEmail struct {
	To      string
	Subject string
	Body    string
}

// NewMockEmailProvider creates a recording email provider.
func NewMockEmailProvider(logger *slog.Logger) *MockEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockEmailProvider{logger: logger}
}

// Send records the email and logs it.
func (m *MockEmailProvider) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.sent = append(m.sent, MockEmail{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	m.logger.Info("MOCK EMAIL", "to", to, "subject", subject, "body_length", len(body))
	return nil
}

// Sent returns a copy of the recorded emails.
func (m *MockEmailProvider) Sent() []MockEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockEmail(nil), m.sent...)
}

// MockSMSProvider records text messages instead of sending them.
type MockSMSProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []MockSMS
}

// MockSMS is one recorded text message.
type MockSMS struct {
	Phone string
	Text  string
}

// NewMockSMSProvider creates a recording SMS provider.
func NewMockSMSProvider(logger *slog.Logger) *MockSMSProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSMSProvider{logger: logger}
}

// Send records the message and logs it.
func (m *MockSMSProvider) Send(_ context.Context, phone, text string) error {
	m.mu.Lock()
	m.sent = append(m.sent, MockSMS{Phone: phone, Text: text})
	m.mu.Unlock()
	m.logger.Info("MOCK SMS", "to", phone, "text_length", len(text))
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockSMSProvider) Sent() []MockSMS {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockSMS(nil), m.sent...)
}
