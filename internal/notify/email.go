package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// BrevoEmailProvider sends transactional email via the Brevo API.
type BrevoEmailProvider struct {
	apiKey   string
	fromAddr string
	fromName string
	client   *http.Client
	logger   *slog.Logger
}

// NewBrevoEmailProvider creates a Brevo email provider.
func NewBrevoEmailProvider(apiKey, fromAddr, fromName string, logger *slog.Logger) *BrevoEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrevoEmailProvider{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

// Send sends an email, retrying transient failures.
func (b *BrevoEmailProvider) Send(ctx context.Context, to, subject, body string) error {
	reqBody := brevoSendRequest{
		Sender:  brevoContact{Email: b.fromAddr, Name: b.fromName},
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    body,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				"https://api.brevo.com/v3/smtp/email", bytes.NewReader(jsonData))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api-key", b.apiKey)

			resp, err := b.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Warn("email send retry", "attempt", n+1, "to", to, "error", err)
		}),
	)
}
