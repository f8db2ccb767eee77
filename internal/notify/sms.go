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

// HTTPSMSProvider posts text messages to an SMS gateway's JSON API.
type HTTPSMSProvider struct {
	endpoint string
	apiKey   string
	sender   string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPSMSProvider creates an SMS provider targeting the given gateway.
func NewHTTPSMSProvider(endpoint, apiKey, sender string, logger *slog.Logger) *HTTPSMSProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSMSProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		sender:   sender,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type smsSendRequest struct {
	Sender string `json:"sender"`
	To     string `json:"to"`
	Text   string `json:"text"`
}

// Send sends a text message, retrying transient failures.
func (s *HTTPSMSProvider) Send(ctx context.Context, phone, text string) error {
	jsonData, err := json.Marshal(smsSendRequest{Sender: s.sender, To: phone, Text: text})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+s.apiKey)

			resp, err := s.client.Do(req)
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
			s.logger.Warn("sms send retry", "attempt", n+1, "error", err)
		}),
	)
}
