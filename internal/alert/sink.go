// Package alert is the fire-and-forget notification sink for abuse events.
// Delivery is best effort: failures are logged, never propagated, and never
// block the request path.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink receives operational alerts.
type Sink interface {
	Notify(ctx context.Context, subject, message string)
}

// WebhookSink posts alerts as JSON to a configured webhook URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

func (s *WebhookSink) Notify(ctx context.Context, subject, message string) {
	payload, err := json.Marshal(map[string]string{
		"subject": subject,
		"message": message,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal alert payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		log.Warn().Err(err).Msg("failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("alert delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn().Int("status", resp.StatusCode).Str("subject", subject).Msg("alert endpoint returned error")
	}
}

// NopSink discards alerts. Used when no webhook is configured and in tests.
type NopSink struct{}

func (NopSink) Notify(context.Context, string, string) {}
