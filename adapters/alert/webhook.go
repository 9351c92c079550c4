package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dqmon/domain/quality"
	"dqmon/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

// WebhookConfig holds the endpoint receiving JSON alerts
type WebhookConfig struct {
	URL     string        `json:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// WebhookPayload is the JSON body posted for each alert
type WebhookPayload struct {
	Subject string                `json:"subject"`
	Text    string                `json:"text"`
	Record  *quality.ReportRecord `json:"record"`
}

// WebhookSender posts reports as JSON
type WebhookSender struct {
	url    string
	client *http.Client
}

var _ ports.AlertSender = (*WebhookSender)(nil)

// NewWebhookSender creates a webhook sender with a 10s default timeout
func NewWebhookSender(cfg WebhookConfig) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{url: cfg.URL, client: &http.Client{Timeout: timeout}}
}

func (w *WebhookSender) Channel() string { return "webhook" }

// Send posts the record. 4xx responses other than 429 are not retried.
func (w *WebhookSender) Send(ctx context.Context, rec *quality.ReportRecord) error {
	body, err := json.Marshal(WebhookPayload{
		Subject: Subject(rec),
		Text:    PlainBody(rec),
		Record:  rec,
	})
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to marshal webhook payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return replyError(reply)
	}
	statusErr := fmt.Errorf("webhook returned %s", resp.Status)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(statusErr)
	}
	return statusErr
}

// replyError reads chat-style replies such as {"ok":false,"error":"invalid_token"},
// which some endpoints return with a 2xx status
func replyError(reply []byte) error {
	if !gjson.ValidBytes(reply) {
		return nil
	}
	ok := gjson.GetBytes(reply, "ok")
	if ok.Exists() && ok.Type == gjson.False {
		msg := gjson.GetBytes(reply, "error").String()
		if msg == "" {
			msg = "unknown error"
		}
		return backoff.Permanent(fmt.Errorf("webhook rejected alert: %s", msg))
	}
	return nil
}
