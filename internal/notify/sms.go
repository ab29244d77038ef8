package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSMSSender posts each message as JSON to a tenant-configured gateway
// URL. It implements SMSSender.
type WebhookSMSSender struct {
	URL  string
	http *http.Client
}

// NewWebhookSMSSender wires a sender against the given webhook URL with a
// bounded-timeout client.
func NewWebhookSMSSender(url string, timeout time.Duration) *WebhookSMSSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSMSSender{
		URL:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// SendSMS posts the message and decodes the gateway's per-message result.
// A non-2xx status is an error; a 2xx with success=false is a delivery
// failure the caller can log without treating the gateway as down.
func (w *WebhookSMSSender) SendSMS(ctx context.Context, msg SMS) (*SMSResult, error) {
	if w.URL == "" {
		return nil, fmt.Errorf("notify: sms webhook not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"to":           msg.To,
		"body":         msg.Body,
		"tenant_id":    msg.TenantID,
		"candidate_id": msg.CandidateID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notify: sms webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("notify: sms webhook returned %d: %s", resp.StatusCode, string(text))
	}

	var out SMSResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// Gateways that answer 2xx with an empty body still delivered.
		return &SMSResult{Success: true}, nil
	}
	return &out, nil
}
