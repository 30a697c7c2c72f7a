// Package slack implements the NotificationSink port with Slack incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NotificationSink = (*Webhook)(nil)

// Webhook posts rendered messages to incoming-webhook URLs.
type Webhook struct {
	httpClient *http.Client
}

// NewWebhook creates a sink. A nil httpClient uses http.DefaultClient.
func NewWebhook(httpClient *http.Client) *Webhook {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Webhook{httpClient: httpClient}
}

// Send posts msg as a JSON payload to endpoint.
func (w *Webhook) Send(ctx context.Context, endpoint string, msg model.RenderedMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w: %w", driven.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	detail := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("posting webhook: %w: status %d: %s", driven.ErrUnauthorized, resp.StatusCode, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("posting webhook: %w: status %d: %s", driven.ErrRateLimited, resp.StatusCode, detail)
	default:
		return fmt.Errorf("posting webhook: status %d: %s", resp.StatusCode, detail)
	}
}
