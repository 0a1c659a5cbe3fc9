package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edvin/bookwell/internal/model"
)

// WebhookSender POSTs alerts to a configured webhook endpoint, either as a
// generic JSON payload or as a Slack Block Kit message.
type WebhookSender struct {
	url      string
	template string // "generic" or "slack"
	client   *http.Client
}

// NewWebhookSender creates a webhook sender with a bounded timeout.
func NewWebhookSender(url, template string) *WebhookSender {
	return &WebhookSender{
		url:      url,
		template: template,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Send POSTs the alert. Non-2xx responses are errors.
func (s *WebhookSender) Send(ctx context.Context, alert model.Alert) error {
	var body []byte
	var err error

	switch s.template {
	case "slack":
		body, err = buildSlackPayload(alert)
	default:
		body, err = buildGenericPayload(alert)
	}
	if err != nil {
		return fmt.Errorf("build alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert POST to %s: %w", s.url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
}

// GenericAlertPayload is the default JSON payload for alert webhooks.
type GenericAlertPayload struct {
	Event string      `json:"event"`
	Alert model.Alert `json:"alert"`
}

func buildGenericPayload(alert model.Alert) ([]byte, error) {
	return json.Marshal(GenericAlertPayload{
		Event: "billing." + alert.Type,
		Alert: alert,
	})
}

// buildSlackPayload creates a Slack Block Kit message.
func buildSlackPayload(alert model.Alert) ([]byte, error) {
	emoji := ":warning:"
	if alert.Severity == model.SeverityCritical {
		emoji = ":rotating_light:"
	}

	fields := []map[string]interface{}{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Type:* %s", alert.Type),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", alert.Severity),
		},
	}
	if alert.OrganizationID != "" {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Organization:* %s", alert.OrganizationID),
		})
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]string{
				"type": "plain_text",
				"text": "Billing alert",
			},
		},
		{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("%s *%s*", emoji, alert.Title),
			},
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}

	if alert.Message != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("```%s```", alert.Message),
			},
		})
	}

	return json.Marshal(map[string]interface{}{
		"blocks": blocks,
	})
}
