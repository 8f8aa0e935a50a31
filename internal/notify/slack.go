package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var slackEmoji = map[Severity]string{
	SeverityInfo:    ":information_source:",
	SeveritySuccess: ":white_check_mark:",
	SeverityWarning: ":warning:",
	SeverityError:   ":rotating_light:",
}

// SlackMessage is the Slack incoming-webhook payload.
type SlackMessage struct {
	Text string `json:"text"`
}

// SlackSink posts alerts to a Slack incoming webhook.
type SlackSink struct {
	webhook string
	client  *http.Client
}

// NewSlackSink creates a sink for webhook.
func NewSlackSink(webhook string) *SlackSink {
	return &SlackSink{
		webhook: webhook,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackSink) Name() string { return "slack" }

// Send posts n to the webhook.
func (s *SlackSink) Send(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("%s *%s*\n%s", slackEmoji[n.Severity], n.Title, n.Message)
	if n.CameraID != "" {
		text += fmt.Sprintf("\nCamera: `%s`", n.CameraID)
	}

	payload, err := json.Marshal(SlackMessage{Text: text})
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
