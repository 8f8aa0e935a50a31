package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mmuteeullah/CamWatch/internal/notify"
)

// Publisher is the part of the paho client AlertSink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// AlertSink publishes alerts as JSON on a topic.
type AlertSink struct {
	client Publisher
	topic  string
}

// NewAlertSink creates a sink publishing on topic.
func NewAlertSink(client Publisher, topic string) *AlertSink {
	return &AlertSink{client: client, topic: topic}
}

func (s *AlertSink) Name() string { return "mqtt" }

// Send publishes n with QoS 1 and waits for the broker, or for ctx.
func (s *AlertSink) Send(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}
