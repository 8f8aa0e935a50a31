package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/health"
)

// Ingester records heartbeats; the watchdog implements it.
type Ingester interface {
	Ingest(ctx context.Context, hb camera.Heartbeat) (camera.Camera, error)
}

// Subscriber is the part of the paho client HeartbeatSubscriber uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// HeartbeatSubscriber turns messages on cameras/<id>/heartbeat into
// watchdog heartbeats.
type HeartbeatSubscriber struct {
	client   Subscriber
	topic    string
	ingester Ingester
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewHeartbeatSubscriber creates a subscriber for topic, a pattern such as
// "cameras/+/heartbeat".
func NewHeartbeatSubscriber(client Subscriber, topic string, ingester Ingester, logger zerolog.Logger) *HeartbeatSubscriber {
	return &HeartbeatSubscriber{
		client:   client,
		topic:    topic,
		ingester: ingester,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Subscribe registers the heartbeat handler with the broker.
func (s *HeartbeatSubscriber) Subscribe() error {
	token := s.client.Subscribe(s.topic, 1, s.handleHeartbeat)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to heartbeat topic: %w", token.Error())
	}
	s.logger.Info().Str("topic", s.topic).Msg("subscribed to heartbeat topic")
	return nil
}

func (s *HeartbeatSubscriber) handleHeartbeat(_ mqtt.Client, msg mqtt.Message) {
	hb, err := ParseHeartbeat(msg.Topic(), msg.Payload())
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping heartbeat")
		return
	}
	hb.ReceivedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.ingester.Ingest(ctx, hb); err != nil {
		if errors.Is(err, health.ErrUnknownCamera) {
			s.logger.Warn().Str("camera", string(hb.CameraID)).Msg("heartbeat for unknown camera")
			return
		}
		s.logger.Error().Err(err).Str("camera", string(hb.CameraID)).Msg("failed to ingest heartbeat")
	}
}

// ParseHeartbeat builds a heartbeat from a message. The camera ID comes from
// the topic (cameras/<id>/heartbeat). The payload is either empty, a bare
// status word or a JSON heartbeat object.
func ParseHeartbeat(topic string, payload []byte) (camera.Heartbeat, error) {
	var hb camera.Heartbeat

	payload = bytes.TrimSpace(payload)
	switch {
	case len(payload) == 0:
	case payload[0] == '{':
		var body struct {
			Status       string  `json:"status"`
			ResponseTime float64 `json:"response_time"`
			Message      string  `json:"message"`
			IP           string  `json:"ip"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return hb, fmt.Errorf("decoding heartbeat: %w", err)
		}
		if body.Status != "" {
			status, err := camera.ParseStatus(body.Status)
			if err != nil {
				return hb, err
			}
			hb.Status = status
		}
		hb.ResponseMS = body.ResponseTime
		hb.Message = body.Message
		hb.IP = body.IP
	default:
		status, err := camera.ParseStatus(string(payload))
		if err != nil {
			return hb, err
		}
		hb.Status = status
	}

	hb.CameraID = extractCameraID(topic)
	if hb.CameraID == "" && hb.IP == "" {
		return hb, fmt.Errorf("no camera id in topic %q", topic)
	}
	return hb, nil
}

// extractCameraID returns the second topic level.
// Example: "cameras/front-door/heartbeat" -> "front-door"
func extractCameraID(topic string) camera.ID {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return camera.ID(parts[1])
	}
	return ""
}
