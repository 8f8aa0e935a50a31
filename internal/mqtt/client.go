// Package mqtt connects to the broker cameras report heartbeats to and
// publishes alerts back on it.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/config"
)

// Client manages the MQTT connection. Subscribing and publishing are done
// by HeartbeatSubscriber and AlertSink.
type Client struct {
	client mqtt.Client
	config config.MQTTConfig
	logger zerolog.Logger

	mu        sync.Mutex
	onConnect []func() error
}

// NewClient prepares a client for the configured broker. Nothing is dialled
// until Connect.
func NewClient(cfg config.MQTTConfig, logger zerolog.Logger) *Client {
	c := &Client{config: cfg, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		logger.Debug().Str("topic", msg.Topic()).Msg("unexpected message")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	c.client = mqtt.NewClient(opts)
	return c
}

// OnConnect registers fn to run after every successful connect, the first
// one and each automatic reconnect. The broker drops subscriptions of a
// clean session, so subscribers register here. Call it before Connect.
func (c *Client) OnConnect(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connect dials the broker and waits for the first connection.
func (c *Client) Connect() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	c.logger.Info().Str("broker", c.config.Broker).Msg("connected to MQTT broker")
	return nil
}

func (c *Client) handleConnect() {
	c.logger.Info().Msg("MQTT connection established")

	c.mu.Lock()
	hooks := append([]func() error(nil), c.onConnect...)
	c.mu.Unlock()

	for _, fn := range hooks {
		if err := fn(); err != nil {
			c.logger.Error().Err(err).Msg("MQTT connect hook failed")
		}
	}
}

// Native returns the underlying paho client.
func (c *Client) Native() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Check reports an error while the broker connection is down. It is
// registered as a health check.
func (c *Client) Check(context.Context) error {
	if !c.IsConnected() {
		return errors.New("not connected to broker")
	}
	return nil
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.logger.Info().Msg("MQTT client disconnected")
}
