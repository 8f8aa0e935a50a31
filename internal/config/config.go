package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// Config represents the complete configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Database      DatabaseConfig      `yaml:"database"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Retention     RetentionConfig     `yaml:"retention"`
	Notifications NotificationsConfig `yaml:"notifications"`
	System        SystemConfig        `yaml:"system"`
	Cameras       []CameraConfig      `yaml:"cameras"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Port           int        `yaml:"port"`
	Authentication AuthConfig `yaml:"authentication"`
}

// AuthConfig defines authentication settings
type AuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Username       string `yaml:"username"`
	PasswordHash   string `yaml:"password_hash"`   // bcrypt hash
	SessionTimeout int    `yaml:"session_timeout"` // minutes (default: 60)
	SecretKey      string `yaml:"secret_key"`
}

// DashboardConfig drives the per-page timers.
type DashboardConfig struct {
	// StatusURL is fetched by the poller; empty reads the store directly.
	StatusURL          string        `yaml:"status_url"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	FeedPulseInterval  time.Duration `yaml:"feed_pulse_interval"`
	ClockInterval      time.Duration `yaml:"clock_interval"`
	DemoMode           bool          `yaml:"demo_mode"`
	SimulateInterval   time.Duration `yaml:"simulate_interval"`
	// SimulateProbability defaults to 0.2 only when absent; an explicit 0
	// keeps the simulator ticking without ever flipping a tile.
	SimulateProbability float64       `yaml:"simulate_probability"`
	NotificationTTL     time.Duration `yaml:"notification_ttl"`
	MobileBreakpoint    int           `yaml:"mobile_breakpoint"` // px
}

// DatabaseConfig selects the store backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// MonitorConfig defines the heartbeat watchdog
type MonitorConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	OfflineAfter  time.Duration `yaml:"offline_after"`
	RealertAfter  time.Duration `yaml:"realert_after"`
}

// RetentionConfig defines history cleanup
type RetentionConfig struct {
	Interval    time.Duration `yaml:"interval"`
	HistoryDays int           `yaml:"history_days"`
	AlertDays   int           `yaml:"alert_days"`
}

// NotificationsConfig defines where alerts are delivered
type NotificationsConfig struct {
	SlackWebhook string      `yaml:"slack_webhook"`
	MQTT         MQTTConfig  `yaml:"mqtt"`
	Kafka        KafkaConfig `yaml:"kafka"`
}

// MQTTConfig defines the broker connection used for heartbeats and alerts
type MQTTConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	HeartbeatTopic string `yaml:"heartbeat_topic"`
	AlertTopic     string `yaml:"alert_topic"`
}

// KafkaConfig defines the alert topic
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SystemConfig defines system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// CameraConfig seeds a camera into the store at startup
type CameraConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Location  string `yaml:"location"`
	IPAddress string `yaml:"ip_address"`
	Port      int    `yaml:"port"`
	StreamURL string `yaml:"stream_url"`
	Enabled   *bool  `yaml:"enabled"` // default: true
}

// Camera converts the entry to the shared camera type.
func (c CameraConfig) Camera() camera.Camera {
	enabled := c.Enabled == nil || *c.Enabled
	port := c.Port
	if port == 0 {
		port = 554
	}
	return camera.Camera{
		ID:        camera.ID(c.ID),
		Name:      c.Name,
		Location:  c.Location,
		IPAddress: c.IPAddress,
		Port:      port,
		StreamURL: c.StreamURL,
		Enabled:   enabled,
		Status:    camera.StatusOffline,
	}
}

// envOverrides are read from the environment after the file.
type envOverrides struct {
	DatabaseURL   string   `envconfig:"DATABASE_URL"`
	SessionSecret string   `envconfig:"SESSION_SECRET"`
	SlackWebhook  string   `envconfig:"SLACK_WEBHOOK"`
	LogLevel      string   `envconfig:"LOG_LEVEL"`
	Port          int      `envconfig:"PORT"`
	MQTTBroker    string   `envconfig:"MQTT_BROKER"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
}

const defaultSimulateProbability = 0.2

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Dashboard.SimulateProbability = defaultSimulateProbability
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. A .env file next to the
// working directory is loaded first, and environment variables override
// the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	cfg.Dashboard.SimulateProbability = defaultSimulateProbability
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ApplyEnv overrides file settings from the environment.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.InitWithOptions(&env, envconfig.Options{AllOptional: true}); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if env.DatabaseURL != "" {
		if strings.HasPrefix(env.DatabaseURL, "postgres://") || strings.HasPrefix(env.DatabaseURL, "postgresql://") {
			c.Database.Driver = "postgres"
			c.Database.DSN = env.DatabaseURL
		} else {
			c.Database.Driver = "sqlite"
			c.Database.Path = strings.TrimPrefix(env.DatabaseURL, "sqlite://")
		}
	}
	if env.SessionSecret != "" {
		c.Server.Authentication.SecretKey = env.SessionSecret
	}
	if env.SlackWebhook != "" {
		c.Notifications.SlackWebhook = env.SlackWebhook
	}
	if env.LogLevel != "" {
		c.System.LogLevel = env.LogLevel
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.MQTTBroker != "" {
		c.Notifications.MQTT.Enabled = true
		c.Notifications.MQTT.Broker = env.MQTTBroker
	}
	if len(env.KafkaBrokers) > 0 {
		c.Notifications.Kafka.Enabled = true
		c.Notifications.Kafka.Brokers = env.KafkaBrokers
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Authentication.SessionTimeout == 0 {
		c.Server.Authentication.SessionTimeout = 60
	}

	d := &c.Dashboard
	if d.StatusPollInterval == 0 {
		d.StatusPollInterval = 15 * time.Second
	}
	if d.FeedPulseInterval == 0 {
		d.FeedPulseInterval = 30 * time.Second
	}
	if d.ClockInterval == 0 {
		d.ClockInterval = time.Second
	}
	if d.SimulateInterval == 0 {
		d.SimulateInterval = 60 * time.Second
	}
	if d.NotificationTTL == 0 {
		d.NotificationTTL = 5 * time.Second
	}
	if d.MobileBreakpoint == 0 {
		d.MobileBreakpoint = 768
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "data/camwatch.db"
	}

	if c.Monitor.CheckInterval == 0 {
		c.Monitor.CheckInterval = time.Minute
	}
	if c.Monitor.OfflineAfter == 0 {
		c.Monitor.OfflineAfter = 2 * time.Minute
	}
	if c.Monitor.RealertAfter == 0 {
		c.Monitor.RealertAfter = time.Hour
	}

	if c.Retention.Interval == 0 {
		c.Retention.Interval = 24 * time.Hour
	}
	if c.Retention.HistoryDays == 0 {
		c.Retention.HistoryDays = 30
	}
	if c.Retention.AlertDays == 0 {
		c.Retention.AlertDays = 7
	}

	m := &c.Notifications.MQTT
	if m.ClientID == "" {
		m.ClientID = "camwatch"
	}
	if m.HeartbeatTopic == "" {
		m.HeartbeatTopic = "cameras/+/heartbeat"
	}
	if m.AlertTopic == "" {
		m.AlertTopic = "cameras/alerts"
	}
	if c.Notifications.Kafka.Topic == "" {
		c.Notifications.Kafka.Topic = "camera-alerts"
	}

	if c.System.LogLevel == "" {
		c.System.LogLevel = "info"
	}
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	auth := c.Server.Authentication
	if auth.Enabled {
		if auth.Username == "" {
			return fmt.Errorf("server.authentication.username is required when authentication is enabled")
		}
		if auth.PasswordHash == "" {
			return fmt.Errorf("server.authentication.password_hash is required when authentication is enabled")
		}
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	d := c.Dashboard
	if d.SimulateProbability < 0 || d.SimulateProbability > 1 {
		return fmt.Errorf("dashboard.simulate_probability must be between 0 and 1")
	}
	if d.ClockInterval < 100*time.Millisecond {
		return fmt.Errorf("dashboard.clock_interval must be at least 100ms")
	}

	if c.Monitor.OfflineAfter < c.Monitor.CheckInterval {
		return fmt.Errorf("monitor.offline_after must not be shorter than monitor.check_interval")
	}

	if c.Notifications.MQTT.Enabled && c.Notifications.MQTT.Broker == "" {
		return fmt.Errorf("notifications.mqtt.broker is required when mqtt is enabled")
	}
	if c.Notifications.Kafka.Enabled && len(c.Notifications.Kafka.Brokers) == 0 {
		return fmt.Errorf("notifications.kafka.brokers is required when kafka is enabled")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera #%d: id is required", i+1)
		}
		if cam.Name == "" {
			return fmt.Errorf("camera %s: name is required", cam.ID)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera %s: duplicate id", cam.ID)
		}
		seen[cam.ID] = true
	}

	return nil
}
