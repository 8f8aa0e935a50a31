package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
cameras:
  - id: cam-1
    name: Front Door
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Dashboard.StatusPollInterval != 15*time.Second {
		t.Errorf("poll interval = %v", cfg.Dashboard.StatusPollInterval)
	}
	if cfg.Dashboard.NotificationTTL != 5*time.Second {
		t.Errorf("notification ttl = %v", cfg.Dashboard.NotificationTTL)
	}
	if cfg.Dashboard.MobileBreakpoint != 768 {
		t.Errorf("breakpoint = %d", cfg.Dashboard.MobileBreakpoint)
	}
	if cfg.Dashboard.DemoMode {
		t.Error("demo mode should default to off")
	}
	if cfg.Monitor.OfflineAfter != 2*time.Minute || cfg.Monitor.RealertAfter != time.Hour {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Retention.HistoryDays != 30 || cfg.Retention.AlertDays != 7 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}

	cam := cfg.Cameras[0].Camera()
	if !cam.Enabled || cam.Port != 554 {
		t.Errorf("camera defaults = %+v", cam)
	}
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte(`
dashboard:
  status_poll_interval: 5s
  demo_mode: true
  simulate_probability: 0.5
monitor:
  offline_after: 10m
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dashboard.StatusPollInterval != 5*time.Second {
		t.Errorf("poll interval = %v", cfg.Dashboard.StatusPollInterval)
	}
	if !cfg.Dashboard.DemoMode || cfg.Dashboard.SimulateProbability != 0.5 {
		t.Errorf("dashboard = %+v", cfg.Dashboard)
	}
	if cfg.Monitor.OfflineAfter != 10*time.Minute {
		t.Errorf("offline after = %v", cfg.Monitor.OfflineAfter)
	}
}

func TestSimulateProbabilityZeroIsKept(t *testing.T) {
	cfg, err := Parse([]byte("dashboard:\n  demo_mode: true\n  simulate_probability: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dashboard.SimulateProbability != 0 {
		t.Errorf("explicit zero probability = %v", cfg.Dashboard.SimulateProbability)
	}

	cfg, err = Parse([]byte("dashboard:\n  demo_mode: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dashboard.SimulateProbability != 0.2 {
		t.Errorf("default probability = %v", cfg.Dashboard.SimulateProbability)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cam:secret@db:5432/camwatch")
	t.Setenv("PORT", "9090")
	t.Setenv("SLACK_WEBHOOK", "https://hooks.example/abc")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://cam:secret@db:5432/camwatch" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Notifications.SlackWebhook != "https://hooks.example/abc" {
		t.Errorf("slack = %q", cfg.Notifications.SlackWebhook)
	}
	if !cfg.Notifications.Kafka.Enabled || len(cfg.Notifications.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v", cfg.Notifications.Kafka)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"auth without user", func(c *Config) {
			c.Server.Authentication.Enabled = true
			c.Server.Authentication.PasswordHash = "x"
		}},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"probability", func(c *Config) { c.Dashboard.SimulateProbability = 1.5 }},
		{"mqtt without broker", func(c *Config) { c.Notifications.MQTT.Enabled = true }},
		{"duplicate camera", func(c *Config) {
			c.Cameras = []CameraConfig{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}
		}},
		{"camera without name", func(c *Config) { c.Cameras = []CameraConfig{{ID: "a"}} }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
