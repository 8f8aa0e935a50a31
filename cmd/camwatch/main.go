package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mmuteeullah/CamWatch/internal/auth"
	"github.com/mmuteeullah/CamWatch/internal/config"
	"github.com/mmuteeullah/CamWatch/internal/health"
	"github.com/mmuteeullah/CamWatch/internal/logging"
	"github.com/mmuteeullah/CamWatch/internal/mqtt"
	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/retention"
	"github.com/mmuteeullah/CamWatch/internal/store"
	"github.com/mmuteeullah/CamWatch/internal/webui"
)

var (
	version = "0.1.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "/etc/camwatch/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	testNotify := flag.Bool("test-notify", false, "Send a test alert to every configured sink and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("CamWatch v%s - camera monitoring dashboard\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logFile, err := logging.Setup(cfg.System)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logFile.Close()

	if *testNotify {
		sendTestNotification(cfg)
		return
	}

	log.Info().Msgf("Starting CamWatch v%s", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == "sqlite" && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create database directory")
		}
	}
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer st.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("Database ready")

	for _, camCfg := range cfg.Cameras {
		if err := st.UpsertCamera(ctx, camCfg.Camera()); err != nil {
			log.Fatal().Err(err).Str("camera", camCfg.ID).Msg("Failed to register camera")
		}
	}
	if len(cfg.Cameras) > 0 {
		log.Info().Msgf("Registered %d cameras from config", len(cfg.Cameras))
	}

	// MQTT is optional; the dashboard keeps working on HTTP heartbeats alone.
	var mqttClient *mqtt.Client
	if cfg.Notifications.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.Notifications.MQTT, logging.Component("mqtt"))
	}

	dispatcher, closeSinks := buildDispatcher(cfg, mqttClient)
	defer closeSinks()

	monitor := health.NewMonitor(version, st, dispatcher, cfg.Monitor, logging.Component("watchdog"))

	if mqttClient != nil {
		sub := mqtt.NewHeartbeatSubscriber(mqttClient.Native(), cfg.Notifications.MQTT.HeartbeatTopic, monitor, logging.Component("mqtt"))
		mqttClient.OnConnect(sub.Subscribe)
		monitor.RegisterCheck("mqtt", mqttClient.Check)
		if err := mqttClient.Connect(); err != nil {
			log.Warn().Err(err).Msg("Continuing without MQTT")
		} else {
			defer mqttClient.Close()
		}
	}

	sessions, err := auth.NewSessionManager(cfg.Server.Authentication)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise sessions")
	}

	diskPath := ""
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path != ":memory:" {
		diskPath = filepath.Dir(cfg.Database.Path)
	}
	cleaner := retention.NewCleaner(cfg.Retention, st, dispatcher, diskPath, logging.Component("retention"))

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){
		monitor.Run,
		cleaner.Run,
		func(ctx context.Context) { sessions.Run(ctx, 5*time.Minute) },
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	webServer, err := webui.NewServer(webui.Options{
		Config:   cfg,
		Store:    st,
		Monitor:  monitor,
		Sessions: sessions,
		Version:  version,
		Logger:   logging.Component("webui"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web UI")
	}
	webServer.Start()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Web UI shutdown")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All workers stopped gracefully")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Timeout waiting for workers to stop")
	}

	log.Info().Msg("CamWatch shutdown complete")
}

// buildDispatcher wires every configured alert sink. The returned func
// releases sink resources.
func buildDispatcher(cfg *config.Config, mqttClient *mqtt.Client) (*notify.Dispatcher, func()) {
	var (
		sinks   []notify.Sink
		closers []func() error
	)

	if cfg.Notifications.SlackWebhook != "" {
		sinks = append(sinks, notify.NewSlackSink(cfg.Notifications.SlackWebhook))
	}
	if mqttClient != nil {
		sinks = append(sinks, mqtt.NewAlertSink(mqttClient.Native(), cfg.Notifications.MQTT.AlertTopic))
	}
	if cfg.Notifications.Kafka.Enabled {
		kafka := notify.NewKafkaSink(cfg.Notifications.Kafka.Brokers, cfg.Notifications.Kafka.Topic)
		sinks = append(sinks, kafka)
		closers = append(closers, kafka.Close)
	}

	dispatcher := notify.NewDispatcher(logging.Component("alerts"), sinks...)
	for _, sink := range dispatcher.Sinks() {
		log.Info().Str("sink", sink.Name()).Msg("Alert sink enabled")
	}

	return dispatcher, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("Failed to close alert sink")
			}
		}
	}
}

// sendTestNotification delivers one alert synchronously to every sink
func sendTestNotification(cfg *config.Config) {
	var mqttClient *mqtt.Client
	if cfg.Notifications.MQTT.Enabled {
		c := mqtt.NewClient(cfg.Notifications.MQTT, logging.Component("mqtt"))
		if err := c.Connect(); err != nil {
			log.Error().Err(err).Msg("MQTT unavailable")
		} else {
			mqttClient = c
			defer c.Close()
		}
	}

	dispatcher, closeSinks := buildDispatcher(cfg, mqttClient)
	defer closeSinks()

	if len(dispatcher.Sinks()) == 0 {
		fmt.Println("No alert sinks configured (set notifications.slack_webhook, mqtt or kafka)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := dispatcher.Deliver(ctx, notify.Notification{
		Title:    "CamWatch Test",
		Message:  "Test alert from CamWatch. If you can read this, alerting works.",
		Severity: notify.SeverityInfo,
	})
	if err != nil {
		fmt.Printf("Test alert failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Test alert delivered to %d sink(s)\n", len(dispatcher.Sinks()))
}
