// Package retention deletes old heartbeat history and acknowledged alerts
// and keeps an eye on the disk holding the database.
package retention

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/config"
	"github.com/mmuteeullah/CamWatch/internal/format"
	"github.com/mmuteeullah/CamWatch/internal/notify"
)

// Disk alert levels
const (
	DiskAlertNone      = 0
	DiskAlertWarning   = 1 // 80% full
	DiskAlertCritical  = 2 // 90% full
	DiskAlertEmergency = 3 // 95% full
)

// Store is what the cleaner purges.
type Store interface {
	PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeAcknowledgedAlerts(ctx context.Context, cutoff time.Time) (int64, error)
	SizeBytes() int64
}

// Notifier receives disk alerts.
type Notifier interface {
	Notify(n notify.Notification)
}

// Result summarises one cleanup pass.
type Result struct {
	History int64
	Alerts  int64
}

// Cleaner handles deletion of old records
type Cleaner struct {
	config   config.RetentionConfig
	store    Store
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	// diskPath is the directory whose filesystem is watched; empty skips
	// disk monitoring.
	diskPath       string
	diskUsage      func(path string) (used, available uint64, percentUsed float64, err error)
	lastAlertLevel int
	lastAlertTime  time.Time
}

// NewCleaner creates a new retention cleaner
func NewCleaner(cfg config.RetentionConfig, st Store, notifier Notifier, diskPath string, logger zerolog.Logger) *Cleaner {
	return &Cleaner{
		config:         cfg,
		store:          st,
		notifier:       notifier,
		logger:         logger,
		now:            time.Now,
		diskPath:       diskPath,
		diskUsage:      GetDiskUsage,
		lastAlertLevel: DiskAlertNone,
	}
}

// Run cleans up once immediately and then every interval until ctx is
// cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	c.logger.Info().Msgf("Starting retention (history: %d days, acknowledged alerts: %d days, interval: %v)",
		c.config.HistoryDays, c.config.AlertDays, c.config.Interval)

	c.tick(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Cleaner) tick(ctx context.Context) {
	if c.diskPath != "" {
		c.MonitorDiskUsage()
	}
	if _, err := c.Cleanup(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Cleanup error")
	}
}

// Cleanup removes history and acknowledged alerts past their retention.
func (c *Cleaner) Cleanup(ctx context.Context) (Result, error) {
	var res Result
	now := c.now()

	if c.config.HistoryDays > 0 {
		n, err := c.store.PurgeHistory(ctx, now.AddDate(0, 0, -c.config.HistoryDays))
		if err != nil {
			return res, fmt.Errorf("purging history: %w", err)
		}
		res.History = n
	}

	if c.config.AlertDays > 0 {
		n, err := c.store.PurgeAcknowledgedAlerts(ctx, now.AddDate(0, 0, -c.config.AlertDays))
		if err != nil {
			return res, fmt.Errorf("purging alerts: %w", err)
		}
		res.Alerts = n
	}

	if res.History > 0 || res.Alerts > 0 {
		c.logger.Info().Msgf("Cleanup complete: deleted %d heartbeats and %d alerts (database: %s)",
			res.History, res.Alerts, format.FileSize(c.store.SizeBytes()))
	} else {
		c.logger.Debug().Msg("Cleanup complete: nothing to delete")
	}
	return res, nil
}

// GetDiskUsage returns current disk usage statistics
func GetDiskUsage(path string) (used, available uint64, percentUsed float64, err error) {
	var stat syscall.Statfs_t

	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	available = stat.Bavail * uint64(stat.Bsize)
	used = total - available
	if total > 0 {
		percentUsed = 100.0 * float64(used) / float64(total)
	}

	return used, available, percentUsed, nil
}

// MonitorDiskUsage checks the database disk and alerts when it fills up.
// An alert is sent when the level rises, and repeated hourly while the disk
// stays above the warning level.
func (c *Cleaner) MonitorDiskUsage() {
	used, available, percentUsed, err := c.diskUsage(c.diskPath)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error checking disk usage")
		return
	}

	c.logger.Debug().Msgf("Disk usage: %.1f%% (%s used, %s available)",
		percentUsed, format.FileSize(int64(used)), format.FileSize(int64(available)))

	level := DiskAlertNone
	switch {
	case percentUsed >= 95:
		level = DiskAlertEmergency
	case percentUsed >= 90:
		level = DiskAlertCritical
	case percentUsed >= 80:
		level = DiskAlertWarning
	}

	now := c.now()
	if level > c.lastAlertLevel || (level > DiskAlertNone && now.Sub(c.lastAlertTime) > time.Hour) {
		c.sendDiskAlert(level, percentUsed, available)
		c.lastAlertTime = now
	}
	c.lastAlertLevel = level
}

func (c *Cleaner) sendDiskAlert(level int, percentUsed float64, available uint64) {
	var levelName string
	severity := notify.SeverityWarning

	switch level {
	case DiskAlertWarning:
		levelName = "WARNING"
	case DiskAlertCritical:
		levelName = "CRITICAL"
		severity = notify.SeverityError
	case DiskAlertEmergency:
		levelName = "EMERGENCY"
		severity = notify.SeverityError
	default:
		return
	}

	message := fmt.Sprintf("Usage: %.1f%%, available: %s, path: %s",
		percentUsed, format.FileSize(int64(available)), c.diskPath)
	c.logger.Warn().Msgf("Disk usage %s: %s", levelName, message)

	if c.notifier != nil {
		c.notifier.Notify(notify.Notification{
			Title:    "Disk Usage " + levelName,
			Message:  message,
			Severity: severity,
		})
	}
}
