package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/store"
)

// ErrUnknownCamera is returned by Ingest for heartbeats no camera matches.
var ErrUnknownCamera = errors.New("camera not found")

// Store is the persistence the watchdog needs.
type Store interface {
	GetCamera(ctx context.Context, id camera.ID) (camera.Camera, error)
	FindCameraByIP(ctx context.Context, ip string) (camera.Camera, error)
	ListCameras(ctx context.Context, enabledOnly bool) ([]camera.Camera, error)
	RecordHeartbeat(ctx context.Context, hb camera.Heartbeat) (camera.Status, error)
	SetStatus(ctx context.Context, id camera.ID, status camera.Status) error
	CreateAlert(ctx context.Context, a store.Alert) (store.Alert, error)
	HasRecentAlert(ctx context.Context, id camera.ID, alertType string, since time.Time) (bool, error)
	Ping(ctx context.Context) error
}

// Notifier delivers alerts to the configured sinks.
type Notifier interface {
	Notify(n notify.Notification)
}

// Ingest records a heartbeat. The camera is resolved by ID, or by IP when
// no ID is given. A camera coming back from offline or error raises a
// back_online alert.
func (m *Monitor) Ingest(ctx context.Context, hb camera.Heartbeat) (camera.Camera, error) {
	cam, err := m.resolve(ctx, hb)
	if err != nil {
		return cam, err
	}

	hb.CameraID = cam.ID
	if hb.ReceivedAt.IsZero() {
		hb.ReceivedAt = m.now()
	}
	if hb.Message == "" {
		hb.Message = "Heartbeat received"
	}

	previous, err := m.store.RecordHeartbeat(ctx, hb)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return cam, ErrUnknownCamera
		}
		return cam, fmt.Errorf("recording heartbeat: %w", err)
	}

	m.mu.Lock()
	m.heartbeats++
	m.mu.Unlock()

	m.logger.Debug().Str("camera", string(cam.ID)).Msgf("heartbeat from %s", cam.Name)

	status := hb.Status
	if status == "" {
		status = camera.StatusOnline
	}
	cam.Status = status
	cam.LastSeen = &hb.ReceivedAt

	if previous != camera.StatusOnline && status == camera.StatusOnline {
		m.logger.Info().Str("camera", string(cam.ID)).Msgf("camera %s back online", cam.Name)
		m.raise(ctx, cam, store.AlertBackOnline, notify.SeveritySuccess,
			"Camera Back Online", fmt.Sprintf("Camera %s%s is back online", cam.Name, ipSuffix(cam)))
	}
	if previous != camera.StatusError && status == camera.StatusError {
		m.raise(ctx, cam, store.AlertError, notify.SeverityError,
			"Camera Error", fmt.Sprintf("Camera %s%s reported an error: %s", cam.Name, ipSuffix(cam), hb.Message))
	}
	return cam, nil
}

func (m *Monitor) resolve(ctx context.Context, hb camera.Heartbeat) (camera.Camera, error) {
	var (
		cam camera.Camera
		err error
	)
	switch {
	case hb.CameraID != "":
		cam, err = m.store.GetCamera(ctx, hb.CameraID)
	case hb.IP != "":
		cam, err = m.store.FindCameraByIP(ctx, hb.IP)
	default:
		return cam, fmt.Errorf("heartbeat needs a camera id or ip")
	}
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Warn().Str("camera", string(hb.CameraID)).Str("ip", hb.IP).Msg("heartbeat from unknown camera")
		return cam, ErrUnknownCamera
	}
	if err != nil {
		return cam, fmt.Errorf("resolving camera: %w", err)
	}
	return cam, nil
}

// Check marks enabled cameras without a recent heartbeat as offline and
// returns how many went offline in this pass.
func (m *Monitor) Check(ctx context.Context) (int, error) {
	cameras, err := m.store.ListCameras(ctx, true)
	if err != nil {
		m.recordCheck(err)
		return 0, fmt.Errorf("listing cameras: %w", err)
	}

	now := m.now()
	cutoff := now.Add(-m.cfg.OfflineAfter)
	wentOffline := 0

	for _, cam := range cameras {
		reference := cam.CreatedAt
		if cam.LastSeen != nil {
			reference = *cam.LastSeen
		}
		if reference.After(cutoff) {
			continue
		}

		if cam.Status != camera.StatusOffline {
			if err := m.store.SetStatus(ctx, cam.ID, camera.StatusOffline); err != nil {
				m.logger.Error().Err(err).Str("camera", string(cam.ID)).Msg("failed to mark camera offline")
				continue
			}
			wentOffline++
			m.logger.Warn().Str("camera", string(cam.ID)).Msgf("camera %s went offline", cam.Name)
		}

		recent, err := m.store.HasRecentAlert(ctx, cam.ID, store.AlertOffline, now.Add(-m.cfg.RealertAfter))
		if err != nil {
			m.logger.Error().Err(err).Str("camera", string(cam.ID)).Msg("failed to check recent alerts")
			continue
		}
		if recent {
			continue
		}

		m.raise(ctx, cam, store.AlertOffline, notify.SeverityWarning,
			"Camera Offline", offlineMessage(cam, now))
	}

	m.recordCheck(nil)
	return wentOffline, nil
}

// Run checks every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().Msgf("Starting watchdog (interval: %v, offline after: %v, re-alert after: %v)",
		m.cfg.CheckInterval, m.cfg.OfflineAfter, m.cfg.RealertAfter)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil {
				m.logger.Error().Err(err).Msg("watchdog check failed")
			}
		}
	}
}

func (m *Monitor) raise(ctx context.Context, cam camera.Camera, alertType string, severity notify.Severity, title, message string) {
	alert, err := m.store.CreateAlert(ctx, store.Alert{
		CameraID:  cam.ID,
		Type:      alertType,
		Message:   message,
		Severity:  string(severity),
		CreatedAt: m.now(),
	})
	if err != nil {
		m.logger.Error().Err(err).Str("camera", string(cam.ID)).Msg("failed to store alert")
		return
	}

	if m.notifier == nil {
		return
	}
	m.notifier.Notify(notify.Notification{
		ID:        fmt.Sprintf("alert-%d", alert.ID),
		Title:     title,
		Message:   message,
		Severity:  severity,
		Class:     severity.AlertClass(),
		CameraID:  cam.ID,
		CreatedAt: alert.CreatedAt,
	})
}

func (m *Monitor) recordCheck(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCheck = m.now()
	m.lastCheckErr = err
}

func offlineMessage(cam camera.Camera, now time.Time) string {
	if cam.LastSeen == nil {
		return fmt.Sprintf("Camera %s%s has never reported", cam.Name, ipSuffix(cam))
	}
	since := now.Sub(*cam.LastSeen).Truncate(time.Second)
	return fmt.Sprintf("Camera %s%s is offline: no heartbeat for %v", cam.Name, ipSuffix(cam), since)
}

func ipSuffix(cam camera.Camera) string {
	if cam.IPAddress == "" {
		return ""
	}
	return " (" + cam.IPAddress + ")"
}
