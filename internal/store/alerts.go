package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// Alert types raised by the watchdog.
const (
	AlertOffline    = "offline"
	AlertBackOnline = "back_online"
	AlertError      = "error"
)

// Alert is a stored camera alert.
type Alert struct {
	ID             int64      `json:"id"`
	CameraID       camera.ID  `json:"camera_id"`
	CameraName     string     `json:"camera_name,omitempty"`
	Type           string     `json:"alert_type"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity"`
	Acknowledged   bool       `json:"acknowledged"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	CameraID       camera.ID
	Unacknowledged bool
	Limit          uint64
}

// CreateAlert stores a and returns it with its ID and creation time set.
func (s *Store) CreateAlert(ctx context.Context, a Alert) (Alert, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if a.Severity == "" {
		a.Severity = "info"
	}

	q := s.sq.Insert("alerts").
		Columns("camera_id", "alert_type", "message", "severity", "acknowledged", "created_at").
		Values(a.CameraID, a.Type, a.Message, a.Severity, false, a.CreatedAt.UnixMilli())

	if s.dialect == DialectPostgres {
		query, args, err := q.Suffix("RETURNING id").ToSql()
		if err != nil {
			return a, fmt.Errorf("failed to create db request: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ID); err != nil {
			return a, fmt.Errorf("creating alert: %w", err)
		}
		return a, nil
	}

	query, args, err := q.ToSql()
	if err != nil {
		return a, fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return a, fmt.Errorf("creating alert: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return a, fmt.Errorf("reading alert id: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	q := s.sq.Select(
		"a.id", "a.camera_id", "COALESCE(c.name, '')", "a.alert_type", "a.message",
		"a.severity", "a.acknowledged", "a.created_at", "a.acknowledged_at",
	).
		From("alerts a").
		LeftJoin("cameras c ON c.id = a.camera_id").
		OrderBy("a.created_at DESC", "a.id DESC")

	if filter.CameraID != "" {
		q = q.Where(squirrel.Eq{"a.camera_id": filter.CameraID})
	}
	if filter.Unacknowledged {
		q = q.Where(squirrel.Eq{"a.acknowledged": false})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to create db request: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		var (
			a         Alert
			cameraID  string
			createdAt int64
			ackAt     sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &cameraID, &a.CameraName, &a.Type, &a.Message,
			&a.Severity, &a.Acknowledged, &createdAt, &ackAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.CameraID = camera.ID(cameraID)
		a.CreatedAt = time.UnixMilli(createdAt)
		if ackAt.Valid {
			ts := time.UnixMilli(ackAt.Int64)
			a.AcknowledgedAt = &ts
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert as read. Acknowledging twice keeps the
// first acknowledgement time.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64) error {
	query, args, err := s.sq.Update("alerts").
		Set("acknowledged", true).
		Set("acknowledged_at", squirrel.Expr("COALESCE(acknowledged_at, ?)", s.now().UnixMilli())).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("acknowledging alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasRecentAlert reports whether an alert of alertType was raised for id at
// or after since.
func (s *Store) HasRecentAlert(ctx context.Context, id camera.ID, alertType string, since time.Time) (bool, error) {
	query, args, err := s.sq.Select("COUNT(*)").From("alerts").
		Where(squirrel.Eq{"camera_id": id, "alert_type": alertType}).
		Where(squirrel.GtOrEq{"created_at": since.UnixMilli()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to create db request: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking recent alerts: %w", err)
	}
	return n > 0, nil
}

// PurgeAcknowledgedAlerts deletes acknowledged alerts created before cutoff.
func (s *Store) PurgeAcknowledgedAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sq.Delete("alerts").
		Where(squirrel.Eq{"acknowledged": true}).
		Where(squirrel.Lt{"created_at": cutoff.UnixMilli()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purging alerts: %w", err)
	}
	return res.RowsAffected()
}
