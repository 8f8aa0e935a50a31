// Package store persists cameras, their heartbeat history and alerts in
// SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/config"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrCameraExists = errors.New("camera already exists")
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const cameraColumns = "id, name, location, ip_address, port, stream_url, enabled, status, last_seen, created_at, updated_at"

// Store is the SQL-backed persistence layer.
type Store struct {
	db      *sql.DB
	dialect Dialect
	sq      squirrel.StatementBuilderType
	path    string
	now     func() time.Time
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch Dialect(cfg.Driver) {
	case DialectPostgres:
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		db.SetMaxOpenConns(15)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping db: %w", err)
		}
		return New(ctx, db, DialectPostgres)

	case DialectSQLite, "":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		if cfg.Path == ":memory:" {
			// Every connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}
		s, err := New(ctx, db, DialectSQLite)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.path = cfg.Path
		return s, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// sqliteDSN carries the pragmas in the DSN so the driver applies them to
// every pooled connection, not only the first.
func sqliteDSN(path string) string {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	return dsn
}

// New wraps an open database and applies the dialect's schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	schema := sqliteSchema
	var placeholder squirrel.PlaceholderFormat = squirrel.Question
	if dialect == DialectPostgres {
		schema = postgresSchema
		placeholder = squirrel.Dollar
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{
		db:      db,
		dialect: dialect,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// SizeBytes returns the on-disk size of a SQLite database, or 0 when the
// size is not known (PostgreSQL, in-memory).
func (s *Store) SizeBytes() int64 {
	if s.path == "" || s.path == ":memory:" {
		return 0
	}
	var size int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, err := os.Stat(s.path + suffix); err == nil {
			size += info.Size()
		}
	}
	return size
}

// UpsertCamera inserts cam or updates its descriptive fields, keeping the
// recorded status and last heartbeat.
func (s *Store) UpsertCamera(ctx context.Context, cam camera.Camera) error {
	now := s.now().UnixMilli()
	query, args, err := s.sq.Insert("cameras").
		Columns("id", "name", "location", "ip_address", "port", "stream_url", "enabled", "status", "created_at", "updated_at").
		Values(cam.ID, cam.Name, cam.Location, cam.IPAddress, cam.Port, cam.StreamURL, cam.Enabled, statusOrOffline(cam.Status), now, now).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			ip_address = excluded.ip_address,
			port = excluded.port,
			stream_url = excluded.stream_url,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting camera %s: %w", cam.ID, err)
	}
	return nil
}

// CreateCamera inserts a new camera; an existing ID yields ErrCameraExists.
func (s *Store) CreateCamera(ctx context.Context, cam camera.Camera) error {
	now := s.now().UnixMilli()
	query, args, err := s.sq.Insert("cameras").
		Columns("id", "name", "location", "ip_address", "port", "stream_url", "enabled", "status", "created_at", "updated_at").
		Values(cam.ID, cam.Name, cam.Location, cam.IPAddress, cam.Port, cam.StreamURL, cam.Enabled, statusOrOffline(cam.Status), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("camera %s: %w", cam.ID, ErrCameraExists)
		}
		return fmt.Errorf("creating camera %s: %w", cam.ID, err)
	}
	return nil
}

// UpdateCamera overwrites the descriptive fields of an existing camera.
func (s *Store) UpdateCamera(ctx context.Context, cam camera.Camera) error {
	query, args, err := s.sq.Update("cameras").
		Set("name", cam.Name).
		Set("location", cam.Location).
		Set("ip_address", cam.IPAddress).
		Set("port", cam.Port).
		Set("stream_url", cam.StreamURL).
		Set("enabled", cam.Enabled).
		Set("updated_at", s.now().UnixMilli()).
		Where(squirrel.Eq{"id": cam.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating camera %s: %w", cam.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCamera loads one camera.
func (s *Store) GetCamera(ctx context.Context, id camera.ID) (camera.Camera, error) {
	return s.getCamera(ctx, squirrel.Eq{"id": id})
}

// FindCameraByIP loads the enabled camera with ip.
func (s *Store) FindCameraByIP(ctx context.Context, ip string) (camera.Camera, error) {
	return s.getCamera(ctx, squirrel.Eq{"ip_address": ip, "enabled": true})
}

func (s *Store) getCamera(ctx context.Context, where squirrel.Sqlizer) (camera.Camera, error) {
	query, args, err := s.sq.Select(cameraColumns).From("cameras").Where(where).Limit(1).ToSql()
	if err != nil {
		return camera.Camera{}, fmt.Errorf("failed to create db request: %w", err)
	}
	cam, err := scanCamera(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return camera.Camera{}, ErrNotFound
	}
	return cam, err
}

// ListCameras returns cameras ordered by name; enabledOnly filters out
// disabled ones.
func (s *Store) ListCameras(ctx context.Context, enabledOnly bool) ([]camera.Camera, error) {
	q := s.sq.Select(cameraColumns).From("cameras").OrderBy("name", "id")
	if enabledOnly {
		q = q.Where(squirrel.Eq{"enabled": true})
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

	cameras := make([]camera.Camera, 0)
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, cam)
	}
	return cameras, rows.Err()
}

// DeleteCamera removes a camera together with its history and alerts.
func (s *Store) DeleteCamera(ctx context.Context, id camera.ID) error {
	query, args, err := s.sq.Delete("cameras").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting camera %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordHeartbeat stores hb, marks the camera with the heartbeat's status
// and returns the status the camera had before.
func (s *Store) RecordHeartbeat(ctx context.Context, hb camera.Heartbeat) (camera.Status, error) {
	status := statusOrOnline(hb.Status)
	received := hb.ReceivedAt
	if received.IsZero() {
		received = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start heartbeat transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := s.sq.Select("status").From("cameras").Where(squirrel.Eq{"id": hb.CameraID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to create db request: %w", err)
	}
	var previous string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading camera %s: %w", hb.CameraID, err)
	}

	query, args, err = s.sq.Update("cameras").
		Set("status", status).
		Set("last_seen", received.UnixMilli()).
		Set("updated_at", s.now().UnixMilli()).
		Where(squirrel.Eq{"id": hb.CameraID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to create db request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("updating camera %s: %w", hb.CameraID, err)
	}

	var responseMS any
	if hb.ResponseMS > 0 {
		responseMS = hb.ResponseMS
	}
	query, args, err = s.sq.Insert("ping_history").
		Columns("camera_id", "received_at", "status", "response_ms", "message").
		Values(hb.CameraID, received.UnixMilli(), status, responseMS, hb.Message).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to create db request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("recording heartbeat for %s: %w", hb.CameraID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit heartbeat: %w", err)
	}
	return camera.Status(previous), nil
}

// SetStatus overwrites a camera's status without touching last_seen.
func (s *Store) SetStatus(ctx context.Context, id camera.ID, status camera.Status) error {
	query, args, err := s.sq.Update("cameras").
		Set("status", status).
		Set("updated_at", s.now().UnixMilli()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StatusRecords returns the status feed of every enabled camera.
func (s *Store) StatusRecords(ctx context.Context) ([]camera.StatusRecord, error) {
	cameras, err := s.ListCameras(ctx, true)
	if err != nil {
		return nil, err
	}
	records := make([]camera.StatusRecord, 0, len(cameras))
	for _, cam := range cameras {
		records = append(records, cam.Record())
	}
	return records, nil
}

// HistoryCount returns the number of heartbeats stored for id.
func (s *Store) HistoryCount(ctx context.Context, id camera.ID) (int, error) {
	query, args, err := s.sq.Select("COUNT(*)").From("ping_history").Where(squirrel.Eq{"camera_id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to create db request: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}

// PurgeHistory deletes heartbeats received before cutoff.
func (s *Store) PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sq.Delete("ping_history").Where(squirrel.Lt{"received_at": cutoff.UnixMilli()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to create db request: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purging history: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarises the monitored fleet.
type Stats struct {
	TotalCameras   int `json:"total_cameras"`
	Online         int `json:"online"`
	Offline        int `json:"offline"`
	Errored        int `json:"error"`
	UnreadAlerts   int `json:"unread_alerts"`
	HistoryEntries int `json:"history_entries"`
}

// Stats counts enabled cameras per status, unacknowledged alerts and stored
// heartbeats.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	query, args, err := s.sq.Select("status", "COUNT(*)").From("cameras").
		Where(squirrel.Eq{"enabled": true}).GroupBy("status").ToSql()
	if err != nil {
		return st, fmt.Errorf("failed to create db request: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return st, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("failed to scan stats: %w", err)
		}
		st.TotalCameras += n
		switch camera.Status(status) {
		case camera.StatusOnline:
			st.Online += n
		case camera.StatusError:
			st.Errored += n
		default:
			st.Offline += n
		}
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	query, args, err = s.sq.Select("COUNT(*)").From("alerts").Where(squirrel.Eq{"acknowledged": false}).ToSql()
	if err != nil {
		return st, fmt.Errorf("failed to create db request: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.UnreadAlerts); err != nil {
		return st, fmt.Errorf("counting alerts: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ping_history").Scan(&st.HistoryEntries); err != nil {
		return st, fmt.Errorf("counting history: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCamera(row rowScanner) (camera.Camera, error) {
	var (
		cam                  camera.Camera
		id, status           string
		lastSeen             sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&id, &cam.Name, &cam.Location, &cam.IPAddress, &cam.Port, &cam.StreamURL,
		&cam.Enabled, &status, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cam, err
		}
		return cam, fmt.Errorf("failed to scan camera: %w", err)
	}
	cam.ID = camera.ID(id)
	cam.Status = camera.Status(status)
	cam.CreatedAt = time.UnixMilli(createdAt)
	cam.UpdatedAt = time.UnixMilli(updatedAt)
	if lastSeen.Valid {
		ts := time.UnixMilli(lastSeen.Int64)
		cam.LastSeen = &ts
	}
	return cam, nil
}

func statusOrOffline(st camera.Status) camera.Status {
	if st == "" {
		return camera.StatusOffline
	}
	return st
}

func statusOrOnline(st camera.Status) camera.Status {
	if st == "" {
		return camera.StatusOnline
	}
	return st
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
