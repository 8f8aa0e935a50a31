package store

// Timestamps are unix milliseconds in both dialects.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cameras (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	ip_address  TEXT NOT NULL DEFAULT '',
	port        INTEGER NOT NULL DEFAULT 554,
	stream_url  TEXT NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL DEFAULT 1,
	status      TEXT NOT NULL DEFAULT 'offline',
	last_seen   INTEGER,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cameras_ip ON cameras(ip_address);

CREATE TABLE IF NOT EXISTS ping_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id   TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
	received_at INTEGER NOT NULL,
	status      TEXT NOT NULL,
	response_ms REAL,
	message     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ping_history_received ON ping_history(received_at);

CREATE TABLE IF NOT EXISTS alerts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id       TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
	alert_type      TEXT NOT NULL,
	message         TEXT NOT NULL,
	severity        TEXT NOT NULL DEFAULT 'info',
	acknowledged    INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	acknowledged_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_alerts_camera_type ON alerts(camera_id, alert_type, created_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cameras (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	ip_address  TEXT NOT NULL DEFAULT '',
	port        INTEGER NOT NULL DEFAULT 554,
	stream_url  TEXT NOT NULL DEFAULT '',
	enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	status      TEXT NOT NULL DEFAULT 'offline',
	last_seen   BIGINT,
	created_at  BIGINT NOT NULL,
	updated_at  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cameras_ip ON cameras(ip_address);

CREATE TABLE IF NOT EXISTS ping_history (
	id          BIGSERIAL PRIMARY KEY,
	camera_id   TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
	received_at BIGINT NOT NULL,
	status      TEXT NOT NULL,
	response_ms DOUBLE PRECISION,
	message     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ping_history_received ON ping_history(received_at);

CREATE TABLE IF NOT EXISTS alerts (
	id              BIGSERIAL PRIMARY KEY,
	camera_id       TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
	alert_type      TEXT NOT NULL,
	message         TEXT NOT NULL,
	severity        TEXT NOT NULL DEFAULT 'info',
	acknowledged    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      BIGINT NOT NULL,
	acknowledged_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_alerts_camera_type ON alerts(camera_id, alert_type, created_at);
`
