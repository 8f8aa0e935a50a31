// Package camera holds the types shared by the dashboard, the watchdog and
// the store: camera identity, status values and the status record exchanged
// over /api/camera-status.
package camera

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the reported state of a camera.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusOnline, StatusOffline, StatusError}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusOnline, StatusOffline, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown camera status %q", s)
}

// Label returns the status with its first letter upper-cased ("Online").
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ID identifies a camera. Upstream backends send it either as a JSON string
// or as a number; both decode to the same ID.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("camera id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// StatusRecord is one entry of the camera status feed.
type StatusRecord struct {
	ID       ID
	Status   Status
	LastSeen *time.Time
}

type statusRecordJSON struct {
	ID       ID      `json:"id"`
	Status   string  `json:"status"`
	LastSeen *string `json:"last_seen,omitempty"`
}

func (r StatusRecord) MarshalJSON() ([]byte, error) {
	out := statusRecordJSON{ID: r.ID, Status: string(r.Status)}
	if r.LastSeen != nil {
		ts := r.LastSeen.UTC().Format(time.RFC3339)
		out.LastSeen = &ts
	}
	return json.Marshal(out)
}

func (r *StatusRecord) UnmarshalJSON(data []byte) error {
	var in statusRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	status, err := ParseStatus(in.Status)
	if err != nil {
		return fmt.Errorf("camera %s: %w", in.ID, err)
	}

	r.ID = in.ID
	r.Status = status
	r.LastSeen = nil
	if in.LastSeen != nil && *in.LastSeen != "" {
		ts, err := ParseTimestamp(*in.LastSeen)
		if err != nil {
			return fmt.Errorf("camera %s: last_seen: %w", in.ID, err)
		}
		r.LastSeen = &ts
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 timestamps and the zone-less ISO form
// (treated as UTC) that some backends emit.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Camera is a monitored device as stored and rendered by the dashboard.
type Camera struct {
	ID        ID         `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Location  string     `json:"location" yaml:"location"`
	IPAddress string     `json:"ip_address,omitempty" yaml:"ip_address"`
	Port      int        `json:"port" yaml:"port"`
	StreamURL string     `json:"stream_url,omitempty" yaml:"stream_url"`
	Enabled   bool       `json:"enabled" yaml:"enabled"`
	Status    Status     `json:"status" yaml:"-"`
	LastSeen  *time.Time `json:"last_seen,omitempty" yaml:"-"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// Record returns the camera's entry for the status feed.
func (c Camera) Record() StatusRecord {
	return StatusRecord{ID: c.ID, Status: c.Status, LastSeen: c.LastSeen}
}

// Heartbeat is a liveness report from a camera or DVR.
type Heartbeat struct {
	CameraID   ID        `json:"camera_id"`
	IP         string    `json:"ip"`
	Status     Status    `json:"status,omitempty"`
	ResponseMS float64   `json:"response_time,omitempty"`
	Message    string    `json:"message,omitempty"`
	ReceivedAt time.Time `json:"-"`
}
