package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// DefaultHistoryPageSize is the page size of the heartbeat history.
const DefaultHistoryPageSize = 50

// HistoryEntry is one stored heartbeat.
type HistoryEntry struct {
	ID         int64         `json:"id"`
	CameraID   camera.ID     `json:"camera_id"`
	CameraName string        `json:"camera_name,omitempty"`
	ReceivedAt time.Time     `json:"received_at"`
	Status     camera.Status `json:"status"`
	ResponseMS *float64      `json:"response_time,omitempty"`
	Message    string        `json:"message"`
}

// HistoryFilter narrows ListHistory. Page is 1-based.
type HistoryFilter struct {
	CameraID camera.ID
	Page     int
	PerPage  int
}

// HistoryPage is one page of heartbeats, newest first.
type HistoryPage struct {
	Entries []HistoryEntry `json:"entries"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Total   int            `json:"total"`
	Pages   int            `json:"pages"`
}

// HasPrev reports whether a previous page exists.
func (p HistoryPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p HistoryPage) HasNext() bool { return p.Page < p.Pages }

// ListHistory returns one page of stored heartbeats, newest first.
func (s *Store) ListHistory(ctx context.Context, filter HistoryFilter) (HistoryPage, error) {
	page := HistoryPage{Page: max(filter.Page, 1), PerPage: filter.PerPage, Entries: make([]HistoryEntry, 0)}
	if page.PerPage <= 0 {
		page.PerPage = DefaultHistoryPageSize
	}

	count := s.sq.Select("COUNT(*)").From("ping_history h")
	if filter.CameraID != "" {
		count = count.Where(squirrel.Eq{"h.camera_id": filter.CameraID})
	}
	query, args, err := count.ToSql()
	if err != nil {
		return page, fmt.Errorf("failed to create db request: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("counting history: %w", err)
	}
	page.Pages = (page.Total + page.PerPage - 1) / page.PerPage

	q := s.sq.Select("h.id", "h.camera_id", "COALESCE(c.name, '')", "h.received_at", "h.status", "h.response_ms", "h.message").
		From("ping_history h").
		LeftJoin("cameras c ON c.id = h.camera_id").
		OrderBy("h.received_at DESC", "h.id DESC").
		Limit(uint64(page.PerPage)).
		Offset(uint64((page.Page - 1) * page.PerPage))
	if filter.CameraID != "" {
		q = q.Where(squirrel.Eq{"h.camera_id": filter.CameraID})
	}
	query, args, err = q.ToSql()
	if err != nil {
		return page, fmt.Errorf("failed to create db request: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e          HistoryEntry
			id, status string
			received   int64
			responseMS sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &id, &e.CameraName, &received, &status, &responseMS, &e.Message); err != nil {
			return page, fmt.Errorf("failed to scan history: %w", err)
		}
		e.CameraID = camera.ID(id)
		e.Status = camera.Status(status)
		e.ReceivedAt = time.UnixMilli(received)
		if responseMS.Valid {
			e.ResponseMS = &responseMS.Float64
		}
		page.Entries = append(page.Entries, e)
	}
	return page, rows.Err()
}
