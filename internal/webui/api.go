package webui

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/format"
	"github.com/mmuteeullah/CamWatch/internal/health"
	"github.com/mmuteeullah/CamWatch/internal/store"
)

const (
	maxAlertLimit      = 500
	maxHistoryPageSize = 200
)

// handleCameraStatus returns the status feed the page sessions poll
func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.StatusRecords(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read camera statuses")
		writeError(w, http.StatusInternalServerError, "Failed to read camera status")
		return
	}
	if records == nil {
		records = []camera.StatusRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type statsResponse struct {
	store.Stats
	Database     store.Dialect `json:"database"`
	DatabaseSize string        `json:"database_size"`
	Version      string        `json:"version"`
}

// handleStats returns camera and alert counters
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load stats")
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:        stats,
		Database:     s.store.Dialect(),
		DatabaseSize: format.FileSize(s.store.SizeBytes()),
		Version:      s.version,
	})
}

// handleStatus returns the detailed health report
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Report(r.Context()))
}

// handleListAlerts returns alerts, newest first
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AlertFilter{
		CameraID:       camera.ID(q.Get("camera")),
		Unacknowledged: q.Get("unread") == "true",
		Limit:          100,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, maxAlertLimit)
	}

	alerts, err := s.store.ListAlerts(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list alerts")
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []store.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleAcknowledgeAlert marks one alert as read
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}

	err = s.store.AcknowledgeAlert(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Alert not found")
	case err != nil:
		s.logger.Error().Err(err).Int64("alert", id).Msg("failed to acknowledge alert")
		writeError(w, http.StatusInternalServerError, "Failed to acknowledge alert")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

type createCameraRequest struct {
	ID        camera.ID `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	IPAddress string    `json:"ip_address"`
	Port      int       `json:"port"`
	StreamURL string    `json:"stream_url"`
	Enabled   *bool     `json:"enabled"`
}

func (req createCameraRequest) validate() error {
	if strings.TrimSpace(string(req.ID)) == "" {
		return errors.New("id is required")
	}
	if strings.ContainsAny(string(req.ID), "/ ") {
		return errors.New("id must not contain spaces or slashes")
	}
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if req.IPAddress != "" && net.ParseIP(req.IPAddress) == nil {
		return errors.New("ip_address is not a valid IP address")
	}
	if req.Port < 0 || req.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// handleCreateCamera registers a new camera
func (s *Server) handleCreateCamera(w http.ResponseWriter, r *http.Request) {
	var req createCameraRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cam := camera.Camera{
		ID:        req.ID,
		Name:      strings.TrimSpace(req.Name),
		Location:  req.Location,
		IPAddress: req.IPAddress,
		Port:      req.Port,
		StreamURL: req.StreamURL,
		Enabled:   req.Enabled == nil || *req.Enabled,
		Status:    camera.StatusOffline,
		CreatedAt: s.now(),
	}
	if cam.Port == 0 {
		cam.Port = 554
	}

	err := s.store.CreateCamera(r.Context(), cam)
	switch {
	case errors.Is(err, store.ErrCameraExists):
		writeError(w, http.StatusConflict, "A camera with this id already exists")
		return
	case err != nil:
		s.logger.Error().Err(err).Str("camera", string(cam.ID)).Msg("failed to create camera")
		writeError(w, http.StatusInternalServerError, "Failed to create camera")
		return
	}

	created, err := s.store.GetCamera(r.Context(), cam.ID)
	if err != nil {
		created = cam
	}
	s.logger.Info().Str("camera", string(cam.ID)).Msgf("camera %s added", cam.Name)
	writeJSON(w, http.StatusCreated, created)
}

// handleDeleteCamera removes a camera with its history and alerts
func (s *Server) handleDeleteCamera(w http.ResponseWriter, r *http.Request) {
	id := camera.ID(chi.URLParam(r, "id"))

	err := s.store.DeleteCamera(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Camera not found")
	case err != nil:
		s.logger.Error().Err(err).Str("camera", string(id)).Msg("failed to delete camera")
		writeError(w, http.StatusInternalServerError, "Failed to delete camera")
	default:
		s.logger.Info().Str("camera", string(id)).Msg("camera deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleUpdateCamera edits a camera. The id comes from the path; an
// omitted enabled flag keeps the current value.
func (s *Server) handleUpdateCamera(w http.ResponseWriter, r *http.Request) {
	id := camera.ID(chi.URLParam(r, "id"))

	var req createCameraRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.ID != "" && req.ID != id {
		writeError(w, http.StatusBadRequest, "id cannot be changed")
		return
	}
	req.ID = id
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cam, err := s.store.GetCamera(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Camera not found")
		return
	case err != nil:
		s.logger.Error().Err(err).Str("camera", string(id)).Msg("failed to load camera")
		writeError(w, http.StatusInternalServerError, "Failed to update camera")
		return
	}

	cam.Name = strings.TrimSpace(req.Name)
	cam.Location = req.Location
	cam.IPAddress = req.IPAddress
	cam.StreamURL = req.StreamURL
	if req.Port != 0 {
		cam.Port = req.Port
	}
	if req.Enabled != nil {
		cam.Enabled = *req.Enabled
	}

	err = s.store.UpdateCamera(r.Context(), cam)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Camera not found")
		return
	case err != nil:
		s.logger.Error().Err(err).Str("camera", string(id)).Msg("failed to update camera")
		writeError(w, http.StatusInternalServerError, "Failed to update camera")
		return
	}

	updated, err := s.store.GetCamera(r.Context(), id)
	if err != nil {
		updated = cam
	}
	s.logger.Info().Str("camera", string(id)).Msg("camera updated")
	writeJSON(w, http.StatusOK, updated)
}

// historyFilter reads page, per_page and camera from the query string.
func historyFilter(r *http.Request) (store.HistoryFilter, error) {
	q := r.URL.Query()
	filter := store.HistoryFilter{CameraID: camera.ID(q.Get("camera")), Page: 1}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 || perPage > maxHistoryPageSize {
			return filter, errors.New("per_page must be between 1 and " + strconv.Itoa(maxHistoryPageSize))
		}
		filter.PerPage = perPage
	}
	return filter, nil
}

// handleListHistory returns one page of heartbeat history
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.store.ListHistory(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list history")
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type pingRequest struct {
	CameraID   camera.ID `json:"camera_id"`
	IP         string    `json:"ip"`
	Status     string    `json:"status"`
	ResponseMS float64   `json:"response_time"`
	Message    string    `json:"message"`
}

// handlePing records a heartbeat pushed by a camera or DVR
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON body required")
		return
	}
	if req.CameraID == "" && req.IP == "" {
		writeError(w, http.StatusBadRequest, "camera_id or ip required")
		return
	}

	hb := camera.Heartbeat{
		CameraID:   req.CameraID,
		IP:         req.IP,
		ResponseMS: req.ResponseMS,
		Message:    req.Message,
		ReceivedAt: s.now(),
	}
	if req.Status != "" {
		status, err := camera.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hb.Status = status
	}

	cam, err := s.monitor.Ingest(r.Context(), hb)
	switch {
	case errors.Is(err, health.ErrUnknownCamera):
		writeError(w, http.StatusNotFound, "Camera not found")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("failed to record heartbeat")
		writeError(w, http.StatusInternalServerError, "Failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "Heartbeat received",
		"camera_id": cam.ID,
		"timestamp": hb.ReceivedAt.UTC().Format(time.RFC3339),
	})
}
