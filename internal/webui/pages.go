package webui

import (
	"html/template"
	"net/http"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/page"
	"github.com/mmuteeullah/CamWatch/internal/store"
	"github.com/mmuteeullah/CamWatch/internal/view"
)

type pageData struct {
	Title       string
	Path        string
	Clock       string
	Styles      template.CSS
	Script      template.JS
	Breakpoint  int
	AuthEnabled bool
	DemoMode    bool

	NotificationTTL int64 // ms
	ErrorMessage    string

	Stats   store.Stats
	Tiles   []*view.Handle
	Rows    []cameraRow
	Alerts  []store.Alert
	History store.HistoryPage
	Cameras []camera.Camera
	Camera  string
}

type cameraRow struct {
	Camera camera.Camera
	Handle *view.Handle
}

func (s *Server) newPageData(r *http.Request, title string) pageData {
	return pageData{
		Title:       title,
		Path:        r.URL.Path,
		Clock:       view.Clock(s.now()),
		Styles:      template.CSS(styles),
		Script:      template.JS(pageScript),
		Breakpoint:  s.cfg.Dashboard.MobileBreakpoint,
		AuthEnabled: s.sessions.Enabled(),
		DemoMode:    s.cfg.Dashboard.DemoMode,

		NotificationTTL: s.cfg.Dashboard.NotificationTTL.Milliseconds(),
		ErrorMessage:    page.GenericErrorMessage,
	}
}

// handleDashboard serves the camera feed grid
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cams, err := s.store.ListCameras(ctx, true)
	if err != nil {
		s.serverError(w, "failed to list cameras", err)
		return
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.serverError(w, "failed to load stats", err)
		return
	}

	data := s.newPageData(r, "Dashboard")
	data.Stats = stats
	data.Tiles = view.BuildRegistry(cams, s.now(), view.SlotTile).Slot(view.SlotTile)
	s.render(w, "dashboard", data)
}

// handleCameras serves the camera management table
func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := s.store.ListCameras(r.Context(), false)
	if err != nil {
		s.serverError(w, "failed to list cameras", err)
		return
	}

	data := s.newPageData(r, "Cameras")
	registry := view.NewRegistry()
	now := s.now()
	for _, cam := range cams {
		data.Rows = append(data.Rows, cameraRow{Camera: cam, Handle: registry.Register(cam, view.SlotRow, now)})
	}
	s.render(w, "cameras", data)
}

// handleAlerts serves the alert history
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts(r.Context(), store.AlertFilter{Limit: 100})
	if err != nil {
		s.serverError(w, "failed to list alerts", err)
		return
	}

	data := s.newPageData(r, "Alerts")
	data.Alerts = alerts
	s.render(w, "alerts", data)
}

// handleHistory serves the paginated heartbeat history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	history, err := s.store.ListHistory(ctx, filter)
	if err != nil {
		s.serverError(w, "failed to list history", err)
		return
	}
	cams, err := s.store.ListCameras(ctx, false)
	if err != nil {
		s.serverError(w, "failed to list cameras", err)
		return
	}

	data := s.newPageData(r, "History")
	data.History = history
	data.Cameras = cams
	data.Camera = string(filter.CameraID)
	s.render(w, "history", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages[name].ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error().Err(err).Str("page", name).Msg("failed to render page")
	}
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error().Err(err).Msg(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
