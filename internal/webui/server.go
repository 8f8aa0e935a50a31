// Package webui serves the CamWatch dashboard: HTML pages, the JSON API and
// the WebSocket each page session is driven over.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/auth"
	"github.com/mmuteeullah/CamWatch/internal/config"
	"github.com/mmuteeullah/CamWatch/internal/format"
	"github.com/mmuteeullah/CamWatch/internal/health"
	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/page"
	"github.com/mmuteeullah/CamWatch/internal/store"
)

// Options wire a Server to the rest of the application.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Monitor  *health.Monitor
	Sessions *auth.SessionManager
	Version  string
	Logger   zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server represents the web UI server
type Server struct {
	cfg      *config.Config
	store    *store.Store
	monitor  *health.Monitor
	sessions *auth.SessionManager
	version  string
	logger   zerolog.Logger
	now      func() time.Time

	pages    map[string]*template.Template
	login    *template.Template
	fetcher  page.StatusFetcher
	upgrader websocket.Upgrader

	httpServer *http.Server
	baseCtx    context.Context
	cancel     context.CancelFunc

	// closing is set under sessionMu before wg.Wait so no session is
	// added to wg after Shutdown starts waiting.
	sessionMu sync.Mutex
	closing   bool
	wg        sync.WaitGroup
}

// NewServer creates the web UI server. Nothing listens until Start.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.Monitor == nil || opts.Sessions == nil {
		return nil, errors.New("webui: config, store, monitor and sessions are required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		cfg:      opts.Config,
		store:    opts.Store,
		monitor:  opts.Monitor,
		sessions: opts.Sessions,
		version:  opts.Version,
		logger:   opts.Logger,
		now:      now,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}

	funcs := template.FuncMap{
		"relative":      func(t time.Time) string { return format.RelativeTime(t, s.now()) },
		"severityClass": func(sev string) string { return "alert-" + notify.Severity(sev).AlertClass() },
		"add":           func(a, b int) int { return a + b },
		"deref":         func(f *float64) float64 { return *f },
	}
	pages, login, err := parsePages(funcs)
	if err != nil {
		return nil, err
	}
	s.pages = pages
	s.login = login

	if url := opts.Config.Dashboard.StatusURL; url != "" {
		s.fetcher = page.NewHTTPFetcher(url, opts.Logger)
	} else {
		s.fetcher = page.StoreFetcher{Source: opts.Store}
	}

	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)
	r.Get("/health", s.monitor.HTTPHandler())
	r.Post("/api/ping", s.handlePing)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Get("/", s.handleDashboard)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/cameras", s.handleCameras)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/history", s.handleHistory)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/api", func(r chi.Router) {
			r.Get("/camera-status", s.handleCameraStatus)
			r.Get("/stats", s.handleStats)
			r.Get("/status", s.handleStatus)
			r.Get("/alerts", s.handleListAlerts)
			r.Post("/alerts/{id}/ack", s.handleAcknowledgeAlert)
			r.Get("/history", s.handleListHistory)
			r.Post("/cameras", s.handleCreateCamera)
			r.Put("/cameras/{id}", s.handleUpdateCamera)
			r.Delete("/cameras/{id}", s.handleDeleteCamera)
		})
	})

	return r
}

// Start begins serving on the configured port in the background.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.sessions.Enabled() {
		s.logger.Info().Msg("Authentication enabled")
	} else {
		s.logger.Warn().Msg("Authentication disabled - public access")
	}
	s.logger.Info().Msgf("Starting web UI on http://0.0.0.0%s", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Web server error")
		}
	}()
}

// Shutdown stops accepting requests, closes every page session and waits
// for them to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessionMu.Lock()
	s.closing = true
	s.sessionMu.Unlock()
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// beginSession registers a page session with the shutdown wait group. It
// returns false once Shutdown has started.
func (s *Server) beginSession() bool {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// handleLoginPage serves the login form
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Enabled() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if cookie, err := r.Cookie(auth.CookieName); err == nil && s.sessions.ValidateSession(cookie.Value) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.login.Execute(w, map[string]any{"Styles": template.CSS(styles)}); err != nil {
		s.logger.Error().Err(err).Msg("failed to render login page")
	}
}

// handleLogin checks the submitted credentials and starts a session
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Enabled() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	username := r.FormValue("username")
	if !s.sessions.Authenticate(username, r.FormValue("password")) {
		s.logger.Warn().Str("username", username).Str("remote", r.RemoteAddr).Msg("Failed login attempt")
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	value, err := s.sessions.CreateSession(username)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	s.sessions.SetCookie(w, r, value)

	s.logger.Info().Str("username", username).Msg("User logged in")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleLogout destroys the session and redirects to login
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		s.sessions.DestroySession(cookie.Value)
	}
	auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
