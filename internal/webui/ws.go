package webui

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/page"
	"github.com/mmuteeullah/CamWatch/internal/view"
)

const writeWait = 10 * time.Second

// serverMessage is everything the session pushes to the page script.
type serverMessage struct {
	Type         string               `json:"type"`
	Patches      []view.Patch         `json:"patches,omitempty"`
	IDs          []string             `json:"ids,omitempty"`
	DurationMS   int64                `json:"duration_ms,omitempty"`
	Text         string               `json:"text,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	ID           string               `json:"id,omitempty"`
}

// wsSurface renders a page session onto a WebSocket connection.
type wsSurface struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (ws *wsSurface) send(msg serverMessage) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteJSON(msg)
}

func (ws *wsSurface) Patch(patches []view.Patch) error {
	return ws.send(serverMessage{Type: "patch", Patches: patches})
}

func (ws *wsSurface) Pulse(ids []string, d time.Duration) error {
	return ws.send(serverMessage{Type: "pulse", IDs: ids, DurationMS: d.Milliseconds()})
}

func (ws *wsSurface) Clock(text string) error {
	return ws.send(serverMessage{Type: "clock", Text: text})
}

func (ws *wsSurface) ShowAlert(n notify.Notification) error {
	return ws.send(serverMessage{Type: "alert", Notification: &n})
}

func (ws *wsSurface) DismissAlert(id string) error {
	return ws.send(serverMessage{Type: "dismiss", ID: id})
}

func (ws *wsSurface) ShowDesktop(n notify.Notification) error {
	return ws.send(serverMessage{Type: "desktop", Notification: &n})
}

func (ws *wsSurface) CloseDesktop(id string) error {
	return ws.send(serverMessage{Type: "desktop-close", ID: id})
}

func (ws *wsSurface) RequestPermission() error {
	return ws.send(serverMessage{Type: "request-permission"})
}

// handleWebSocket runs one page session for the lifetime of the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}
	permission := notify.ParsePermission(r.URL.Query().Get("permission"))

	if !s.beginSession() {
		writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}
	defer s.wg.Done()

	cams, err := s.store.ListCameras(r.Context(), true)
	if err != nil {
		s.serverError(w, "failed to list cameras", err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	logger := s.logger.With().Str("remote", r.RemoteAddr).Logger()
	session := page.NewSession(page.Options{
		Path:       path,
		Cameras:    cams,
		Fetcher:    s.fetcher,
		Surface:    &wsSurface{conn: conn},
		Permission: permission,
		Dashboard:  s.cfg.Dashboard,
		Logger:     logger,
		Now:        s.now,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	readMessages(conn, session, logger)
	cancel()
	<-done
}

// readMessages feeds client messages to the session until the page goes away.
func readMessages(conn *websocket.Conn, session *page.Session, logger zerolog.Logger) {
	conn.SetReadLimit(4096)
	for {
		var msg page.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("page connection closed")
			}
			return
		}
		session.Deliver(msg)
	}
}
