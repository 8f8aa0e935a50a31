package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmuteeullah/CamWatch/internal/config"
)

func newManager(t *testing.T, enabled bool) *SessionManager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	sm, err := NewSessionManager(config.AuthConfig{
		Enabled:        enabled,
		Username:       "admin",
		PasswordHash:   string(hash),
		SessionTimeout: 30,
		SecretKey:      "test-secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	return sm
}

func TestAuthenticate(t *testing.T) {
	sm := newManager(t, true)
	if !sm.Authenticate("admin", "hunter2") {
		t.Error("valid credentials rejected")
	}
	if sm.Authenticate("admin", "wrong") {
		t.Error("wrong password accepted")
	}
	if sm.Authenticate("root", "hunter2") {
		t.Error("wrong username accepted")
	}
}

func TestSessionLifecycle(t *testing.T) {
	sm := newManager(t, true)
	now := time.Now()
	sm.now = func() time.Time { return now }

	value, err := sm.CreateSession("admin")
	if err != nil {
		t.Fatal(err)
	}
	if !sm.ValidateSession(value) {
		t.Fatal("fresh session invalid")
	}

	// Validation slides the expiry.
	now = now.Add(20 * time.Minute)
	if !sm.ValidateSession(value) {
		t.Fatal("session expired early")
	}
	now = now.Add(20 * time.Minute)
	if !sm.ValidateSession(value) {
		t.Fatal("sliding expiry not applied")
	}

	now = now.Add(31 * time.Minute)
	if sm.ValidateSession(value) {
		t.Error("expired session accepted")
	}
	if sm.Active() != 0 {
		t.Errorf("active = %d after expiry", sm.Active())
	}
}

func TestTamperedCookieRejected(t *testing.T) {
	sm := newManager(t, true)
	value, _ := sm.CreateSession("admin")

	for _, bad := range []string{"", "nodot", value + "x", "abc." + value[len(value)-10:]} {
		if sm.ValidateSession(bad) {
			t.Errorf("accepted %q", bad)
		}
	}

	other := newManager(t, true)
	if other.ValidateSession(value) {
		t.Error("session from another manager accepted")
	}
}

func TestDestroySession(t *testing.T) {
	sm := newManager(t, true)
	value, _ := sm.CreateSession("admin")
	sm.DestroySession(value)
	if sm.ValidateSession(value) {
		t.Error("destroyed session still valid")
	}
}

func TestCleanup(t *testing.T) {
	sm := newManager(t, true)
	now := time.Now()
	sm.now = func() time.Time { return now }
	for range 3 {
		if _, err := sm.CreateSession("admin"); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(time.Hour)
	sm.cleanupExpiredSessions()
	if sm.Active() != 0 {
		t.Errorf("active = %d after cleanup", sm.Active())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sm.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	<-done
}

func TestMiddleware(t *testing.T) {
	sm := newManager(t, true)
	handler := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("page without session: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api without session: %d", rec.Code)
	}

	value, _ := sm.CreateSession("admin")
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "secret" {
		t.Errorf("with session: %d %q", rec.Code, rec.Body.String())
	}

	open := newManager(t, false).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("disabled auth: %d", rec.Code)
	}
}
