// Package auth implements the single-admin login of the dashboard.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmuteeullah/CamWatch/internal/config"
)

// CookieName is the session cookie.
const CookieName = "session_id"

// Session represents a user session
type Session struct {
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager manages user sessions
type SessionManager struct {
	enabled      bool
	sessions     map[string]*Session
	mu           sync.RWMutex
	timeout      time.Duration
	username     string
	passwordHash string
	secretKey    []byte
	now          func() time.Time
}

// NewSessionManager creates a session manager from the authentication
// settings. Without a secret key a random one is generated, so sessions do
// not survive a restart.
func NewSessionManager(cfg config.AuthConfig) (*SessionManager, error) {
	timeoutMinutes := cfg.SessionTimeout
	if timeoutMinutes <= 0 {
		timeoutMinutes = 60 // default 1 hour
	}

	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}

	return &SessionManager{
		enabled:      cfg.Enabled,
		sessions:     make(map[string]*Session),
		timeout:      time.Duration(timeoutMinutes) * time.Minute,
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		secretKey:    secret,
		now:          time.Now,
	}, nil
}

// Enabled reports whether logins are required.
func (sm *SessionManager) Enabled() bool {
	return sm.enabled
}

// Authenticate checks if username and password are valid
func (sm *SessionManager) Authenticate(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(sm.username)) != 1 {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(sm.passwordHash), []byte(password))
	return err == nil
}

// CreateSession creates a new session and returns the signed cookie value
func (sm *SessionManager) CreateSession(username string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", err
	}

	now := sm.now()
	sm.mu.Lock()
	sm.sessions[sessionID] = &Session{
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.timeout),
	}
	sm.mu.Unlock()

	return sessionID + "." + sm.sign(sessionID), nil
}

// ValidateSession checks a cookie value and, when valid, extends the
// session's expiry.
func (sm *SessionManager) ValidateSession(value string) bool {
	sessionID, ok := sm.verify(value)
	if !ok {
		return false
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return false
	}

	now := sm.now()
	if now.After(session.ExpiresAt) {
		delete(sm.sessions, sessionID)
		return false
	}

	session.ExpiresAt = now.Add(sm.timeout)
	return true
}

// DestroySession removes a session
func (sm *SessionManager) DestroySession(value string) {
	sessionID, ok := sm.verify(value)
	if !ok {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionID)
}

// Active returns the number of live sessions.
func (sm *SessionManager) Active() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Run removes expired sessions every interval until ctx is cancelled.
func (sm *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.cleanupExpiredSessions()
		}
	}
}

func (sm *SessionManager) cleanupExpiredSessions() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
}

func (sm *SessionManager) sign(sessionID string) string {
	mac := hmac.New(sha256.New, sm.secretKey)
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verify(value string) (string, bool) {
	sessionID, sig, ok := strings.Cut(value, ".")
	if !ok || sessionID == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(sm.sign(sessionID))) {
		return "", false
	}
	return sessionID, true
}

// generateSessionID generates a random session ID
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashPassword creates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// SetCookie writes the session cookie.
func (sm *SessionManager) SetCookie(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(sm.timeout.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Middleware requires a valid session. Pages redirect to /login; API and
// WebSocket requests get 401. It passes everything through when
// authentication is disabled.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sm.enabled {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || !sm.ValidateSession(cookie.Value) {
			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}
