package notify

import (
	"errors"
	"html"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// DesktopTag groups desktop notifications so a new one replaces the last.
const DesktopTag = "camera-monitoring"

// DefaultTTL is how long alerts and desktop notifications stay visible.
const DefaultTTL = 5 * time.Second

// Permission is the page's desktop-notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps anything unknown to PermissionDefault.
func ParsePermission(s string) Permission {
	switch p := Permission(s); p {
	case PermissionGranted, PermissionDenied:
		return p
	}
	return PermissionDefault
}

// Display is the page surface notifications are rendered on.
type Display interface {
	ShowAlert(n Notification) error
	DismissAlert(id string) error
	ShowDesktop(n Notification) error
	CloseDesktop(id string) error
}

// PermissionRequester asks the page for desktop-notification permission.
type PermissionRequester interface {
	RequestPermission() error
}

// ErrClosed is returned by Show once the presenter is closed.
var ErrClosed = errors.New("notify: presenter closed")

// Presenter shows notifications on one page. Alerts are dismissed after the
// TTL or on request; desktop notifications are only raised while permission
// is granted.
type Presenter struct {
	display Display
	ttl     time.Duration
	policy  *bluemonday.Policy
	strict  *bluemonday.Policy
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	permission Permission
	requested  bool
	closed     bool
	alerts     map[string]*time.Timer
	desktop    map[string]*time.Timer
}

// NewPresenter creates a presenter for display with the page's current
// permission.
func NewPresenter(display Display, permission Permission, ttl time.Duration, logger zerolog.Logger) *Presenter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Presenter{
		display:    display,
		ttl:        ttl,
		policy:     bluemonday.UGCPolicy(),
		strict:     bluemonday.StrictPolicy(),
		logger:     logger,
		now:        time.Now,
		permission: permission,
		alerts:     make(map[string]*time.Timer),
		desktop:    make(map[string]*time.Timer),
	}
}

// Permission returns the current desktop permission.
func (p *Presenter) Permission() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

// SetPermission records the page's answer to a permission request.
func (p *Presenter) SetPermission(permission Permission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permission = permission
}

// RequestPermission asks once, and only while the permission is undecided.
// It reports whether a request was sent.
func (p *Presenter) RequestPermission(r PermissionRequester) (bool, error) {
	p.mu.Lock()
	if p.requested || p.permission != PermissionDefault {
		p.mu.Unlock()
		return false, nil
	}
	p.requested = true
	p.mu.Unlock()

	return true, r.RequestPermission()
}

// Show renders an in-page alert and, with permission, a desktop
// notification. It returns the notification that was shown.
func (p *Presenter) Show(title, message string, severity Severity) (Notification, error) {
	n := Notification{
		ID:        uuid.NewString(),
		Title:     p.plainText(title),
		Message:   p.plainText(message),
		HTML:      p.policy.Sanitize(message),
		Severity:  severity,
		Class:     severity.AlertClass(),
		CreatedAt: p.now(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return n, ErrClosed
	}
	granted := p.permission == PermissionGranted
	p.alerts[n.ID] = time.AfterFunc(p.ttl, func() { p.expireAlert(n.ID) })
	p.mu.Unlock()

	if err := p.display.ShowAlert(n); err != nil {
		p.Dismiss(n.ID)
		return n, err
	}

	if granted {
		p.mu.Lock()
		if !p.closed {
			p.desktop[n.ID] = time.AfterFunc(p.ttl, func() { p.expireDesktop(n.ID) })
		}
		p.mu.Unlock()
		if err := p.display.ShowDesktop(n); err != nil {
			p.logger.Warn().Err(err).Str("notification", n.ID).Msg("failed to raise desktop notification")
		}
	}
	return n, nil
}

// plainText strips markup for text-only surfaces: the alert title and the
// desktop notification.
func (p *Presenter) plainText(s string) string {
	return html.UnescapeString(p.strict.Sanitize(s))
}

// Dismiss removes an alert before its TTL expires. Unknown IDs are ignored.
func (p *Presenter) Dismiss(id string) {
	p.mu.Lock()
	timer, ok := p.alerts[id]
	if ok {
		timer.Stop()
		delete(p.alerts, id)
	}
	p.mu.Unlock()

	if ok {
		if err := p.display.DismissAlert(id); err != nil {
			p.logger.Debug().Err(err).Str("notification", id).Msg("failed to dismiss alert")
		}
	}
}

// Active returns the number of alerts currently on screen.
func (p *Presenter) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

// Close cancels every pending timer. Alerts still on screen are left to the
// page, which is going away.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for id, timer := range p.alerts {
		timer.Stop()
		delete(p.alerts, id)
	}
	for id, timer := range p.desktop {
		timer.Stop()
		delete(p.desktop, id)
	}
}

func (p *Presenter) expireAlert(id string) {
	p.mu.Lock()
	_, ok := p.alerts[id]
	delete(p.alerts, id)
	p.mu.Unlock()

	if ok {
		if err := p.display.DismissAlert(id); err != nil {
			p.logger.Debug().Err(err).Str("notification", id).Msg("failed to expire alert")
		}
	}
}

func (p *Presenter) expireDesktop(id string) {
	p.mu.Lock()
	_, ok := p.desktop[id]
	delete(p.desktop, id)
	p.mu.Unlock()

	if ok {
		if err := p.display.CloseDesktop(id); err != nil {
			p.logger.Debug().Err(err).Str("notification", id).Msg("failed to close desktop notification")
		}
	}
}
