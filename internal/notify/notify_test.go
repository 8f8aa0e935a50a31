package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

type fakeDisplay struct {
	mu        sync.Mutex
	alerts    []Notification
	dismissed []string
	desktop   []Notification
	closed    []string
	requests  int
}

func (d *fakeDisplay) ShowAlert(n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, n)
	return nil
}

func (d *fakeDisplay) DismissAlert(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismissed = append(d.dismissed, id)
	return nil
}

func (d *fakeDisplay) ShowDesktop(n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.desktop = append(d.desktop, n)
	return nil
}

func (d *fakeDisplay) CloseDesktop(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = append(d.closed, id)
	return nil
}

func (d *fakeDisplay) RequestPermission() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests++
	return nil
}

func (d *fakeDisplay) counts() (alerts, dismissed, desktop, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts), len(d.dismissed), len(d.desktop), len(d.closed)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSeverityMapping(t *testing.T) {
	if got := SeverityFor(camera.StatusError); got != SeverityError {
		t.Errorf("error -> %q", got)
	}
	if got := SeverityFor(camera.StatusOffline); got != SeverityWarning {
		t.Errorf("offline -> %q", got)
	}
	if got := SeverityFor(camera.StatusOnline); got != SeveritySuccess {
		t.Errorf("online -> %q", got)
	}
	if SeverityError.AlertClass() != "danger" || SeverityWarning.AlertClass() != "warning" {
		t.Error("unexpected alert classes")
	}
}

func TestShowWithoutPermissionOnlyAlerts(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionDenied, time.Hour, zerolog.Nop())
	defer p.Close()

	n, err := p.Show("Camera Status Change", "Garage is now offline", SeverityWarning)
	if err != nil {
		t.Fatal(err)
	}
	if n.Class != "warning" {
		t.Errorf("class = %q", n.Class)
	}

	alerts, _, desktop, _ := d.counts()
	if alerts != 1 || desktop != 0 {
		t.Fatalf("alerts=%d desktop=%d, want 1/0", alerts, desktop)
	}
}

func TestShowWithPermissionRaisesDesktop(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionGranted, time.Hour, zerolog.Nop())
	defer p.Close()

	if _, err := p.Show("t", "m", SeverityError); err != nil {
		t.Fatal(err)
	}
	alerts, _, desktop, _ := d.counts()
	if alerts != 1 || desktop != 1 {
		t.Fatalf("alerts=%d desktop=%d, want 1/1", alerts, desktop)
	}
	if d.desktop[0].Class != "danger" {
		t.Errorf("class = %q", d.desktop[0].Class)
	}
}

func TestAlertsExpireAfterTTL(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionGranted, 20*time.Millisecond, zerolog.Nop())
	defer p.Close()

	n, _ := p.Show("t", "m", SeverityInfo)
	waitFor(t, func() bool {
		_, dismissed, _, closed := d.counts()
		return dismissed == 1 && closed == 1
	})
	if d.dismissed[0] != n.ID || d.closed[0] != n.ID {
		t.Fatalf("expired %v / %v, want %s", d.dismissed, d.closed, n.ID)
	}
	if p.Active() != 0 {
		t.Fatalf("active = %d", p.Active())
	}
}

func TestDismissBeforeTTL(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionDenied, time.Hour, zerolog.Nop())
	defer p.Close()

	n, _ := p.Show("t", "m", SeverityInfo)
	p.Dismiss(n.ID)
	p.Dismiss(n.ID)
	p.Dismiss("unknown")

	_, dismissed, _, _ := d.counts()
	if dismissed != 1 {
		t.Fatalf("dismissed = %d, want 1", dismissed)
	}
}

func TestNotificationsStack(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionDenied, time.Hour, zerolog.Nop())
	defer p.Close()

	for i := 0; i < 3; i++ {
		p.Show("same", "same", SeverityInfo)
	}
	if p.Active() != 3 {
		t.Fatalf("active = %d, want 3", p.Active())
	}
}

func TestShowSanitizesMarkup(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionDenied, time.Hour, zerolog.Nop())
	defer p.Close()

	n, _ := p.Show("t", `<script>alert(1)</script><b>Lobby</b> is now offline`, SeverityWarning)
	if strings.Contains(n.HTML, "<script>") || !strings.Contains(n.HTML, "<b>Lobby</b>") {
		t.Fatalf("html = %q", n.HTML)
	}
	if n.Message != "Lobby is now offline" {
		t.Errorf("message = %q", n.Message)
	}
}

func TestShowKeepsPlainTextUnescaped(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionGranted, time.Hour, zerolog.Nop())
	defer p.Close()

	n, err := p.Show("Gate & Yard", "Gate & Yard is now offline", SeverityWarning)
	if err != nil {
		t.Fatal(err)
	}
	if n.Title != "Gate & Yard" || n.Message != "Gate & Yard is now offline" {
		t.Errorf("plain text = %q / %q", n.Title, n.Message)
	}
	if n.HTML != "Gate &amp; Yard is now offline" {
		t.Errorf("html = %q", n.HTML)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.desktop) != 1 || d.desktop[0].Title != "Gate & Yard" || d.desktop[0].Message != "Gate & Yard is now offline" {
		t.Errorf("desktop = %+v", d.desktop)
	}
}

func TestRequestPermissionOnce(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionDefault, time.Hour, zerolog.Nop())
	defer p.Close()

	sent, err := p.RequestPermission(d)
	if !sent || err != nil {
		t.Fatalf("first request: sent=%v err=%v", sent, err)
	}
	sent, _ = p.RequestPermission(d)
	if sent {
		t.Fatal("second request was sent")
	}

	decided := NewPresenter(d, PermissionDenied, time.Hour, zerolog.Nop())
	defer decided.Close()
	if sent, _ := decided.RequestPermission(d); sent {
		t.Fatal("request sent although permission already decided")
	}
	if d.requests != 1 {
		t.Fatalf("requests = %d", d.requests)
	}
}

func TestShowAfterClose(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPresenter(d, PermissionDenied, time.Hour, zerolog.Nop())
	p.Close()
	if _, err := p.Show("t", "m", SeverityInfo); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []Notification
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("temporary failure")
	}
	s.got = append(s.got, n)
	return nil
}

func TestDispatcherRetries(t *testing.T) {
	sink := &flakySink{failures: 2}
	d := NewDispatcher(zerolog.Nop(), sink)
	d.delay = time.Millisecond

	err := d.Deliver(context.Background(), Notification{Title: "Camera offline", Severity: SeverityError})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sink.calls != 3 || len(sink.got) != 1 {
		t.Fatalf("calls=%d delivered=%d", sink.calls, len(sink.got))
	}
	if sink.got[0].ID == "" || sink.got[0].Class != "danger" {
		t.Fatalf("delivered %+v", sink.got[0])
	}
}

func TestDispatcherGivesUp(t *testing.T) {
	sink := &flakySink{failures: 10}
	d := NewDispatcher(zerolog.Nop(), sink)
	d.delay = time.Millisecond

	if err := d.Deliver(context.Background(), Notification{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if sink.calls != 3 {
		t.Fatalf("calls = %d, want 3", sink.calls)
	}
}

func TestSlackSink(t *testing.T) {
	var got SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	sink := NewSlackSink(srv.URL)
	err := sink.Send(context.Background(), Notification{
		Title:    "Camera Offline",
		Message:  "Garage has not reported for 2 minutes",
		Severity: SeverityError,
		CameraID: "cam2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Text, "*Camera Offline*") || !strings.Contains(got.Text, "`cam2`") {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestSlackSinkStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if err := NewSlackSink(srv.URL).Send(context.Background(), Notification{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
