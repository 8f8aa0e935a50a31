package page

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/config"
	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/view"
)

type fakeSurface struct {
	mu          sync.Mutex
	patches     []view.Patch
	pulses      [][]string
	clocks      []string
	alerts      []notify.Notification
	desktop     []notify.Notification
	requests    int
	panicOnPush bool
}

func (f *fakeSurface) Patch(patches []view.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnPush {
		panic("boom")
	}
	f.patches = append(f.patches, patches...)
	return nil
}

func (f *fakeSurface) Pulse(ids []string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses = append(f.pulses, ids)
	return nil
}

func (f *fakeSurface) Clock(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clocks = append(f.clocks, text)
	return nil
}

func (f *fakeSurface) ShowAlert(n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, n)
	return nil
}

func (f *fakeSurface) DismissAlert(string) error { return nil }

func (f *fakeSurface) ShowDesktop(n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.desktop = append(f.desktop, n)
	return nil
}

func (f *fakeSurface) CloseDesktop(string) error { return nil }

func (f *fakeSurface) RequestPermission() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return nil
}

func (f *fakeSurface) snapshot() (patches, alerts, clocks, pulses, requests int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches), len(f.alerts), len(f.clocks), len(f.pulses), f.requests
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// quietDashboard has timers that never fire during a test unless a test
// shortens them.
func quietDashboard() config.DashboardConfig {
	d := config.Default().Dashboard
	d.ClockInterval = time.Hour
	d.StatusPollInterval = time.Hour
	d.FeedPulseInterval = time.Hour
	d.SimulateInterval = time.Hour
	return d
}

var testCameras = []camera.Camera{
	{ID: "1", Name: "Front Door", Status: camera.StatusOnline, Enabled: true},
	{ID: "2", Name: "Garage", Status: camera.StatusOffline, Enabled: true},
}

func startSession(t *testing.T, opts Options) (*Session, context.CancelFunc) {
	t.Helper()
	opts.Logger = zerolog.Nop()
	s := NewSession(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, cancel
}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"/":          KindDashboard,
		"/dashboard": KindDashboard,
		"/cameras":   KindCameras,
		"/alerts":    KindOther,
		"/login":     KindOther,
	}
	for path, want := range tests {
		if got := KindOf(path); got != want {
			t.Errorf("KindOf(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestTimersPerPage(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context) ([]camera.StatusRecord, error) { return nil, nil })
	demo := quietDashboard()
	demo.DemoMode = true

	tests := []struct {
		path     string
		dash     config.DashboardConfig
		polls    bool
		simulate bool
	}{
		{"/cameras", quietDashboard(), true, false},
		{"/dashboard", quietDashboard(), true, false},
		{"/", demo, false, true},
		{"/cameras", demo, true, false},
		{"/alerts", quietDashboard(), false, false},
	}
	for _, tt := range tests {
		s := NewSession(Options{Path: tt.path, Dashboard: tt.dash, Fetcher: fetcher, Surface: &fakeSurface{}, Logger: zerolog.Nop()})
		if s.Polls() != tt.polls || s.Simulates() != tt.simulate {
			t.Errorf("%s demo=%v: polls=%v simulates=%v", tt.path, tt.dash.DemoMode, s.Polls(), s.Simulates())
		}
	}
}

func TestPollAppliesStatuses(t *testing.T) {
	seen := time.Now().Add(-5 * time.Minute)
	surface := &fakeSurface{}
	fetcher := FetcherFunc(func(context.Context) ([]camera.StatusRecord, error) {
		return []camera.StatusRecord{
			{ID: "2", Status: camera.StatusOnline, LastSeen: &seen},
			{ID: "99", Status: camera.StatusError},
		}, nil
	})

	s, _ := startSession(t, Options{Path: "/cameras", Cameras: testCameras, Fetcher: fetcher, Surface: surface, Dashboard: quietDashboard()})
	s.Poll(context.Background())

	waitFor(t, func() bool { n, _, _, _, _ := surface.snapshot(); return n == 1 })

	surface.mu.Lock()
	p := surface.patches[0]
	surface.mu.Unlock()
	if p.ElementID != "cam-2-row" || p.Status != camera.StatusOnline || p.LastSeen != "Last seen: 5 minutes ago" {
		t.Errorf("patch = %+v", p)
	}
	if p.FeedHTML != "" {
		t.Error("row patch should carry no feed")
	}
}

func TestPollFailureIsSilent(t *testing.T) {
	surface := &fakeSurface{}
	var calls sync.WaitGroup
	calls.Add(2)
	fetcher := FetcherFunc(func(context.Context) ([]camera.StatusRecord, error) {
		defer calls.Done()
		return nil, errors.New("connection refused")
	})

	s, _ := startSession(t, Options{Path: "/cameras", Cameras: testCameras, Fetcher: fetcher, Surface: surface, Dashboard: quietDashboard()})
	s.Poll(context.Background())
	s.Poll(context.Background())
	calls.Wait()
	time.Sleep(20 * time.Millisecond)

	patches, alerts, _, _, _ := surface.snapshot()
	if patches != 0 || alerts != 0 {
		t.Errorf("patches=%d alerts=%d after failed polls", patches, alerts)
	}
}

func TestPollsAreNotCoalesced(t *testing.T) {
	surface := &fakeSurface{}
	release := make(chan struct{})
	var mu sync.Mutex
	started := 0
	fetcher := FetcherFunc(func(ctx context.Context) ([]camera.StatusRecord, error) {
		mu.Lock()
		started++
		mu.Unlock()
		<-release
		return []camera.StatusRecord{{ID: "1", Status: camera.StatusError}}, nil
	})

	s, _ := startSession(t, Options{Path: "/cameras", Cameras: testCameras, Fetcher: fetcher, Surface: surface, Dashboard: quietDashboard()})
	s.Poll(context.Background())
	s.Poll(context.Background())
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return started == 2 })
	close(release)

	waitFor(t, func() bool { n, _, _, _, _ := surface.snapshot(); return n == 2 })
}

func TestPanicShowsGenericAlert(t *testing.T) {
	surface := &fakeSurface{panicOnPush: true}
	fetcher := FetcherFunc(func(context.Context) ([]camera.StatusRecord, error) {
		return []camera.StatusRecord{{ID: "1", Status: camera.StatusError}}, nil
	})

	s, _ := startSession(t, Options{Path: "/cameras", Cameras: testCameras, Fetcher: fetcher, Surface: surface, Dashboard: quietDashboard()})
	s.Poll(context.Background())

	waitFor(t, func() bool { _, n, _, _, _ := surface.snapshot(); return n == 1 })
	surface.mu.Lock()
	alert := surface.alerts[0]
	surface.mu.Unlock()
	if alert.Message != GenericErrorMessage || alert.Class != "danger" {
		t.Errorf("alert = %+v", alert)
	}

	// The loop survives the panic.
	surface.mu.Lock()
	surface.panicOnPush = false
	surface.mu.Unlock()
	s.Poll(context.Background())
	waitFor(t, func() bool { n, _, _, _, _ := surface.snapshot(); return n == 1 })
}

func TestClockAndPulse(t *testing.T) {
	surface := &fakeSurface{}
	dash := quietDashboard()
	dash.ClockInterval = 10 * time.Millisecond
	dash.FeedPulseInterval = 10 * time.Millisecond

	startSession(t, Options{Path: "/dashboard", Cameras: testCameras, Surface: surface, Dashboard: dash})
	waitFor(t, func() bool {
		_, _, clocks, pulses, _ := surface.snapshot()
		return clocks >= 2 && pulses >= 1
	})

	surface.mu.Lock()
	defer surface.mu.Unlock()
	if ids := surface.pulses[0]; len(ids) != 2 || ids[0] != "cam-1-tile" {
		t.Errorf("pulse ids = %v", ids)
	}
	if len(surface.clocks[0]) != len("15:04:05") {
		t.Errorf("clock = %q", surface.clocks[0])
	}
}

func TestNoPulseOffDashboard(t *testing.T) {
	surface := &fakeSurface{}
	dash := quietDashboard()
	dash.ClockInterval = 10 * time.Millisecond
	dash.FeedPulseInterval = 10 * time.Millisecond

	startSession(t, Options{Path: "/alerts", Cameras: testCameras, Surface: surface, Dashboard: dash})
	waitFor(t, func() bool { _, _, clocks, _, _ := surface.snapshot(); return clocks >= 3 })
	if _, _, _, pulses, _ := surface.snapshot(); pulses != 0 {
		t.Errorf("pulses = %d on /alerts", pulses)
	}
}

func TestPermissionRequestedOnce(t *testing.T) {
	surface := &fakeSurface{}
	s, _ := startSession(t, Options{Path: "/", Surface: surface, Permission: notify.PermissionDefault, Dashboard: quietDashboard()})
	waitFor(t, func() bool { _, _, _, _, r := surface.snapshot(); return r == 1 })

	s.Deliver(ClientMessage{Type: "permission", State: "granted"})
	waitFor(t, func() bool { return s.Presenter().Permission() == notify.PermissionGranted })

	denied := &fakeSurface{}
	startSession(t, Options{Path: "/", Surface: denied, Permission: notify.PermissionDenied, Dashboard: quietDashboard()})
	time.Sleep(20 * time.Millisecond)
	if _, _, _, _, r := denied.snapshot(); r != 0 {
		t.Errorf("requested permission %d times while denied", r)
	}
}

func TestDemoSimulationNotifies(t *testing.T) {
	surface := &fakeSurface{}
	dash := quietDashboard()
	dash.DemoMode = true
	dash.SimulateInterval = 5 * time.Millisecond
	dash.SimulateProbability = 1

	startSession(t, Options{
		Path:       "/dashboard",
		Cameras:    testCameras,
		Surface:    surface,
		Dashboard:  dash,
		Permission: notify.PermissionGranted,
		Rand:       rand.New(rand.NewPCG(1, 2)),
	})

	waitFor(t, func() bool { n, a, _, _, _ := surface.snapshot(); return n >= 1 && a >= 1 })

	surface.mu.Lock()
	defer surface.mu.Unlock()
	if surface.alerts[0].Title != "Camera Status Change" || !strings.Contains(surface.alerts[0].Message, " is now ") {
		t.Errorf("alert = %+v", surface.alerts[0])
	}
	if len(surface.desktop) == 0 {
		t.Error("granted permission should raise desktop notifications")
	}
}

func TestSimulatorStep(t *testing.T) {
	now := time.Now()
	registry := view.BuildRegistry(testCameras, now, view.SlotTile)
	sim := NewSimulator(registry, rand.New(rand.NewPCG(7, 11)), 1)

	changes := 0
	for range 200 {
		before := map[camera.ID]camera.Status{}
		for _, h := range registry.Slot(view.SlotTile) {
			before[h.CameraID] = h.Status
		}

		change, ok := sim.Step(now)
		if !ok {
			for _, h := range registry.Slot(view.SlotTile) {
				if h.Status != before[h.CameraID] {
					t.Fatal("status changed on a no-op step")
				}
			}
			continue
		}
		changes++

		if change.Patch.Status == before[change.Patch.CameraID] {
			t.Fatalf("change to the same status %q", change.Patch.Status)
		}
		if want := notify.SeverityFor(change.Patch.Status); change.Severity != want {
			t.Errorf("severity = %q, want %q", change.Severity, want)
		}
		if !strings.HasSuffix(change.Message, " is now "+string(change.Patch.Status)) {
			t.Errorf("message = %q", change.Message)
		}
		h := registry.Lookup(change.Patch.CameraID)[0]
		if h.Status != change.Patch.Status {
			t.Errorf("handle status %q, patch %q", h.Status, change.Patch.Status)
		}
	}
	if changes == 0 {
		t.Error("no changes in 200 steps at probability 1")
	}
}

func TestSimulatorProbabilityZero(t *testing.T) {
	registry := view.BuildRegistry(testCameras, time.Now(), view.SlotTile)
	sim := NewSimulator(registry, nil, 0)
	for range 100 {
		if _, ok := sim.Step(time.Now()); ok {
			t.Fatal("changed at probability 0")
		}
	}
}

func TestSimulatorNameFallback(t *testing.T) {
	registry := view.BuildRegistry([]camera.Camera{{ID: "x", Status: camera.StatusOnline}}, time.Now(), view.SlotTile)
	sim := NewSimulator(registry, rand.New(rand.NewPCG(3, 4)), 1)
	for range 100 {
		if change, ok := sim.Step(time.Now()); ok {
			if !strings.HasPrefix(change.Message, "Camera is now ") {
				t.Errorf("message = %q", change.Message)
			}
			return
		}
	}
	t.Fatal("no change in 100 steps")
}

func TestDecodeStatuses(t *testing.T) {
	records, err := DecodeStatuses([]byte(`[
		{"id": 1, "status": "online", "last_seen": "2024-05-01T10:00:00"},
		{"id": "2", "status": "rebooting"},
		{"id": "3", "status": "error"}
	]`), zerolog.Nop())
	if err != nil {
		t.Fatalf("DecodeStatuses: %v", err)
	}
	if len(records) != 2 || records[0].ID != "1" || records[1].ID != "3" {
		t.Errorf("records = %+v", records)
	}

	for _, body := range []string{`{"id": 1}`, `null`, `"online"`} {
		if _, err := DecodeStatuses([]byte(body), zerolog.Nop()); !errors.Is(err, ErrNotArray) {
			t.Errorf("DecodeStatuses(%s) err = %v, want ErrNotArray", body, err)
		}
	}
	if _, err := DecodeStatuses([]byte(`<html>`), zerolog.Nop()); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/camera-status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"1","status":"offline"}]`))
	}))
	defer srv.Close()

	records, err := NewHTTPFetcher(srv.URL+"/api/camera-status", zerolog.Nop()).FetchStatuses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Status != camera.StatusOffline {
		t.Errorf("records = %+v", records)
	}

	if _, err := NewHTTPFetcher(srv.URL+"/missing", zerolog.Nop()).FetchStatuses(context.Background()); err == nil {
		t.Error("expected error for a non-JSON 404 body")
	}
}
