// Package page runs the server side of one connected dashboard page: its
// timers, its view-model registry and its notifications.
package page

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/config"
	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/view"
)

// GenericErrorMessage is shown when a timer callback fails.
const GenericErrorMessage = "An error occurred. Please refresh the page if problems persist."

// PulseDuration is how long feed tiles keep the pulse class.
const PulseDuration = time.Second

// Surface is the connected page as seen by its session.
type Surface interface {
	notify.Display
	notify.PermissionRequester
	Patch(patches []view.Patch) error
	Pulse(elementIDs []string, d time.Duration) error
	Clock(text string) error
}

// Kind classifies page paths by the timers they get.
type Kind int

const (
	KindOther Kind = iota
	KindDashboard
	KindCameras
)

// KindOf returns the kind of the page at path.
func KindOf(path string) Kind {
	switch path {
	case "/", "/dashboard":
		return KindDashboard
	case "/cameras":
		return KindCameras
	}
	return KindOther
}

// Slots returns the element kinds a page renders per camera.
func (k Kind) Slots() []view.Slot {
	switch k {
	case KindDashboard:
		return []view.Slot{view.SlotTile}
	case KindCameras:
		return []view.Slot{view.SlotRow}
	}
	return nil
}

// ClientMessage is a message sent by the page script.
type ClientMessage struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Options configure a session.
type Options struct {
	Path       string
	Cameras    []camera.Camera
	Fetcher    StatusFetcher
	Surface    Surface
	Permission notify.Permission
	Dashboard  config.DashboardConfig
	Logger     zerolog.Logger

	// Rand drives the demo simulator; nil seeds one randomly.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

type fetchResult struct {
	records []camera.StatusRecord
	err     error
}

// Session is the page context of one connected page. All timer callbacks
// run on the goroutine executing Run, one at a time.
type Session struct {
	path       string
	kind       Kind
	dash       config.DashboardConfig
	surface    Surface
	fetcher    StatusFetcher
	registry   *view.Registry
	reconciler *view.Reconciler
	presenter  *notify.Presenter
	simulator  *Simulator
	logger     zerolog.Logger
	now        func() time.Time

	results chan fetchResult
	inbox   chan ClientMessage
	done    chan struct{}
	once    sync.Once
}

// NewSession builds the page context. Nothing runs until Run is called.
func NewSession(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	kind := KindOf(opts.Path)
	logger := opts.Logger.With().Str("page", opts.Path).Logger()

	registry := view.BuildRegistry(opts.Cameras, now(), kind.Slots()...)

	s := &Session{
		path:       opts.Path,
		kind:       kind,
		dash:       opts.Dashboard,
		surface:    opts.Surface,
		fetcher:    opts.Fetcher,
		registry:   registry,
		reconciler: view.NewReconciler(registry),
		presenter:  notify.NewPresenter(opts.Surface, opts.Permission, opts.Dashboard.NotificationTTL, logger),
		logger:     logger,
		now:        now,
		results:    make(chan fetchResult, 1),
		inbox:      make(chan ClientMessage, 16),
		done:       make(chan struct{}),
	}
	if kind == KindDashboard && opts.Dashboard.DemoMode {
		s.simulator = NewSimulator(registry, opts.Rand, opts.Dashboard.SimulateProbability)
	}
	return s
}

// Registry returns the page's view-model registry.
func (s *Session) Registry() *view.Registry { return s.registry }

// Presenter returns the page's notification presenter.
func (s *Session) Presenter() *notify.Presenter { return s.presenter }

// Polls reports whether the page runs the status poller.
func (s *Session) Polls() bool {
	if s.fetcher == nil {
		return false
	}
	switch s.kind {
	case KindCameras:
		return true
	case KindDashboard:
		return !s.dash.DemoMode
	}
	return false
}

// Simulates reports whether the page runs the demo simulator.
func (s *Session) Simulates() bool { return s.simulator != nil }

// Run starts the page's timers and blocks until ctx is cancelled. Every
// timer and pending notification is torn down before it returns.
func (s *Session) Run(ctx context.Context) {
	defer s.once.Do(func() { close(s.done) })
	defer s.presenter.Close()

	s.guard("permission", func() {
		if _, err := s.presenter.RequestPermission(s.surface); err != nil {
			s.logger.Warn().Err(err).Msg("failed to request notification permission")
		}
	})

	clockC, stopClock := ticker(s.dash.ClockInterval, true)
	defer stopClock()
	pollC, stopPoll := ticker(s.dash.StatusPollInterval, s.Polls())
	defer stopPoll()
	pulseC, stopPulse := ticker(s.dash.FeedPulseInterval, s.kind == KindDashboard)
	defer stopPulse()
	simulateC, stopSimulate := ticker(s.dash.SimulateInterval, s.simulator != nil)
	defer stopSimulate()

	s.logger.Debug().
		Bool("poll", pollC != nil).
		Bool("simulate", simulateC != nil).
		Msg("page session started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("page session stopped")
			return
		case <-clockC:
			s.guard("clock", s.tickClock)
		case <-pollC:
			s.startFetch(ctx)
		case res := <-s.results:
			s.guard("poll", func() { s.applyStatuses(res) })
		case <-pulseC:
			s.guard("pulse", s.pulseFeeds)
		case <-simulateC:
			s.guard("simulate", s.simulate)
		case msg := <-s.inbox:
			s.guard("message", func() { s.handle(msg) })
		}
	}
}

// ticker returns a nil channel, which never fires, for disabled or
// unconfigured timers.
func ticker(d time.Duration, enabled bool) (<-chan time.Time, func()) {
	if !enabled || d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Deliver queues a message from the page for the session loop. Messages
// arriving after the session stopped are dropped.
func (s *Session) Deliver(msg ClientMessage) {
	select {
	case s.inbox <- msg:
	case <-s.done:
	}
}

// Poll fetches statuses now and applies them on the session loop.
func (s *Session) Poll(ctx context.Context) {
	s.startFetch(ctx)
}

func (s *Session) startFetch(ctx context.Context) {
	if s.fetcher == nil {
		return
	}
	// Fetches are not coalesced; each tick gets its own request.
	go func() {
		records, err := s.fetcher.FetchStatuses(ctx)
		select {
		case s.results <- fetchResult{records: records, err: err}:
		case <-ctx.Done():
		case <-s.done:
		}
	}()
}

func (s *Session) applyStatuses(res fetchResult) {
	if res.err != nil {
		s.logger.Error().Err(res.err).Msg("Error fetching camera status")
		return
	}
	patches := s.reconciler.Apply(res.records, s.now())
	if len(patches) == 0 {
		return
	}
	if err := s.surface.Patch(patches); err != nil {
		s.logger.Debug().Err(err).Msg("failed to push status patches")
	}
}

func (s *Session) tickClock() {
	if err := s.surface.Clock(view.Clock(s.now())); err != nil {
		s.logger.Debug().Err(err).Msg("failed to push clock")
	}
}

func (s *Session) pulseFeeds() {
	tiles := s.registry.Slot(view.SlotTile)
	if len(tiles) == 0 {
		return
	}
	ids := make([]string, 0, len(tiles))
	for _, h := range tiles {
		ids = append(ids, h.ElementID())
	}
	if err := s.surface.Pulse(ids, PulseDuration); err != nil {
		s.logger.Debug().Err(err).Msg("failed to push feed pulse")
	}
}

func (s *Session) simulate() {
	change, ok := s.simulator.Step(s.now())
	if !ok {
		return
	}
	if err := s.surface.Patch([]view.Patch{change.Patch}); err != nil {
		s.logger.Debug().Err(err).Msg("failed to push simulated status")
	}
	if _, err := s.presenter.Show(change.Title, change.Message, change.Severity); err != nil {
		s.logger.Debug().Err(err).Msg("failed to show status change")
	}
}

func (s *Session) handle(msg ClientMessage) {
	switch msg.Type {
	case "permission":
		s.presenter.SetPermission(notify.ParsePermission(msg.State))
	case "dismiss":
		s.presenter.Dismiss(msg.ID)
	default:
		s.logger.Debug().Str("type", msg.Type).Msg("ignoring page message")
	}
}

// guard runs fn and turns a panic into a log entry and one generic alert.
func (s *Session) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("callback", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("page callback failed")
			if _, err := s.presenter.Show("Error", GenericErrorMessage, notify.SeverityError); err != nil {
				s.logger.Debug().Err(err).Msg("failed to show error alert")
			}
		}
	}()
	fn()
}
