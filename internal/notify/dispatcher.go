package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink delivers alerts outside the dashboard.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Dispatcher fans alerts out to every configured sink.
type Dispatcher struct {
	sinks    []Sink
	attempts uint
	delay    time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over sinks.
func NewDispatcher(logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:    sinks,
		attempts: 3,
		delay:    500 * time.Millisecond,
		timeout:  10 * time.Second,
		logger:   logger,
	}
}

// Sinks returns the configured sinks.
func (d *Dispatcher) Sinks() []Sink {
	return d.sinks
}

// Deliver sends n to every sink, retrying each one, and returns the joined
// delivery errors.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Class == "" {
		n.Class = n.Severity.AlertClass()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	var errs []error
	for _, sink := range d.sinks {
		err := retry.Do(
			func() error {
				return sink.Send(ctx, n)
			},
			retry.Context(ctx),
			retry.Attempts(d.attempts),
			retry.Delay(d.delay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			d.logger.Error().Err(err).Str("sink", sink.Name()).Msgf("failed to deliver alert %q", n.Title)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		d.logger.Debug().Str("sink", sink.Name()).Msgf("delivered alert %q", n.Title)
	}
	return errors.Join(errs...)
}

// Notify delivers n in the background so callers never block on a slow sink.
func (d *Dispatcher) Notify(n Notification) {
	if len(d.sinks) == 0 {
		d.logger.Info().Msgf("ALERT (no sinks): %s: %s", n.Title, n.Message)
		return
	}
	d.logger.Info().Msgf("ALERT: %s: %s", n.Title, n.Message)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		_ = d.Deliver(ctx, n)
	}()
}
