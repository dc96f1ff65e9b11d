package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"tabletalk/internal/adapters/events"
)

// ErrCapabilityUnavailable is returned by a BackgroundRegistrar whose
// platform cannot schedule work in the background. Callers fall back to a
// foreground pass; it is never fatal.
var ErrCapabilityUnavailable = errors.New("background scheduling not available")

// SyncRunner runs one sync pass.
type SyncRunner interface {
	ProcessPending(ctx context.Context) error
}

// BackgroundRegistrar abstracts the platform's background scheduling
// capability.
type BackgroundRegistrar interface {
	// RegisterOneShot asks the platform to run a sync pass when convenient.
	// Returns ErrCapabilityUnavailable when the platform has no such
	// facility.
	RegisterOneShot(reason string) error

	// PermitPeriodic reports whether periodic background sync is allowed.
	PermitPeriodic() bool
}

// ForegroundRegistrar is the daemon's registrar: it has no platform
// scheduler, so one-shot registration is unavailable and periodic sync runs
// in-process.
type ForegroundRegistrar struct{}

func (ForegroundRegistrar) RegisterOneShot(reason string) error { return ErrCapabilityUnavailable }
func (ForegroundRegistrar) PermitPeriodic() bool                { return true }

// Scheduler owns when sync passes run. Requests are coalesced: any number of
// RequestSync calls while a pass is in flight collapse into at most one
// follow-up pass.
type Scheduler struct {
	runner    SyncRunner
	registrar BackgroundRegistrar
	clock     clock.Clock
	interval  time.Duration // periodic trigger; <= 0 disables it

	requests chan string
}

// NewScheduler creates a scheduler; Run must be started for requests to be
// serviced.
func NewScheduler(runner SyncRunner, registrar BackgroundRegistrar, clk clock.Clock, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:    runner,
		registrar: registrar,
		clock:     clk,
		interval:  interval,
		requests:  make(chan string, 1),
	}
}

// RequestSync schedules a sync pass. Fire-and-forget: it never blocks and
// never touches the network on the caller's goroutine.
func (s *Scheduler) RequestSync(reason string) {
	select {
	case s.requests <- reason:
	default:
		// A pass is already queued; this request rides along with it.
	}
}

// OnConnectivityChanged subscribes the scheduler to connectivity events and
// returns the unsubscribe func. Regained connectivity first tries the
// platform registrar, then falls back to a foreground pass.
func (s *Scheduler) OnConnectivityChanged(hub *events.Hub) func() {
	return hub.Subscribe(events.TopicConnectivityChanged, func(topic string, data any) {
		evt, ok := data.(events.ConnectivityChanged)
		if !ok || !evt.IsOnline {
			return
		}
		if err := s.registrar.RegisterOneShot("connectivity"); err == nil {
			return
		} else if !errors.Is(err, ErrCapabilityUnavailable) {
			slog.Warn("background_register_failed", "error", err.Error())
		}
		s.RequestSync("connectivity")
	})
}

// Run services sync requests and the periodic trigger until ctx is
// cancelled. Pass failures are logged; the loop keeps running.
func (s *Scheduler) Run(ctx context.Context) {
	var periodic <-chan time.Time
	if s.interval > 0 && s.registrar.PermitPeriodic() {
		periodic = s.tick()
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync_scheduler_stopped")
			return
		case reason := <-s.requests:
			s.runPass(ctx, reason)
		case <-periodic:
			s.runPass(ctx, "periodic")
			periodic = s.tick()
		}
	}
}

func (s *Scheduler) tick() <-chan time.Time {
	return s.clock.After(s.interval)
}

func (s *Scheduler) runPass(ctx context.Context, reason string) {
	passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	slog.Info("sync_pass_start", "reason", reason)
	if err := s.runner.ProcessPending(passCtx); err != nil {
		slog.Error("sync_pass_error", "reason", reason, "error", err.Error())
	}
}
