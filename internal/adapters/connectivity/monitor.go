// Package connectivity tracks whether the remote API is reachable. The
// dispatcher consults it before attempting a direct call, and the sync
// trigger listens for offline-to-online transitions.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"tabletalk/internal/adapters/events"
	"tabletalk/internal/adapters/remote"
)

const (
	// DefaultInterval is the gap between health probes.
	DefaultInterval = 30 * time.Second

	// Offline is only declared after the probe fails this many times in a
	// row, so a single dropped request doesn't flap the engine offline.
	defaultConfirmAttempts = 3
	defaultConfirmDelay    = 2 * time.Second
)

// Monitor probes the remote health endpoint on a timer and publishes
// connectivity-changed events on transitions. The initial state is online:
// assuming reachability costs one failed request, assuming offline would
// queue everything until the first probe.
type Monitor struct {
	client   remote.Client
	hub      *events.Hub
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration

	confirmAttempts int
	confirmDelay    time.Duration

	mu     sync.Mutex
	online bool
}

// NewMonitor creates a monitor that is not yet running. Run starts the probe
// loop; SetOnline and CheckNow work without it.
func NewMonitor(client remote.Client, hub *events.Hub, clk clock.Clock, logger *slog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		client:          client,
		hub:             hub,
		clock:           clk,
		logger:          logger,
		interval:        interval,
		confirmAttempts: defaultConfirmAttempts,
		confirmDelay:    defaultConfirmDelay,
		online:          true,
	}
}

// IsOnline reports the last known connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline overrides the connectivity state from an external signal, e.g.
// the host platform reporting a network change. A transition publishes
// connectivity-changed like a probe result would.
func (m *Monitor) SetOnline(online bool) {
	m.transition(online)
}

// CheckNow runs a single probe and updates state. A failed probe while
// online is confirmed with a short bounded retry before declaring offline.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	err := m.client.CheckHealth(ctx)
	if err == nil {
		m.transition(true)
		return true
	}
	if !m.IsOnline() {
		return false
	}

	err = retry.Call(retry.CallArgs{
		Func: func() error {
			return m.client.CheckHealth(ctx)
		},
		NotifyFunc: func(err error, attempt int) {
			m.logger.Debug("connectivity_probe_failed", "attempt", attempt, "error", err)
		},
		Attempts: m.confirmAttempts,
		Delay:    m.confirmDelay,
		Clock:    m.clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		m.transition(true)
		return true
	}
	m.transition(false)
	return false
}

// Run probes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.interval):
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) transition(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("connectivity_changed", "online", online)
	m.hub.Publish(events.TopicConnectivityChanged, events.ConnectivityChanged{IsOnline: online})
}
