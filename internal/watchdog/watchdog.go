// Package watchdog reports daemon liveness to a systemd supervisor over
// the sd_notify protocol. When the daemon runs without a supervisor
// (NOTIFY_SOCKET unset) every method degrades to a no-op, so callers
// never branch on how the process was launched.
package watchdog

import (
	"log/slog"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/launchpadtt/phabricator/internal/logging"
)

// NotifyFunc sends one sd_notify state string. It matches the signature
// of daemon.SdNotify from go-systemd.
type NotifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Notifier forwards readiness, keepalive, and shutdown notifications to
// the supervising service manager. Keepalives are throttled so that hot
// loops can call Beat on every step without flooding the notify socket.
type Notifier struct {
	logger   *slog.Logger
	notify   NotifyFunc
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option adjusts a Notifier, mostly for tests.
type Option func(*Notifier)

// WithNotifyFunc replaces the sd_notify transport.
func WithNotifyFunc(fn NotifyFunc) Option {
	return func(n *Notifier) {
		if fn != nil {
			n.notify = fn
		}
	}
}

// WithInterval forces the keepalive cadence instead of deriving it from
// the WatchdogSec window. Zero disables keepalives.
func WithInterval(interval time.Duration) Option {
	return func(n *Notifier) {
		n.interval = interval
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// New builds a Notifier. It probes the environment for a watchdog
// window once at construction; half the window becomes the keepalive
// cadence, which is the cadence systemd documents as safe.
func New(logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		logger:   logging.NewComponentLogger(logger, "watchdog"),
		notify:   sd.SdNotify,
		interval: -1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.interval < 0 {
		n.interval = probeInterval(n.logger)
	}
	if n.interval > 0 {
		n.logger.Info("watchdog keepalive enabled",
			logging.Duration("interval", n.interval))
	}
	return n
}

func probeInterval(logger *slog.Logger) time.Duration {
	window, err := sd.SdWatchdogEnabled(false)
	if err != nil {
		logging.WarnWithContext(logger, "failed to read watchdog configuration", "watchdog_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "supervisor keepalives disabled"))
		return 0
	}
	if window <= 0 {
		return 0
	}
	return window / 2
}

// Ready announces that startup finished and the daemon is serving.
func (n *Notifier) Ready() {
	n.send(sd.SdNotifyReady)
}

// Stopping announces that an orderly shutdown began.
func (n *Notifier) Stopping() {
	n.send(sd.SdNotifyStopping)
}

// Beat sends a watchdog keepalive if one is due. It satisfies the pull
// scheduler's Heartbeat interface and is safe to call at any frequency.
func (n *Notifier) Beat() {
	if n.interval <= 0 {
		return
	}
	now := n.now()

	n.mu.Lock()
	due := n.last.IsZero() || now.Sub(n.last) >= n.interval
	if due {
		n.last = now
	}
	n.mu.Unlock()

	if due {
		n.send(sd.SdNotifyWatchdog)
	}
}

func (n *Notifier) send(state string) {
	if _, err := n.notify(false, state); err != nil {
		logging.WarnWithContext(n.logger, "failed to notify supervisor", "sd_notify_failed",
			logging.String("state", state),
			logging.Error(err),
			logging.String(logging.FieldImpact, "supervisor may consider the daemon unresponsive"))
	}
}
