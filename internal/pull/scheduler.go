package pull

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/updater"
)

// Directory resolves the repositories the scheduler works on. An empty
// name list means every known repository; an unknown explicit name is an
// error.
type Directory interface {
	Resolve(ctx context.Context, names []string) ([]*catalog.Repository, error)
}

// Signals exposes the pending urgent update requests.
type Signals interface {
	PendingUpdateRequests(ctx context.Context) ([]catalog.UpdateRequest, error)
}

// Syncer performs the synchronization work for one repository.
type Syncer interface {
	Update(ctx context.Context, repo *catalog.Repository, opts updater.Options) (updater.Result, error)
}

// Heartbeat receives a liveness signal after every scheduling step so the
// process supervisor never mistakes a busy or sleeping loop for a hang.
type Heartbeat interface {
	Beat()
}

type noopHeartbeat struct{}

func (noopHeartbeat) Beat() {}

// Status is a point-in-time snapshot of scheduler progress.
type Status struct {
	Running         bool
	WorkingSet      int
	Tracked         int
	Iterations      uint64
	Syncs           uint64
	Failures        uint64
	LastRepository  string
	LastError       string
	LastIterationAt time.Time
	NextWakeAt      time.Time
}

// Scheduler drives the pull loop over the configured working set.
type Scheduler struct {
	cfg       *config.Config
	directory Directory
	signals   Signals
	syncer    Syncer
	heartbeat Heartbeat
	logger    *slog.Logger

	include     []string
	exclude     []string
	noDiscovery bool

	minimum time.Duration
	tick    time.Duration
	now     func() time.Time
	rng     *rand.Rand

	mu       sync.Mutex
	status   Status
	lastSeen map[int64]int64
}

// Option configures optional scheduler behaviour.
type Option func(*Scheduler)

// WithInclude restricts the working set to the named repositories.
func WithInclude(names ...string) Option {
	return func(s *Scheduler) {
		s.include = append([]string(nil), names...)
	}
}

// WithExclude removes the named repositories from the working set.
func WithExclude(names ...string) Option {
	return func(s *Scheduler) {
		s.exclude = append([]string(nil), names...)
	}
}

// WithNoDiscovery passes the discovery-disabling flag through to every
// update.
func WithNoDiscovery(disabled bool) Option {
	return func(s *Scheduler) {
		s.noDiscovery = disabled
	}
}

// WithHeartbeat installs the liveness sink.
func WithHeartbeat(hb Heartbeat) Option {
	return func(s *Scheduler) {
		if hb != nil {
			s.heartbeat = hb
		}
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleepIncrement overrides the sleep polling increment (used in tests).
func WithSleepIncrement(tick time.Duration) Option {
	return func(s *Scheduler) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithRand overrides the randomness source for the cold-start shuffle
// (used in tests).
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// New constructs a scheduler over the given collaborators.
func New(cfg *config.Config, directory Directory, signals Signals, syncer Syncer, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if cfg == nil || directory == nil || signals == nil || syncer == nil {
		return nil, errors.New("scheduler requires config, directory, signals, and syncer")
	}
	s := &Scheduler{
		cfg:       cfg,
		directory: directory,
		signals:   signals,
		syncer:    syncer,
		heartbeat: noopHeartbeat{},
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		minimum:   time.Duration(cfg.Pull.MinimumInterval) * time.Second,
		tick:      time.Second,
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		lastSeen:  map[int64]int64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.minimum <= 0 {
		s.minimum = 15 * time.Second
	}
	return s, nil
}

// Status returns a snapshot of scheduler progress.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = running
}

func (s *Scheduler) noteIteration(workingSet, tracked int, wake time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Iterations++
	s.status.WorkingSet = workingSet
	s.status.Tracked = tracked
	s.status.LastIterationAt = s.now()
	s.status.NextWakeAt = wake
}

func (s *Scheduler) noteOutcome(repo *catalog.Repository, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRepository = repo.Name
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		return
	}
	s.status.Syncs++
}

func (s *Scheduler) snapshotSignals(requests []catalog.UpdateRequest) {
	seen := make(map[int64]int64, len(requests))
	for _, req := range requests {
		seen[req.RepositoryID] = req.Epoch
	}
	s.mu.Lock()
	s.lastSeen = seen
	s.mu.Unlock()
}

func (s *Scheduler) seenSignals() map[int64]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
