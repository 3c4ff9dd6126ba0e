package advert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcmesh/transport/core/wire"
)

const (
	// DefaultLocalInterval is how often a node re-announces immediately
	// after startup or a reachability change, giving nearby peers a
	// quick path before the slower propagation interval takes over.
	DefaultLocalInterval = 2 * time.Minute

	// DefaultPropagationInterval is the steady-state full-network
	// re-announce period.
	DefaultPropagationInterval = 12 * time.Hour

	tickInterval = time.Second
)

// SchedulerConfig configures the self-announce scheduler.
type SchedulerConfig struct {
	// LocalInterval is the fast re-announce period. Zero disables it,
	// unless PropagationInterval is also zero: NewScheduler then applies
	// both defaults.
	LocalInterval time.Duration

	// PropagationInterval is the steady-state re-announce period. Zero
	// disables it, with the same both-zero exception as LocalInterval.
	// Firing it also resets LocalInterval's timer.
	PropagationInterval time.Duration

	Logger *slog.Logger
}

// Scheduler periodically rebuilds and re-emits this node's own
// announce. It manages two independent timers: LocalInterval for quick
// re-announcement and PropagationInterval for the long-period
// full-network refresh; firing the propagation timer also resets the
// local one.
type Scheduler struct {
	cfg   SchedulerConfig
	log   *slog.Logger
	emit  func(pkt *wire.Packet) bool
	build Builder

	mu              sync.Mutex
	nextLocal       time.Time
	nextPropagation time.Time
	cancel          context.CancelFunc
	nowFn           func() time.Time
}

// NewScheduler creates a self-announce scheduler. emit is the sending
// side (typically (*transport.Transport).Outbound, wrapped to accept
// the *wire.Packet build produces); build constructs a fresh signed
// announce on every call.
func NewScheduler(emit func(pkt *wire.Packet) bool, build Builder, cfg SchedulerConfig) *Scheduler {
	if cfg.LocalInterval == 0 && cfg.PropagationInterval == 0 {
		cfg.LocalInterval = DefaultLocalInterval
		cfg.PropagationInterval = DefaultPropagationInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:   cfg,
		log:   logger.WithGroup("advert"),
		emit:  emit,
		build: build,
		nowFn: time.Now,
	}
}

// Start begins the periodic announce loop, blocking until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.resetTimers()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTimers()
		}
	}
}

// Stop cancels the announce loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SendNow triggers an immediate announce and, once it is emitted, resets
// the local timer. If propagate is true it also resets the propagation
// timer, matching a scheduled propagation announce.
func (s *Scheduler) SendNow(propagate bool) {
	pkt, err := s.build()
	if err != nil {
		s.log.Warn("building self-announce", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.emit(pkt) {
		s.log.Debug("self-announce emission failed")
		return
	}
	if propagate {
		s.resetPropagationTimerLocked()
	}
	s.resetLocalTimerLocked()
}

func (s *Scheduler) checkTimers() {
	s.mu.Lock()
	now := s.nowFn()

	if !s.nextPropagation.IsZero() && !now.Before(s.nextPropagation) {
		s.mu.Unlock()
		s.emitScheduled()
		s.mu.Lock()
		s.resetPropagationTimerLocked()
		s.resetLocalTimerLocked()
		s.mu.Unlock()
		return
	}

	if !s.nextLocal.IsZero() && !now.Before(s.nextLocal) {
		s.mu.Unlock()
		s.emitScheduled()
		s.mu.Lock()
		s.resetLocalTimerLocked()
		s.mu.Unlock()
		return
	}

	s.mu.Unlock()
}

func (s *Scheduler) emitScheduled() {
	pkt, err := s.build()
	if err != nil {
		s.log.Warn("building scheduled self-announce", "error", err)
		return
	}
	if !s.emit(pkt) {
		s.log.Debug("scheduled self-announce emission failed")
	}
}

func (s *Scheduler) resetTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocalTimerLocked()
	s.resetPropagationTimerLocked()
}

func (s *Scheduler) resetLocalTimerLocked() {
	if s.cfg.LocalInterval > 0 {
		s.nextLocal = s.nowFn().Add(s.cfg.LocalInterval)
	} else {
		s.nextLocal = time.Time{}
	}
}

func (s *Scheduler) resetPropagationTimerLocked() {
	if s.cfg.PropagationInterval > 0 {
		s.nextPropagation = s.nowFn().Add(s.cfg.PropagationInterval)
	} else {
		s.nextPropagation = time.Time{}
	}
}
