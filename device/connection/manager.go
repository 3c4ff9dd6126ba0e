// Package connection tracks per-link keep-alive activity for the
// transport core's virtual circuits (§3's Link Table, §6's KEEPALIVE
// context), evicting links whose peer has gone quiet.
//
// Adapted from the teacher's peer keep-alive/timeout tracker
// (core.MeshCoreID peers, checkConnections()'s last_activity sweep):
// same Register/Touch/CheckTimeouts shape, rekeyed from a flat peer id
// to a Link's wire.TruncatedHash identity.
package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcmesh/transport/core/wire"
)

const (
	// DefaultKeepAliveInterval is the default interval between keep-alive
	// messages. Peers that haven't been heard from within
	// KeepAliveInterval × TimeoutMultiplier are considered disconnected.
	DefaultKeepAliveInterval = 30 * time.Second

	// DefaultTimeoutMultiplier is the default multiplier applied to
	// KeepAliveInterval to determine the disconnect timeout.
	// Firmware uses 2.5 (5/2).
	DefaultTimeoutMultiplier = 2.5

	// checkInterval is the resolution of the manager's timeout check loop.
	checkInterval = time.Second
)

// LinkState tracks an active link's keep-alive activity.
type LinkState struct {
	ID       wire.TruncatedHash
	LastSeen time.Time
}

// ManagerConfig configures a connection Manager.
type ManagerConfig struct {
	// KeepAliveInterval is the expected interval between keep-alive messages.
	// Default: 30 seconds.
	KeepAliveInterval time.Duration

	// TimeoutMultiplier is applied to KeepAliveInterval to determine when
	// a link is considered dead. Default: 2.5.
	TimeoutMultiplier float64

	// Logger for connection events. Falls back to slog.Default() if nil.
	Logger *slog.Logger

	// NowFn overrides time.Now, letting a caller keep the manager's clock
	// in step with its own (e.g. a Transport's nowFn). Falls back to
	// time.Now if nil.
	NowFn func() time.Time
}

// Manager tracks active links and detects keep-alive timeouts, the
// activity-driven half of §4.4's LinkTimeout eviction (the maintenance
// loop's table cull is age-since-last-use; this is the same idea
// surfaced as an explicit, externally drivable component so a link's
// KEEPALIVE traffic can reset its clock without touching the table
// lock directly).
type Manager struct {
	cfg          ManagerConfig
	log          *slog.Logger
	mu           sync.Mutex
	links        map[wire.TruncatedHash]*LinkState
	onDisconnect func(id wire.TruncatedHash)
	cancel       context.CancelFunc

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// NewManager creates a connection manager with the given configuration.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.TimeoutMultiplier <= 0 {
		cfg.TimeoutMultiplier = DefaultTimeoutMultiplier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := cfg.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{
		cfg:   cfg,
		log:   logger.WithGroup("connection"),
		links: make(map[wire.TruncatedHash]*LinkState),
		nowFn: nowFn,
	}
}

// SetOnDisconnect sets the callback invoked when a link times out.
func (m *Manager) SetOnDisconnect(fn func(id wire.TruncatedHash)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// Register starts tracking a link. If already tracked, its LastSeen
// time is updated (equivalent to Touch).
func (m *Manager) Register(id wire.TruncatedHash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[id] = &LinkState{
		ID:       id,
		LastSeen: m.nowFn(),
	}
}

// Touch updates the last-seen time for a link. Does nothing if the link
// is not tracked.
func (m *Manager) Touch(id wire.TruncatedHash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.links[id]; ok {
		p.LastSeen = m.nowFn()
	}
}

// Remove explicitly stops tracking a link. The OnDisconnect callback is
// NOT called (use this for a graceful, explicit link close).
func (m *Manager) Remove(id wire.TruncatedHash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, id)
}

// IsConnected returns true if the link is currently tracked.
func (m *Manager) IsConnected(id wire.TruncatedHash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[id]
	return ok
}

// ConnectedCount returns the number of tracked links.
func (m *Manager) ConnectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// CheckTimeouts checks all tracked links for keep-alive timeout and
// removes those that have exceeded the timeout threshold.
func (m *Manager) CheckTimeouts() {
	m.mu.Lock()
	now := m.nowFn()
	timeout := time.Duration(float64(m.cfg.KeepAliveInterval) * m.cfg.TimeoutMultiplier)

	var timedOut []wire.TruncatedHash
	for id, p := range m.links {
		if now.Sub(p.LastSeen) > timeout {
			timedOut = append(timedOut, id)
		}
	}

	for _, id := range timedOut {
		delete(m.links, id)
	}

	onDisconnect := m.onDisconnect
	m.mu.Unlock()

	// Fire callbacks outside the lock
	if onDisconnect != nil {
		for _, id := range timedOut {
			m.log.Debug("link timed out", "link", id)
			onDisconnect(id)
		}
	}
}

// Start begins the periodic timeout check loop. Blocks until the context
// is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckTimeouts()
		}
	}
}

// Stop cancels the manager's context, stopping the timeout check loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
