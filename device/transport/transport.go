// Package transport implements the Transport core (§1-§9): the
// concurrent packet-forwarding engine that learns multi-hop paths from
// flood announces, forwards unicast packets along them, maintains
// reverse-path and link-layer virtual-circuit state, suppresses
// duplicates, and periodically expires stale state.
//
// Structurally this is the teacher's device/router.Router reworked
// around Reticulum's four-table model instead of MeshCore's single
// flood/direct distinction: same gate-sequence HandlePacket style, same
// SendQueue-flavored outbound drain loop, same slog/Config/nowFn
// conventions, generalized to Announce/Destination/Reverse/Link tables.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arcmesh/transport/core/destination"
	"github.com/arcmesh/transport/core/hashlist"
	"github.com/arcmesh/transport/core/identity"
	"github.com/arcmesh/transport/core/receipt"
	"github.com/arcmesh/transport/core/wire"
	"github.com/arcmesh/transport/device/connection"
)

// ErrNoInterfaces is returned by New when no interfaces are supplied;
// kept as a constructor-time check since an Interface-less Transport can
// never emit anything (§4.2 step 4 has nothing to iterate).
var ErrNoInterfaces = errors.New("transport: at least one interface is required")

// ErrNoIdentity is returned by New when self is nil; the transport id
// checks in dispatch and rebuildAnnounce require a local identity.
var ErrNoIdentity = errors.New("transport: a local identity is required")

// WellKnownAppName is the application name of the path-request
// destination (§6).
const WellKnownAppName = "rnstransport"

// Transport is the single long-lived routing core described by §1-§9. All
// table mutation is serialized by mu — a single mutex per §5/§9's design
// note, replacing the original's jobs_running/jobs_locked busy-wait dance.
type Transport struct {
	cfg Config
	log *slog.Logger

	self *identity.Identity

	mu     sync.Mutex
	tables *tables

	hashlist *hashlist.Hashlist
	receipts *receipt.Tracker

	destinations *destination.Registry
	identities   *identity.Registry

	// links tracks Link Table keep-alive activity (§3, §4.4 step 4); its
	// OnDisconnect callback is what actually evicts a timed-out Link Table
	// entry, called from cullExpiredEntries while mu is already held.
	links *connection.Manager

	interfaces map[string]*Interface

	// CachePolicy is invoked for every packet admitted by the filter or
	// successfully emitted (§4.1, §4.2 step 5). The file-based cache
	// itself is an external collaborator; nil disables caching.
	CachePolicy func(*wire.Packet)

	// AnnounceDecoder parses an announce packet's application payload.
	// Building/parsing that payload is application-level framing, out of
	// scope for this package; nil causes every announce to be dropped as
	// a decode failure.
	AnnounceDecoder func(*wire.Packet) (*wire.AnnouncePayload, error)

	// ProofBuilder constructs a proof packet for a just-delivered data
	// packet, honoring PROVE_ALL/PROVE_APP (§4.3.5). nil disables
	// auto-proving.
	ProofBuilder func(*wire.Packet) *wire.Packet

	// retransmitQueue accumulates packets the maintenance loop wants to
	// emit; flushed via Outbound after the lock is released (§4.4, §5).
	retransmitQueue []*wire.Packet

	cancel context.CancelFunc

	nowFn func() time.Time
}

// New creates a Transport bound to the given local identity and set of
// link-layer interfaces.
func New(cfg Config, self *identity.Identity, interfaces []*Interface, logger *slog.Logger) (*Transport, error) {
	if len(interfaces) == 0 {
		return nil, ErrNoInterfaces
	}
	if self == nil {
		return nil, ErrNoIdentity
	}
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	hl, err := loadHashlist(cfg)
	if err != nil {
		logger.Error("loading persisted hashlist, starting empty", "error", err)
	}

	t := &Transport{
		cfg:          cfg,
		log:          logger.WithGroup("transport"),
		self:         self,
		tables:       newTables(),
		hashlist:     hl,
		receipts:     receipt.NewTracker(receipt.TrackerConfig{Logger: logger}),
		destinations: destination.NewRegistry(),
		identities:   identity.NewRegistry(),
		interfaces:   make(map[string]*Interface, len(interfaces)),
		nowFn:        time.Now,
	}
	for _, in := range interfaces {
		t.interfaces[in.ID] = in
	}
	t.identities.Remember(self)

	t.links = connection.NewManager(connection.ManagerConfig{
		KeepAliveInterval: cfg.KeepAliveInterval,
		TimeoutMultiplier: float64(cfg.LinkTimeout) / float64(cfg.KeepAliveInterval),
		Logger:            logger,
		NowFn:             func() time.Time { return t.nowFn() },
	})
	t.links.SetOnDisconnect(func(id wire.TruncatedHash) {
		delete(t.tables.link, id)
	})

	t.RegisterPathRequestHandler()
	return t, nil
}

func loadHashlist(cfg Config) (*hashlist.Hashlist, error) {
	if cfg.HashlistPath == "" {
		return hashlist.New(cfg.HashlistMax), nil
	}
	return hashlist.LoadFrom(cfg.HashlistPath, cfg.HashlistMax)
}

// Start launches the maintenance loop and receipt sweep. Blocks until ctx
// is cancelled or Stop is called.
func (t *Transport) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.receipts.Start(ctx)

	ticker := time.NewTicker(t.cfg.MaintenanceInterval)
	defer ticker.Stop()

	lastAnnounceCheck := t.nowFn()
	lastTablesCull := t.nowFn()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := t.nowFn()
			checkAnnounce := now.Sub(lastAnnounceCheck) >= t.cfg.AnnounceCheckInterval
			cullTables := now.Sub(lastTablesCull) >= t.cfg.TablesCullInterval
			if checkAnnounce {
				lastAnnounceCheck = now
			}
			if cullTables {
				lastTablesCull = now
			}
			t.runMaintenanceCycle(checkAnnounce, cullTables)
		}
	}
}

// Stop halts the maintenance loop and receipt sweep, and persists the
// hashlist if a path was configured (§6's exit_handler).
func (t *Transport) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	path := t.cfg.HashlistPath
	hl := t.hashlist
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.receipts.Stop()

	return t.exitHandler(path, hl)
}

// exitHandler persists the hashlist, per §6's `exit_handler()` contract
// and §9's resolved text-vs-binary note (os.WriteFile always writes the
// exact bytes given, so there is no mode to get wrong in Go).
func (t *Transport) exitHandler(path string, hl *hashlist.Hashlist) error {
	if path == "" {
		return nil
	}
	if err := hl.SaveTo(path); err != nil {
		t.log.Error("persisting hashlist", "error", err)
		return err
	}
	return nil
}

// RegisterDestination adds an inbound destination to the local set.
func (t *Transport) RegisterDestination(d *destination.Destination) {
	t.destinations.RegisterDestination(d)
}

// RegisterLink classifies a link by initiator flag into pending or active.
func (t *Transport) RegisterLink(l *destination.Link) {
	t.destinations.RegisterLink(l)
}

// ActivateLink promotes a pending (initiator-side) link to active.
func (t *Transport) ActivateLink(id wire.TruncatedHash) error {
	return t.destinations.ActivateLink(id)
}

// HasPath reports whether a route to destHash is currently known.
func (t *Transport) HasPath(destHash wire.TruncatedHash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tables.destination[destHash]
	return ok
}

// flushRetransmitQueue emits every packet the maintenance loop queued,
// outside the table lock to avoid reentrancy on interface drivers (§5).
func (t *Transport) flushRetransmitQueue() {
	t.mu.Lock()
	queued := t.retransmitQueue
	t.retransmitQueue = nil
	t.mu.Unlock()

	for _, pkt := range queued {
		t.Outbound(pkt)
	}
}
