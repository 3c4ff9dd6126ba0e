// Package receipt implements the PacketReceipt collaborator (§6): proof
// tracking for outbound DATA packets sent to non-plain destinations.
//
// The shape follows core/ack.Tracker — a mutex-guarded map, an injectable
// clock, and a periodic timeout sweep that collects victims under the
// lock and fires callbacks after releasing it — adapted from a 4-byte
// ACK-hash keyspace to the transport core's TruncatedHash keyspace and
// from single-shot ACK/timeout callbacks to the proof-validate/timeout
// contract the transport core's Outbound/Inbound paths need.
package receipt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcmesh/transport/core/wire"
)

// Status is the lifecycle state of an outstanding receipt.
type Status int

const (
	StatusSent Status = iota
	StatusDelivered
	StatusTimedOut
)

// DefaultTimeout is how long a receipt waits for a proof before it is
// considered timed out absent any guidance from the destination's own
// retry policy.
const DefaultTimeout = 15 * time.Second

// checkInterval mirrors the maintenance loop's 1-second receipt sweep
// (§4.4.1).
const checkInterval = time.Second

// Receipt tracks one outbound packet awaiting a proof.
type Receipt struct {
	Hash   wire.TruncatedHash
	Status Status

	// OnTimeout is invoked once, outside any lock, when the receipt times
	// out without a matching proof. May be nil.
	OnTimeout func()

	sentAt  time.Time
	timeout time.Duration
}

// ValidateProofPacket marks the receipt delivered if proofHash is nil (an
// unaddressed generic proof is checked against every outstanding receipt
// per §4.3.6) or matches this receipt's hash. Returns true if the receipt
// was matched and is no longer pending.
func (r *Receipt) ValidateProofPacket(proofHash *wire.TruncatedHash) bool {
	if r.Status != StatusSent {
		return false
	}
	if proofHash != nil && *proofHash != r.Hash {
		return false
	}
	r.Status = StatusDelivered
	return true
}

// TrackerConfig configures a receipt Tracker.
type TrackerConfig struct {
	// Timeout is how long a receipt may remain SENT before it is dropped.
	// Default: DefaultTimeout.
	Timeout time.Duration

	// Logger for receipt events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Tracker holds the transport core's outstanding Receipts collection.
type Tracker struct {
	cfg      TrackerConfig
	log      *slog.Logger
	mu       sync.Mutex
	receipts map[wire.TruncatedHash]*Receipt
	cancel   context.CancelFunc

	nowFn func() time.Time
}

// NewTracker creates a receipt Tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:      cfg,
		log:      logger.WithGroup("receipt"),
		receipts: make(map[wire.TruncatedHash]*Receipt),
		nowFn:    time.Now,
	}
}

// Register adds a new outstanding receipt, per §4.2 step 5 ("register a
// receipt for proof tracking").
func (t *Tracker) Register(hash wire.TruncatedHash, onTimeout func()) *Receipt {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := &Receipt{
		Hash:      hash,
		Status:    StatusSent,
		OnTimeout: onTimeout,
		sentAt:    t.nowFn(),
		timeout:   t.cfg.Timeout,
	}
	t.receipts[hash] = r
	return r
}

// ValidateProof attempts to validate an incoming proof against outstanding
// receipts, per §4.3.6's generic-proof rule: if proofHash is set, only the
// matching receipt is considered; otherwise every outstanding receipt is
// tried. Matched (delivered) receipts are removed. Returns true if any
// receipt was matched.
func (t *Tracker) ValidateProof(proofHash *wire.TruncatedHash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	matched := false
	if proofHash != nil {
		if r, ok := t.receipts[*proofHash]; ok && r.ValidateProofPacket(proofHash) {
			delete(t.receipts, *proofHash)
			matched = true
		}
		return matched
	}

	for hash, r := range t.receipts {
		if r.ValidateProofPacket(nil) {
			delete(t.receipts, hash)
			matched = true
		}
	}
	return matched
}

// PendingCount returns the number of outstanding receipts.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.receipts)
}

// checkTimeouts sweeps receipts, dropping any no longer in SENT state and
// timing out any that have exceeded their deadline. Mirrors §4.4.1:
// "for each outstanding receipt, spawn an independent timeout-check; drop
// receipts no longer in SENT state."
func (t *Tracker) checkTimeouts() {
	t.mu.Lock()
	now := t.nowFn()

	var victims []wire.TruncatedHash
	var timedOut []*Receipt
	for hash, r := range t.receipts {
		switch {
		case r.Status != StatusSent:
			victims = append(victims, hash)
		case now.Sub(r.sentAt) > r.timeout:
			r.Status = StatusTimedOut
			victims = append(victims, hash)
			timedOut = append(timedOut, r)
		}
	}
	for _, hash := range victims {
		delete(t.receipts, hash)
	}
	t.mu.Unlock()

	for _, r := range timedOut {
		if r.OnTimeout != nil {
			r.OnTimeout()
		}
	}
}

// Start begins the periodic timeout sweep. Blocks until ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkTimeouts()
		}
	}
}

// Stop cancels the sweep loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
