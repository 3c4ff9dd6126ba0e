// Package destination implements the Destination and Link collaborator
// contracts (§6) and the registry of locally-registered destinations and
// links that the transport core's inbound path delivers to.
//
// These types have no teacher analogue (MeshCore's device/room and
// device/contact model a flat contact list, not Reticulum's
// destination/link object model) so the struct and registry shape is
// grounded instead on the teacher's general conventions: mutex-guarded
// maps, slog-backed loggers, and plain callback fields rather than
// interfaces, matching core/ack.PendingACK and device/connection.Manager.
package destination

import (
	"errors"
	"sync"

	"github.com/arcmesh/transport/core/wire"
)

// Direction is whether a destination accepts inbound traffic or
// originates outbound traffic.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Type distinguishes delivery semantics, per §3's Destination/Link model.
type Type int

const (
	TypePlain Type = iota
	TypeSingle
	TypeLink
	TypeGroup
)

// ProofStrategy controls whether/how a destination auto-proves delivered
// data packets (§4.3.5).
type ProofStrategy int

const (
	ProveNone ProofStrategy = iota
	ProveAll
	ProveApp
)

// Destination is a locally registered application endpoint.
type Destination struct {
	Hash          wire.TruncatedHash
	Direction     Direction
	Type          Type
	ProofStrategy ProofStrategy

	// OnReceive is called when a data or link-request packet is
	// delivered to this destination.
	OnReceive func(packet *wire.Packet)

	// OnProofRequested implements PROVE_APP: called to decide whether to
	// prove a just-delivered packet. A nil func behaves as "never prove".
	OnProofRequested func(packet *wire.Packet) bool

	// OnAnnounce implements `Destination.announce(path_response=bool)`,
	// invoked by the path-request handler (§4.5) when this destination is
	// asked to re-announce itself.
	OnAnnounce func(pathResponse bool)
}

// Receive delivers packet to the destination's receive callback, if set.
func (d *Destination) Receive(packet *wire.Packet) {
	if d.OnReceive != nil {
		d.OnReceive(packet)
	}
}

// LinkStatus is a virtual circuit's lifecycle state.
type LinkStatus int

const (
	LinkPending LinkStatus = iota
	LinkActive
	LinkClosed
)

// Link is an active or pending virtual circuit.
type Link struct {
	ID                wire.TruncatedHash
	Initiator         bool
	Status            LinkStatus
	AttachedInterface string

	OnReceive       func(packet *wire.Packet)
	OnValidateProof func(packet *wire.Packet) bool
}

// Receive delivers packet to the link's receive callback, if set.
func (l *Link) Receive(packet *wire.Packet) {
	if l.OnReceive != nil {
		l.OnReceive(packet)
	}
}

// ValidateProof delegates proof validation to the link's callback,
// defaulting to false (unvalidated) if none is set.
func (l *Link) ValidateProof(packet *wire.Packet) bool {
	if l.OnValidateProof != nil {
		return l.OnValidateProof(packet)
	}
	return false
}

var ErrLinkNotPending = errors.New("destination: activate_link called on a link that is not pending")

// Registry holds the transport core's locally registered destinations and
// links, implementing `register_destination`, `register_link`, and
// `activate_link` from §6.
type Registry struct {
	mu sync.RWMutex

	destinations []*Destination
	pendingLinks map[wire.TruncatedHash]*Link
	activeLinks  map[wire.TruncatedHash]*Link
}

// NewRegistry creates an empty destination/link registry.
func NewRegistry() *Registry {
	return &Registry{
		pendingLinks: make(map[wire.TruncatedHash]*Link),
		activeLinks:  make(map[wire.TruncatedHash]*Link),
	}
}

// RegisterDestination adds an inbound destination to the local set.
// Outbound-only destinations are not tracked for delivery, matching the
// original's `if direction == IN`.
func (r *Registry) RegisterDestination(d *Destination) {
	if d.Direction != DirectionIn {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destinations = append(r.destinations, d)
}

// RegisterLink classifies a link by initiator flag into pending or active.
func (r *Registry) RegisterLink(l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.Initiator {
		r.pendingLinks[l.ID] = l
	} else {
		r.activeLinks[l.ID] = l
	}
}

// ActivateLink promotes a pending (initiator-side) link to active.
func (r *Registry) ActivateLink(id wire.TruncatedHash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.pendingLinks[id]
	if !ok {
		return ErrLinkNotPending
	}
	delete(r.pendingLinks, id)
	l.Status = LinkActive
	r.activeLinks[id] = l
	return nil
}

// FindDestinations returns every registered inbound destination whose
// hash and type match, for link-request and data delivery (§4.3.4, §4.3.5).
func (r *Registry) FindDestinations(hash wire.TruncatedHash, typ Type) []*Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Destination
	for _, d := range r.destinations {
		if d.Hash == hash && d.Type == typ {
			out = append(out, d)
		}
	}
	return out
}

// FindDestinationByHash returns any registered destination for hash,
// regardless of type — used to test "destination is local" in the
// announce path (§4.3.3).
func (r *Registry) FindDestinationByHash(hash wire.TruncatedHash) (*Destination, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.destinations {
		if d.Hash == hash {
			return d, true
		}
	}
	return nil, false
}

// ActiveLink returns the active link with the given link id, if any.
func (r *Registry) ActiveLink(id wire.TruncatedHash) (*Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.activeLinks[id]
	return l, ok
}

// PendingLink returns the pending (initiator-side) link with the given
// link id, if any — used to match a link-request proof to the link that
// initiated it (§4.3.6).
func (r *Registry) PendingLink(id wire.TruncatedHash) (*Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.pendingLinks[id]
	return l, ok
}
