package transport

import (
	"github.com/arcmesh/transport/core/wire"
)

// handleTransportForward implements §4.3.1. Called with the lock already
// held, only for non-announce packets whose transport id matches this
// node.
func (t *Transport) handleTransportForward(pkt *wire.Packet, in *Interface) {
	entry, ok := t.tables.destination[pkt.DestinationHash]
	if !ok {
		t.log.Debug("no path for transported packet", "error", errNoPath, "destination", pkt.DestinationHash)
		return
	}
	outIn, ok := t.interfaces[entry.learnedOnInterface]
	if !ok || !outIn.MayTransmit {
		return
	}

	// pkt.Hops already reflects hops-as-seen-here (Inbound incremented it
	// before dispatch); the rewrite below just writes that value out.
	newHops := pkt.Hops
	var rewritten []byte
	var err error
	if entry.hopCount > 1 {
		rewritten, err = wire.RewriteForwardedHop(pkt.Raw, newHops, entry.nextHopTransportID)
	} else {
		rewritten, err = wire.RewriteLastTransportHop(pkt.Raw, newHops)
	}
	if err != nil {
		t.log.Debug("rewriting forwarded packet", "error", err)
		return
	}

	if err := outIn.Emit(rewritten); err != nil {
		t.log.Debug("emitting forwarded packet", "interface", outIn.ID, "error", err)
		return
	}
	entry.lastUsedAt = t.nowFn()

	forwarded := &wire.Packet{Raw: rewritten}
	key := forwarded.TruncatedPacketHash()
	if pkt.IsLinkRequest() {
		t.tables.link[key] = &linkEntry{
			lastUsedAt:         t.nowFn(),
			nextHopTransportID: entry.nextHopTransportID,
			nextHopInterface:   outIn.ID,
			remainingHops:      entry.hopCount,
			receivingInterface: pkt.ReceivingInterface,
			takenHops:          pkt.Hops,
			destinationHash:    pkt.DestinationHash,
		}
		t.links.Register(key)
	} else {
		t.tables.reverse[key] = &reverseEntry{
			inboundInterface:  pkt.ReceivingInterface,
			outboundInterface: outIn.ID,
			createdAt:         t.nowFn(),
		}
	}
}

// handleLinkForward implements §4.3.2. Called with the lock held, for
// non-announce, non-link-request packets whose destination hash is a
// known Link Table entry.
func (t *Transport) handleLinkForward(pkt *wire.Packet, in *Interface) {
	entry, ok := t.tables.link[pkt.DestinationHash]
	if !ok {
		return
	}

	var outInID string
	switch {
	case entry.nextHopInterface == entry.receivingInterface:
		if pkt.Hops != entry.remainingHops && pkt.Hops != entry.takenHops {
			return
		}
		outInID = entry.nextHopInterface
	case in.ID == entry.nextHopInterface && pkt.Hops == entry.remainingHops:
		outInID = entry.receivingInterface
	case in.ID == entry.receivingInterface && pkt.Hops == entry.takenHops:
		outInID = entry.nextHopInterface
	default:
		t.log.Debug("link packet on unexpected interface", "error", errInterfaceMismatch, "link", pkt.DestinationHash)
		return
	}

	outIn, ok := t.interfaces[outInID]
	if !ok || !outIn.MayTransmit {
		return
	}
	rewritten, err := wire.RewriteHopOnly(pkt.Raw, pkt.Hops)
	if err != nil {
		return
	}
	if err := outIn.Emit(rewritten); err != nil {
		t.log.Debug("emitting link-forwarded packet", "interface", outIn.ID, "error", err)
		return
	}
	entry.lastUsedAt = t.nowFn()
	t.links.Touch(pkt.DestinationHash)
}

// handleProof implements §4.3.6, dispatching by proof context.
func (t *Transport) handleProof(pkt *wire.Packet, in *Interface) {
	switch pkt.Context {
	case wire.ContextLinkRequestProof:
		t.handleLinkRequestProof(pkt, in)
	case wire.ContextResourceProof:
		if l, ok := t.destinations.ActiveLink(pkt.DestinationHash); ok {
			l.Receive(pkt)
		}
	default:
		t.handleGenericProof(pkt, in)
	}
}

func (t *Transport) handleLinkRequestProof(pkt *wire.Packet, in *Interface) {
	if entry, ok := t.tables.link[pkt.DestinationHash]; ok && in.ID == entry.nextHopInterface {
		entry.validated = true
		rewritten, err := wire.RewriteHopOnly(pkt.Raw, pkt.Hops)
		if err != nil {
			return
		}
		outIn, ok := t.interfaces[entry.receivingInterface]
		if !ok || !outIn.MayTransmit {
			return
		}
		if err := outIn.Emit(rewritten); err != nil {
			t.log.Debug("emitting link-request proof", "interface", outIn.ID, "error", err)
			return
		}
		entry.lastUsedAt = t.nowFn()
		t.links.Touch(pkt.DestinationHash)
		return
	}

	if l, ok := t.destinations.PendingLink(pkt.DestinationHash); ok {
		l.ValidateProof(pkt)
	}
}

func (t *Transport) handleGenericProof(pkt *wire.Packet, in *Interface) {
	if entry, ok := t.tables.reverse[pkt.DestinationHash]; ok && in.ID == entry.outboundInterface {
		delete(t.tables.reverse, pkt.DestinationHash)
		if rewritten, err := wire.RewriteHopOnly(pkt.Raw, pkt.Hops); err == nil {
			if outIn, ok := t.interfaces[entry.inboundInterface]; ok && outIn.MayTransmit {
				if err := outIn.Emit(rewritten); err != nil {
					t.log.Debug("emitting reverse-path proof", "interface", outIn.ID, "error", err)
				}
			}
		}
	}

	// A proof's destination hash doubles as an explicit receipt hash when
	// it matches one (§4.3.6); otherwise fall back to trying every
	// outstanding receipt, covering generic/implicit proofs.
	proofHash := pkt.DestinationHash
	if !t.receipts.ValidateProof(&proofHash) {
		t.receipts.ValidateProof(nil)
	}
}
