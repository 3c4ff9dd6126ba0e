package transport

import (
	"bytes"

	"github.com/arcmesh/transport/core/destination"
	"github.com/arcmesh/transport/core/wire"
)

// Inbound processes a packet received on in, per §4.3. pkt must already
// be unpacked (Raw decoded via wire.Packet.ReadFrom, DestinationHash /
// DestType / Context populated from the application payload) — that
// unpacking is the Packet collaborator's job (§6), out of scope here.
// A caller whose unpack step fails should never call Inbound at all,
// matching §7's "decode failure: drop silently at the filter boundary".
func (t *Transport) Inbound(pkt *wire.Packet, in *Interface) {
	pkt.Hops++
	pkt.ReceivingInterface = in.ID

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.admitted(pkt) {
		return
	}

	full := pkt.UpdateHash()
	t.hashlist.Add(full)
	if t.CachePolicy != nil {
		t.CachePolicy(pkt)
	}

	t.dispatch(pkt, in)
}

// admitted implements the Packet Filter (§4.1).
func (t *Transport) admitted(pkt *wire.Packet) bool {
	switch pkt.Context {
	case wire.ContextKeepalive, wire.ContextResourceRequest, wire.ContextResourceProof:
		return true
	}
	if pkt.IsAnnounce() {
		return true
	}
	return !t.hashlist.Contains(pkt.UpdateHash())
}

// dispatch classifies an admitted packet and routes it to the matching
// handler. Transport forwarding (§4.3.1) takes priority for any
// non-announce packet explicitly addressed to this node's transport id
// (the wire address field carries the first TransportIDSize bytes of it);
// a mismatched transport id means another node is the intended carrier.
func (t *Transport) dispatch(pkt *wire.Packet, in *Interface) {
	if pkt.TransportID != nil && !pkt.IsAnnounce() {
		self := t.self.Hash()
		if !bytes.Equal(pkt.TransportID[:wire.TransportIDSize], self[:wire.TransportIDSize]) {
			return
		}
		t.handleTransportForward(pkt, in)
		return
	}

	switch {
	case pkt.IsAnnounce():
		t.handleAnnounce(pkt, in)
	case pkt.IsLinkRequest():
		t.handleLinkRequestDelivery(pkt, in)
	case pkt.IsProof():
		t.handleProof(pkt, in)
	case pkt.IsData():
		if _, forwarding := t.tables.link[pkt.DestinationHash]; forwarding {
			t.handleLinkForward(pkt, in)
		} else {
			t.handleDataDelivery(pkt, in)
		}
	}
}

// handleLinkRequestDelivery implements §4.3.4.
func (t *Transport) handleLinkRequestDelivery(pkt *wire.Packet, in *Interface) {
	for _, d := range t.destinations.FindDestinations(pkt.DestinationHash, destination.TypeLink) {
		d.Receive(pkt)
	}
}

// handleDataDelivery implements §4.3.5.
func (t *Transport) handleDataDelivery(pkt *wire.Packet, in *Interface) {
	if pkt.DestType == wire.DestTypeLink {
		if l, ok := t.destinations.ActiveLink(pkt.DestinationHash); ok {
			l.Receive(pkt)
		}
		return
	}

	typ := destinationTypeFromWire(pkt.DestType)
	for _, d := range t.destinations.FindDestinations(pkt.DestinationHash, typ) {
		d.Receive(pkt)
		t.honorProofStrategy(d, pkt)
	}
}

func (t *Transport) honorProofStrategy(d *destination.Destination, pkt *wire.Packet) {
	switch d.ProofStrategy {
	case destination.ProveAll:
		t.synthesizeProof(pkt)
	case destination.ProveApp:
		if d.OnProofRequested != nil && d.OnProofRequested(pkt) {
			t.synthesizeProof(pkt)
		}
	}
}

// synthesizeProof builds and sends a proof for a just-delivered data
// packet, emitting it the same way Outbound would but without
// re-acquiring the lock the caller already holds.
func (t *Transport) synthesizeProof(dataPkt *wire.Packet) {
	if t.ProofBuilder == nil {
		return
	}
	proof := t.ProofBuilder(dataPkt)
	if proof == nil {
		return
	}
	proof.UpdateHash()

	if entry, ok := t.tables.destination[proof.DestinationHash]; ok {
		if t.outboundViaPath(proof, entry) {
			t.finishSend(proof)
		}
		return
	}
	if t.outboundFlood(proof) {
		t.finishSend(proof)
	}
}

func destinationTypeFromWire(dt uint8) destination.Type {
	switch dt {
	case wire.DestTypeSingle:
		return destination.TypeSingle
	case wire.DestTypeGroup:
		return destination.TypeGroup
	case wire.DestTypeLink:
		return destination.TypeLink
	default:
		return destination.TypePlain
	}
}
