package transport

import (
	"github.com/arcmesh/transport/core/wire"
)

// Outbound sends an application-constructed packet, per §4.2. Returns
// whether any transmission actually occurred.
func (t *Transport) Outbound(packet *wire.Packet) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	packet.UpdateHash()
	sent := false

	if !packet.IsAnnounce() {
		if entry, ok := t.tables.destination[packet.DestinationHash]; ok {
			sent = t.outboundViaPath(packet, entry)
			if sent {
				t.finishSend(packet)
			}
			return sent
		}
	}

	sent = t.outboundFlood(packet)
	if sent {
		t.finishSend(packet)
	}
	return sent
}

// outboundViaPath emits packet along a known Destination Table route.
func (t *Transport) outboundViaPath(packet *wire.Packet, entry *destinationEntry) bool {
	in, ok := t.interfaces[entry.learnedOnInterface]
	if !ok || !in.MayTransmit {
		return false
	}

	if entry.hopCount > 1 {
		rewritten, err := wire.RewriteInsertTransport(packet.Raw, entry.nextHopTransportID)
		if err != nil {
			t.log.Debug("rewriting outbound packet for transport", "error", err)
			return false
		}
		if err := in.Emit(rewritten); err != nil {
			t.log.Debug("emitting transported outbound packet", "interface", in.ID, "error", err)
			return false
		}
	} else {
		if err := in.Emit(packet.Raw); err != nil {
			t.log.Debug("emitting direct outbound packet", "interface", in.ID, "error", err)
			return false
		}
	}
	entry.lastUsedAt = t.nowFn()
	return true
}

// outboundFlood emits packet on every eligible transmit-capable
// interface (§4.2 step 4), for unknown-path packets and announces.
func (t *Transport) outboundFlood(packet *wire.Packet) bool {
	sentAny := false
	for _, in := range t.interfaces {
		if !in.MayTransmit {
			continue
		}
		if packet.AttachedInterface != "" && in.ID != packet.AttachedInterface {
			continue
		}
		if packet.IsLinkDestination {
			if packet.LinkClosed {
				continue
			}
			if packet.LinkAttachedInterface != "" && in.ID != packet.LinkAttachedInterface {
				continue
			}
		}
		if err := in.Emit(packet.Raw); err != nil {
			t.log.Debug("emitting flooded outbound packet", "interface", in.ID, "error", err)
			continue
		}
		sentAny = true
	}
	return sentAny
}

// finishSend marks packet sent, registers a receipt for non-plain DATA
// packets, and invokes the cache policy (§4.2 step 5).
func (t *Transport) finishSend(packet *wire.Packet) {
	packet.Sent = true
	packet.SentAt = t.nowFn().Unix()

	if packet.IsData() && packet.DestType != wire.DestTypePlain {
		t.receipts.Register(packet.TruncatedPacketHash(), nil)
	}
	if t.CachePolicy != nil {
		t.CachePolicy(packet)
	}
}
