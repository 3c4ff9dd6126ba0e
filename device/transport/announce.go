package transport

import (
	"time"

	"github.com/arcmesh/transport/core/identity"
	"github.com/arcmesh/transport/core/wire"
	"github.com/arcmesh/transport/internal/randjitter"
)

// handleAnnounce implements §4.3.3. Called with the table lock already
// held by Inbound.
func (t *Transport) handleAnnounce(pkt *wire.Packet, in *Interface) {
	if _, local := t.destinations.FindDestinationByHash(pkt.DestinationHash); local {
		return
	}

	if t.AnnounceDecoder == nil {
		t.log.Debug("no announce decoder configured, dropping announce", "destination", pkt.DestinationHash)
		return
	}
	payload, err := t.AnnounceDecoder(pkt)
	if err != nil {
		t.log.Debug("decoding announce payload", "error", errDecodeFailure, "cause", err)
		return
	}
	if !identity.ValidateAnnounce(payload) {
		t.log.Debug("announce signature invalid", "error", errSignatureFailure, "destination", pkt.DestinationHash)
		return
	}

	now := t.nowFn()
	receivedFrom := pkt.DestinationHash
	if pkt.TransportID != nil {
		receivedFrom = *pkt.TransportID
	}

	if ae, ok := t.tables.announce[pkt.DestinationHash]; ok {
		if t.suppressRebroadcast(pkt, ae, now) {
			return
		}
	}

	if int(pkt.Hops) >= t.cfg.MaxHops+1 {
		return
	}

	existing, known := t.tables.destination[pkt.DestinationHash]
	if !t.admitAnnounce(pkt, existing, known, payload.RandomBlob, now) {
		return
	}

	entry := existing
	if entry == nil {
		entry = &destinationEntry{seenRandomBlobs: make(map[wire.RandomBlob]struct{})}
	}
	entry.seenRandomBlobs[payload.RandomBlob] = struct{}{}
	entry.lastUsedAt = now
	entry.nextHopTransportID = receivedFrom
	entry.hopCount = pkt.Hops
	entry.expiresAt = now.Add(t.cfg.PathExpiry)
	entry.learnedOnInterface = in.ID
	entry.originalAnnounce = pkt.Clone()
	t.tables.destination[pkt.DestinationHash] = entry

	if remoteID, err := identity.FromPublicKey(payload.PubKey[:]); err == nil {
		t.identities.Remember(remoteID)
	} else {
		t.log.Debug("recording recalled identity", "error", err, "destination", pkt.DestinationHash)
	}

	if pkt.Context != wire.ContextPathResponse {
		t.tables.announce[pkt.DestinationHash] = &announceEntry{
			receivedAt:       now,
			nextRetransmitAt: randjitter.NextDeadline(now, t.cfg.AnnounceHopBase, pkt.Hops, 0, t.cfg.AnnounceJitterWindow),
			receivedFrom:     receivedFrom,
			advertisedHops:   pkt.Hops,
			originalPacket:   pkt.Clone(),
		}
	}
}

// suppressRebroadcast implements the rebroadcast-suppression rule: a peer
// repeating our own rebroadcast, or one that already carried our
// rebroadcast forward, drops our pending entry without touching the path
// table. Returns true if the announce was fully handled (nothing further
// to do).
func (t *Transport) suppressRebroadcast(pkt *wire.Packet, ae *announceEntry, now time.Time) bool {
	if pkt.Hops == 0 {
		return false
	}
	receivedHops := int(pkt.Hops) - 1

	if receivedHops == int(ae.advertisedHops) {
		ae.localRebroadcasts++
		if ae.localRebroadcasts >= t.cfg.LocalRebroadcastsMax {
			delete(t.tables.announce, pkt.DestinationHash)
		}
		return true
	}

	if receivedHops == int(ae.advertisedHops)+1 && ae.retriesUsed == 0 && now.Before(ae.nextRetransmitAt) {
		delete(t.tables.announce, pkt.DestinationHash)
		return true
	}

	return false
}

// admitAnnounce applies the path-admission acceptance rules.
func (t *Transport) admitAnnounce(pkt *wire.Packet, existing *destinationEntry, known bool, blob wire.RandomBlob, now time.Time) bool {
	if !known {
		return true
	}
	_, seen := existing.seenRandomBlobs[blob]
	if int(pkt.Hops) <= int(existing.hopCount) {
		return !seen
	}
	if now.After(existing.expiresAt) {
		return !seen
	}
	return false
}
