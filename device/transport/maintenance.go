package transport

import (
	"time"

	"github.com/arcmesh/transport/core/wire"
	"github.com/arcmesh/transport/internal/randjitter"
)

// runMaintenanceCycle implements §4.4. The receipt sweep runs on its own
// ticker inside core/receipt.Tracker (started alongside this loop in
// Start), so this cycle only walks the Announce Table, trims the
// hashlist, and culls the Reverse/Link/Destination tables.
func (t *Transport) runMaintenanceCycle(checkAnnounce, cullTables bool) {
	t.mu.Lock()
	now := t.nowFn()

	if checkAnnounce {
		t.walkAnnounceTable(now)
	}

	t.hashlist.Trim(t.cfg.HashlistMax)

	if cullTables {
		t.cullExpiredEntries(now)
	}

	t.mu.Unlock()

	t.flushRetransmitQueue()
}

// walkAnnounceTable retires exhausted entries and reschedules due ones,
// collecting victims before deleting to avoid mutating the map mid-range.
func (t *Transport) walkAnnounceTable(now time.Time) {
	var victims []wire.TruncatedHash
	for destHash, ae := range t.tables.announce {
		if ae.retriesUsed > t.cfg.MaxAnnounceRetries {
			victims = append(victims, destHash)
			continue
		}
		if now.Before(ae.nextRetransmitAt) {
			continue
		}
		ae.nextRetransmitAt = randjitter.NextDeadline(now, t.cfg.AnnounceHopBase, ae.advertisedHops, t.cfg.AnnounceRetryGrace+t.cfg.AnnounceJitterWindow, 0)
		ae.retriesUsed++
		if rebuilt := t.rebuildAnnounce(destHash, ae); rebuilt != nil {
			t.retransmitQueue = append(t.retransmitQueue, rebuilt)
		}
	}
	for _, destHash := range victims {
		delete(t.tables.announce, destHash)
	}
}

// rebuildAnnounce reconstructs a pending Announce Table entry's packet
// for rebroadcast: HEADER-2, transport type TRANSPORT, this node's
// transport id, context PATH-RESPONSE iff block-rebroadcasts is set,
// inheriting advertised-hops. Per §6's `Identity.recall(destination_hash)`
// collaborator, it first recalls the identity that was remembered when
// this destination's announce was admitted; an entry with no recallable
// identity is dropped rather than rebroadcast blind.
func (t *Transport) rebuildAnnounce(destHash wire.TruncatedHash, ae *announceEntry) *wire.Packet {
	if _, ok := t.identities.Recall(destHash); !ok {
		t.log.Debug("rebuilding announce rebroadcast: no recalled identity, dropping", "destination", destHash)
		return nil
	}

	selfHash := t.self.Hash()

	raw, err := wire.RewriteInsertTransport(ae.originalPacket.Raw, selfHash)
	if err != nil {
		t.log.Debug("rebuilding announce rebroadcast", "error", err, "destination", destHash)
		raw = append([]byte(nil), ae.originalPacket.Raw...)
	}

	ctx := wire.ContextNone
	if ae.blockRebroadcasts {
		ctx = wire.ContextPathResponse
	}

	return &wire.Packet{
		Raw:             raw,
		DestinationHash: destHash,
		DestType:        ae.originalPacket.DestType,
		TransportID:     &selfHash,
		Hops:            ae.advertisedHops,
		Context:         ctx,
	}
}

// cullExpiredEntries evicts stale Reverse, Link, and Destination Table
// entries (§4.4 step 4), collecting victims before deleting per §9's
// resolution of the mutate-while-iterating hazard. The Link Table is
// culled through t.links, whose keep-alive-driven CheckTimeouts is the
// LINK_TIMEOUT = 2×KeepAliveInterval authority; its OnDisconnect callback
// (set in New) deletes the matching tables.link entry.
func (t *Transport) cullExpiredEntries(now time.Time) {
	var reverseVictims []wire.TruncatedHash
	for key, e := range t.tables.reverse {
		if now.Sub(e.createdAt) > t.cfg.ReverseTimeout {
			reverseVictims = append(reverseVictims, key)
		}
	}
	for _, key := range reverseVictims {
		delete(t.tables.reverse, key)
	}

	t.links.CheckTimeouts()

	var destVictims []wire.TruncatedHash
	for key, e := range t.tables.destination {
		if now.Sub(e.lastUsedAt) > t.cfg.DestinationTimeout {
			destVictims = append(destVictims, key)
		}
	}
	for _, key := range destVictims {
		delete(t.tables.destination, key)
	}
}
