package transport

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/arcmesh/transport/core/destination"
	"github.com/arcmesh/transport/core/wire"
)

const (
	pathRequestAspect1 = "path"
	pathRequestAspect2 = "request"
)

// WellKnownPathRequestHash returns the destination hash of the
// path-request well-known destination (§4.5, §6): plain, inbound, named
// (rnstransport, "path", "request").
func WellKnownPathRequestHash() wire.TruncatedHash {
	sum := sha256.Sum256([]byte(WellKnownAppName + "." + pathRequestAspect1 + "." + pathRequestAspect2))
	var h wire.TruncatedHash
	copy(h[:], sum[:wire.TruncatedHashSize])
	return h
}

// RegisterPathRequestHandler registers the well-known path-request
// destination. Call once during setup, after New.
func (t *Transport) RegisterPathRequestHandler() {
	t.RegisterDestination(&destination.Destination{
		Hash:      WellKnownPathRequestHash(),
		Direction: destination.DirectionIn,
		Type:      destination.TypePlain,
		OnReceive: t.pathRequestHandler,
	})
}

// RequestPath emits a broadcast DATA packet to the well-known
// path-request destination, carrying the target destination hash plus a
// fresh random nonce (§4.5).
func (t *Transport) RequestPath(destHash wire.TruncatedHash) bool {
	wellKnown := WellKnownPathRequestHash()
	var nonce wire.TruncatedHash
	_, _ = rand.Read(nonce[:])

	flags := (wire.HeaderType1 << 6) | (wire.TransportBroadcast << 4) | (wire.TypeData << 2)
	raw := make([]byte, 0, 2+wire.TruncatedHashSize*3)
	raw = append(raw, flags, 0)
	raw = append(raw, wellKnown[:]...)
	raw = append(raw, destHash[:]...)
	raw = append(raw, nonce[:]...)

	pkt := &wire.Packet{
		Raw:             raw,
		DestinationHash: wellKnown,
		DestType:        wire.DestTypePlain,
	}
	return t.Outbound(pkt)
}

// pathRequestHandler implements §4.5's server side. It runs as the
// well-known destination's OnReceive callback, which Inbound invokes
// while already holding the table lock — it must not try to re-acquire
// it.
func (t *Transport) pathRequestHandler(pkt *wire.Packet) {
	target, ok := requestedPathTarget(pkt)
	if !ok {
		return
	}

	if d, local := t.destinations.FindDestinationByHash(target); local {
		if d.OnAnnounce != nil {
			d.OnAnnounce(true)
		}
		return
	}

	entry, known := t.tables.destination[target]
	if !known || entry.originalAnnounce == nil {
		return
	}

	now := t.nowFn()
	t.tables.announce[target] = &announceEntry{
		receivedAt:        now,
		nextRetransmitAt:  now.Add(t.cfg.PathRequestGrace),
		retriesUsed:       t.cfg.MaxAnnounceRetries,
		receivedFrom:      entry.nextHopTransportID,
		advertisedHops:    entry.hopCount,
		originalPacket:    entry.originalAnnounce.Clone(),
		blockRebroadcasts: true,
	}
}

// requestedPathTarget extracts the path-request target hash from the
// packet payload: the first TruncatedHashSize bytes of the body
// following the well-known destination's own address field, matching
// RequestPath's encoding above.
func requestedPathTarget(pkt *wire.Packet) (wire.TruncatedHash, bool) {
	offset := 2 + wire.TruncatedHashSize
	if len(pkt.Raw) < offset+wire.TruncatedHashSize {
		return wire.TruncatedHash{}, false
	}
	var target wire.TruncatedHash
	copy(target[:], pkt.Raw[offset:offset+wire.TruncatedHashSize])
	return target, true
}
