package transport

import (
	"time"

	"github.com/arcmesh/transport/core/wire"
)

// announceEntry is an Announce Table row (§3): a pending rebroadcast we
// are scheduled to retransmit until it expires or exhausts its retries.
type announceEntry struct {
	receivedAt        time.Time
	nextRetransmitAt  time.Time
	retriesUsed       int
	receivedFrom      wire.TruncatedHash // transport id, or the destination hash itself
	advertisedHops    uint8
	originalPacket    *wire.Packet
	localRebroadcasts int
	blockRebroadcasts bool
}

// destinationEntry is a Destination (Path) Table row (§3): the best known
// route to a remote destination.
type destinationEntry struct {
	lastUsedAt         time.Time
	nextHopTransportID wire.TruncatedHash
	hopCount           uint8
	expiresAt          time.Time
	seenRandomBlobs    map[wire.RandomBlob]struct{}
	learnedOnInterface string
	originalAnnounce   *wire.Packet
}

// reverseEntry is a Reverse Table row (§3): per-forwarded-packet memory
// used to route a reply or proof back the way it came.
type reverseEntry struct {
	inboundInterface  string
	outboundInterface string
	createdAt         time.Time
}

// linkEntry is a Link Table row (§3): per-hop virtual-circuit forwarding
// state for a link request in transit.
type linkEntry struct {
	lastUsedAt         time.Time
	nextHopTransportID wire.TruncatedHash
	nextHopInterface   string
	remainingHops      uint8
	receivingInterface string
	takenHops          uint8
	destinationHash    wire.TruncatedHash
	validated          bool
}

// tables bundles the four routing tables behind the Transport's single
// mutex (§5, §9: "bundle them into a single Transport value").
type tables struct {
	announce    map[wire.TruncatedHash]*announceEntry
	destination map[wire.TruncatedHash]*destinationEntry
	reverse     map[wire.TruncatedHash]*reverseEntry
	link        map[wire.TruncatedHash]*linkEntry
}

func newTables() *tables {
	return &tables{
		announce:    make(map[wire.TruncatedHash]*announceEntry),
		destination: make(map[wire.TruncatedHash]*destinationEntry),
		reverse:     make(map[wire.TruncatedHash]*reverseEntry),
		link:        make(map[wire.TruncatedHash]*linkEntry),
	}
}
