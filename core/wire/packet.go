// Package wire defines the on-the-wire packet representation used by the
// transport core: header bit layout, hash computation, and the pure
// byte-level rewrite functions the forwarder applies to in-transit packets.
package wire

import (
	"crypto/sha256"
	"errors"
)

// Header type occupies the top 2 bits of the flag byte.
const (
	HeaderType1 uint8 = 0x00 // single-hop / flood form, no transport id
	HeaderType2 uint8 = 0x01 // transported form, carries a next-hop transport id
)

// Transport type occupies bits 5-4 of the flag byte.
const (
	TransportBroadcast uint8 = 0x00
	TransportTransport uint8 = 0x01
	TransportRelay     uint8 = 0x02
	TransportTunnel    uint8 = 0x03
)

// Packet type occupies bits 3-2 of the low nibble.
const (
	TypeData          uint8 = 0x00
	TypeAnnounce      uint8 = 0x01
	TypeLinkRequest   uint8 = 0x02
	TypeProof         uint8 = 0x03
)

// Context occupies the bottom 2 bits of the low nibble combined with the
// packet's context byte (carried separately in this layout, unlike the
// original single-byte flag field, to keep the bit arithmetic readable).
type Context uint8

const (
	ContextNone Context = iota
	ContextKeepalive
	ContextResourceRequest
	ContextResourceProof
	ContextPathResponse
	ContextLinkRequestProof
	ContextCacheRequest
)

// Destination types, used to decide delivery semantics in the inbound path.
const (
	DestTypePlain  uint8 = 0x00
	DestTypeSingle uint8 = 0x01
	DestTypeLink   uint8 = 0x02
	DestTypeGroup  uint8 = 0x03
)

const (
	// TransportIDSize is the width of a transport id / destination hash
	// address field embedded in transported packets (bytes 2..12).
	TransportIDSize = 10

	// FullHashSize is the width of a full packet/identity hash.
	FullHashSize = 32

	// TruncatedHashSize is the width of a destination/link/truncated hash,
	// matching Reticulum's TRUNCATED_HASHLENGTH/8.
	TruncatedHashSize = 16

	// flagByteLen + hopByteLen + addressFieldLen, i.e. where the body of a
	// transported packet begins.
	transportHeaderLen = 2 + TransportIDSize
)

var (
	ErrTooShort      = errors.New("wire: packet shorter than header")
	ErrBadAddressLen = errors.New("wire: address field too short for rewrite")
)

// FullHash is a packet's full content hash, used for dedup.
type FullHash [FullHashSize]byte

// TruncatedHash is a destination/link routing key.
type TruncatedHash [TruncatedHashSize]byte

// Packet is the decoded form of an inbound or outbound packet, plus the
// raw bytes it was decoded from (or will be re-derived from on send).
type Packet struct {
	// Raw is the wire-format byte buffer. Rewrite functions operate on
	// this field directly; decoded fields below are kept in sync by the
	// caller, mirroring the teacher's codec.Packet shape (raw bytes plus
	// parsed accessors).
	Raw []byte

	DestinationHash TruncatedHash
	DestType        uint8
	TransportID     *TruncatedHash // nil if the packet carries no transport id
	Hops            uint8
	Context         Context

	// ReceivingInterface identifies which Interface this packet arrived
	// on. Zero value for locally-originated outbound packets.
	ReceivingInterface string

	// AttachedInterface, when non-empty, restricts an unresolved-path
	// emission (§4.2 step 4) to exactly that interface.
	AttachedInterface string

	// IsLinkDestination marks a packet addressed to a Link rather than a
	// plain Destination, so the outbound path can apply the link's
	// narrower emission rule (§4.2 step 4) instead of broadcasting on
	// every transmit-capable interface.
	IsLinkDestination     bool
	LinkAttachedInterface string
	LinkClosed            bool

	Sent   bool
	SentAt int64 // unix seconds, set by the outbound path
}

// Flags returns the flag byte (byte 0 of Raw).
func (p *Packet) Flags() uint8 {
	if len(p.Raw) == 0 {
		return 0
	}
	return p.Raw[0]
}

// HeaderType returns the 2-bit header type from the flag byte.
func (p *Packet) HeaderType() uint8 {
	return (p.Flags() >> 6) & 0x03
}

// TransportType returns the 2-bit transport type from the flag byte.
func (p *Packet) TransportType() uint8 {
	return (p.Flags() >> 4) & 0x03
}

// PacketType returns the packet type encoded in the low nibble.
func (p *Packet) PacketType() uint8 {
	return (p.Flags() >> 2) & 0x03
}

// IsAnnounce reports whether this packet is an announce.
func (p *Packet) IsAnnounce() bool {
	return p.PacketType() == TypeAnnounce
}

// IsLinkRequest reports whether this packet is a link request.
func (p *Packet) IsLinkRequest() bool {
	return p.PacketType() == TypeLinkRequest
}

// IsProof reports whether this packet is a proof.
func (p *Packet) IsProof() bool {
	return p.PacketType() == TypeProof
}

// IsData reports whether this packet is a data packet.
func (p *Packet) IsData() bool {
	return p.PacketType() == TypeData
}

// HasTransportID reports whether byte 0 carries HeaderType2 (a transport
// id address field follows the hop byte).
func (p *Packet) HasTransportID() bool {
	return p.HeaderType() == HeaderType2
}

// ReadFrom decodes header fields from raw bytes. It does not parse the
// application payload; that stays a concern of the destination/link
// collaborators (out of scope per the transport core's contract).
func (p *Packet) ReadFrom(data []byte) error {
	if len(data) < 2 {
		return ErrTooShort
	}
	p.Raw = make([]byte, len(data))
	copy(p.Raw, data)
	p.Hops = data[1]
	if p.HasTransportID() {
		if len(data) < transportHeaderLen {
			return ErrBadAddressLen
		}
		var id TruncatedHash
		copy(id[:], data[2:2+TransportIDSize])
		p.TransportID = &id
	} else {
		p.TransportID = nil
	}
	return nil
}

// WriteTo returns the raw wire bytes for this packet.
func (p *Packet) WriteTo() []byte {
	out := make([]byte, len(p.Raw))
	copy(out, p.Raw)
	return out
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	clone := *p
	if p.Raw != nil {
		clone.Raw = make([]byte, len(p.Raw))
		copy(clone.Raw, p.Raw)
	}
	if p.TransportID != nil {
		id := *p.TransportID
		clone.TransportID = &id
	}
	return &clone
}

// UpdateHash recomputes the packet's full content hash from its raw bytes.
func (p *Packet) UpdateHash() FullHash {
	return sha256.Sum256(p.Raw)
}

// TruncatedPacketHash returns the leading TruncatedHashSize bytes of the
// full content hash, used as the Reverse/Link Table key.
func (p *Packet) TruncatedPacketHash() TruncatedHash {
	full := p.UpdateHash()
	var t TruncatedHash
	copy(t[:], full[:TruncatedHashSize])
	return t
}

// bodyFrom returns the packet body starting at the given raw-byte offset,
// or nil if the packet is shorter than that offset.
func bodyFrom(raw []byte, offset int) []byte {
	if len(raw) <= offset {
		return nil
	}
	return raw[offset:]
}

// RewriteInsertTransport builds the outbound "inserting into transport"
// rewrite: header type 2, transport type TRANSPORT, low nibble preserved,
// original hop byte preserved, next-hop transport id inserted, original
// body (from offset 2) appended.
func RewriteInsertTransport(raw []byte, nextHop TruncatedHash) ([]byte, error) {
	if len(raw) < 2 {
		return nil, ErrTooShort
	}
	flags := raw[0]
	newFlags := (HeaderType2 << 6) | (TransportTransport << 4) | (flags & 0x0F)
	body := bodyFrom(raw, 2)
	out := make([]byte, 0, 2+TransportIDSize+len(body))
	out = append(out, newFlags, raw[1])
	out = append(out, nextHop[:TransportIDSize]...)
	out = append(out, body...)
	return out, nil
}

// RewriteForwardedHop builds the "forwarded transport hop, remaining>1"
// rewrite: flags preserved, new hop count written, address field replaced
// with the next-hop transport id, body from offset 12 appended.
func RewriteForwardedHop(raw []byte, newHops uint8, nextHop TruncatedHash) ([]byte, error) {
	if len(raw) < transportHeaderLen {
		return nil, ErrBadAddressLen
	}
	body := bodyFrom(raw, transportHeaderLen)
	out := make([]byte, 0, transportHeaderLen+len(body))
	out = append(out, raw[0], newHops)
	out = append(out, nextHop[:TransportIDSize]...)
	out = append(out, body...)
	return out, nil
}

// RewriteLastTransportHop builds the "last transport hop, remaining=1"
// rewrite: strips the transport address field, resets header type to 1
// and transport type to BROADCAST (low nibble preserved), writes the new
// hop count, and keeps the body from offset 12.
func RewriteLastTransportHop(raw []byte, newHops uint8) ([]byte, error) {
	if len(raw) < transportHeaderLen {
		return nil, ErrBadAddressLen
	}
	flags := raw[0]
	newFlags := (HeaderType1 << 6) | (TransportBroadcast << 4) | (flags & 0x0F)
	body := bodyFrom(raw, transportHeaderLen)
	out := make([]byte, 0, 2+len(body))
	out = append(out, newFlags, newHops)
	out = append(out, body...)
	return out, nil
}

// RewriteHopOnly rewrites only the hop count byte, leaving everything
// else untouched. Used for link forwarding and proof forwarding.
func RewriteHopOnly(raw []byte, newHops uint8) ([]byte, error) {
	if len(raw) < 2 {
		return nil, ErrTooShort
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	out[1] = newHops
	return out, nil
}
