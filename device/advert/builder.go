// Package advert builds and periodically (re)emits this node's own
// announce, the self-advertisement side of §4.3.3/§4.4.2 that the
// transport core itself never originates on its own.
//
// Adapted from the teacher's createSelfAdvert()/advertisement-timer split
// (core/crypto.SignAdvert + device/advert.Scheduler): same signed-payload
// builder, same dual local/propagation timer shape, rebased onto
// core/identity's Ed25519 signing and core/wire's announce payload
// instead of the teacher's ADVERT packet format.
package advert

import (
	"crypto/rand"
	"fmt"

	"github.com/arcmesh/transport/core/identity"
	"github.com/arcmesh/transport/core/wire"
)

// SelfAnnounceConfig describes the local node's identity and the
// application data to attach to its own announce.
type SelfAnnounceConfig struct {
	Self *identity.Identity

	// AppData is opaque application-layer payload carried on the
	// announce (service name, capabilities, display name, ...).
	// Building it is an application concern; this package only signs
	// and frames whatever bytes it is given.
	AppData []byte

	// NowFn overrides the timestamp source, for deterministic tests.
	NowFn func() uint32
}

// Builder is a function that produces a fresh, signed self-announce
// packet. The scheduler calls it anew on every emission so the embedded
// random blob and timestamp are never reused.
type Builder func() (*wire.Packet, error)

// BuildSelfAnnounce signs a fresh announce payload for cfg.Self and
// frames it as a HeaderType1, TypeAnnounce wire.Packet addressed to the
// identity's own destination hash.
func BuildSelfAnnounce(cfg *SelfAnnounceConfig) (*wire.Packet, error) {
	if cfg.Self == nil {
		return nil, fmt.Errorf("advert: no local identity configured")
	}

	payload := &wire.AnnouncePayload{
		Timestamp: cfg.NowFn(),
		AppData:   cfg.AppData,
	}
	if _, err := rand.Read(payload.RandomBlob[:]); err != nil {
		return nil, fmt.Errorf("advert: generating random blob: %w", err)
	}
	if err := cfg.Self.SignAnnounce(payload); err != nil {
		return nil, fmt.Errorf("advert: signing announce: %w", err)
	}

	raw := encodeAnnounce(payload)
	return &wire.Packet{
		Raw:             raw,
		DestinationHash: cfg.Self.Hash(),
		DestType:        wire.DestTypeSingle,
	}, nil
}

// NewSelfAnnounceBuilder captures cfg and returns a Builder producing a
// fresh self-announce on every call.
func NewSelfAnnounceBuilder(cfg SelfAnnounceConfig) Builder {
	return func() (*wire.Packet, error) {
		return BuildSelfAnnounce(&cfg)
	}
}

// encodeAnnounce frames a signed payload as raw announce bytes: flags,
// hop byte (0, this is hop zero), pubkey(32), timestamp(4 LE),
// randomBlob(10), appData, signature(64).
func encodeAnnounce(payload *wire.AnnouncePayload) []byte {
	flags := (wire.HeaderType1 << 6) | (wire.TransportBroadcast << 4) | (wire.TypeAnnounce << 2)
	msg := payload.SignedMessage()
	out := make([]byte, 0, 2+len(msg)+len(payload.Signature))
	out = append(out, flags, 0)
	out = append(out, msg...)
	out = append(out, payload.Signature[:]...)
	return out
}
