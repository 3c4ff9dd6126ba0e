package wire

import "encoding/binary"

// RandomBlobSize is the width of the per-announce replay/loop guard
// embedded in the announce payload (§4.3.3).
const RandomBlobSize = 10

// RandomBlob is a per-announce nonce used as a replay and loop guard.
type RandomBlob [RandomBlobSize]byte

// AnnouncePayload is the decoded form of an announce packet's payload:
// the identity's public key, the advertised timestamp, the replay-guard
// random blob, and opaque application data, plus the Ed25519 signature
// over all of the above. Parsing/building this payload from packet bytes
// is an external collaborator's job (Identity/Packet, per §6); this type
// is the shape the transport core and core/identity agree on.
type AnnouncePayload struct {
	PubKey     [32]byte
	Timestamp  uint32
	RandomBlob RandomBlob
	AppData    []byte
	Signature  [64]byte
}

// SignedMessage returns the byte sequence an announce's signature covers:
// pubKey(32) || timestamp(4 LE) || randomBlob(10) || appData, mirroring
// the advert-signing message shape but with the random blob folded in so
// a forged blob invalidates the signature.
func (a *AnnouncePayload) SignedMessage() []byte {
	msg := make([]byte, 32+4+RandomBlobSize+len(a.AppData))
	copy(msg[0:32], a.PubKey[:])
	binary.LittleEndian.PutUint32(msg[32:36], a.Timestamp)
	copy(msg[36:36+RandomBlobSize], a.RandomBlob[:])
	if len(a.AppData) > 0 {
		copy(msg[36+RandomBlobSize:], a.AppData)
	}
	return msg
}
