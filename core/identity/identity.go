// Package identity implements the Identity collaborator (§6):
// Ed25519-based signing and verification of announce payloads, X25519 key
// agreement, and a recall registry mapping destination hashes back to the
// identity that can rebuild their announce packet (needed when the
// maintenance loop reconstructs a rebroadcast, §4.4.2).
//
// Adapted from core/crypto/keys.go and core/crypto/advert.go: same
// Ed25519/X25519 primitives, generalized from ADVERT's (pubKey,
// timestamp, appData) signed message to ANNOUNCE's (pubKey, timestamp,
// randomBlob, appData).
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"sync"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"

	"github.com/arcmesh/transport/core/wire"
)

var (
	ErrInvalidPubKeySize  = errors.New("identity: invalid public key size")
	ErrInvalidPrivKeySize = errors.New("identity: invalid private key size")
	ErrBadSignature       = errors.New("identity: signature verification failed")
)

// Identity is a transport node's or destination's cryptographic identity.
type Identity struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey // nil for a remote identity we only verify against
}

// Generate creates a new local Identity with a fresh Ed25519 key pair.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	return &Identity{PublicKey: pub, PrivateKey: priv}, nil
}

// FromPrivateKey reconstructs a local Identity from a 64-byte Ed25519
// private key, e.g. one loaded from the persisted transport identity file
// (§6, "<configdir>/transportidentity").
func FromPrivateKey(priv []byte) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivKeySize
	}
	key := ed25519.PrivateKey(make([]byte, ed25519.PrivateKeySize))
	copy(key, priv)
	return &Identity{PublicKey: key.Public().(ed25519.PublicKey), PrivateKey: key}, nil
}

// FromPublicKey wraps a remote identity's public key, for verification
// only (no PrivateKey, so SignAnnounce is unavailable).
func FromPublicKey(pub []byte) (*Identity, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, ErrInvalidPubKeySize
	}
	key := ed25519.PublicKey(make([]byte, ed25519.PublicKeySize))
	copy(key, pub)
	return &Identity{PublicKey: key}, nil
}

// Hash returns the identity's destination hash: the leading
// TruncatedHashSize bytes of SHA-256(public key), used as the routing key
// in the Destination/Announce/Link tables and as this node's transport id.
func (id *Identity) Hash() wire.TruncatedHash {
	sum := sha256.Sum256(id.PublicKey)
	var h wire.TruncatedHash
	copy(h[:], sum[:wire.TruncatedHashSize])
	return h
}

// SignAnnounce signs an announce payload's canonical message with this
// identity's private key.
func (id *Identity) SignAnnounce(payload *wire.AnnouncePayload) error {
	if id.PrivateKey == nil {
		return errors.New("identity: no private key available for signing")
	}
	copy(payload.PubKey[:], id.PublicKey)
	sig := ed25519.Sign(id.PrivateKey, payload.SignedMessage())
	copy(payload.Signature[:], sig)
	return nil
}

// ValidateAnnounce verifies an announce payload's Ed25519 signature
// against the public key it carries, per §6's
// `Identity.validate_announce(packet) → bool` contract. It does not
// consult any registry — the payload is self-certifying, matching the
// original Reticulum announce's design.
func ValidateAnnounce(payload *wire.AnnouncePayload) bool {
	if len(payload.PubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(payload.PubKey[:], payload.SignedMessage(), payload.Signature[:])
}

// Ed25519PubKeyToX25519 converts an Ed25519 public key to its X25519
// (Montgomery) form for ECDH key exchange.
func Ed25519PubKeyToX25519(edPubKey []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPubKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// Ed25519PrivKeyToX25519 converts an Ed25519 private key to its X25519
// equivalent per RFC 8032: SHA-512 the seed, then clamp.
func Ed25519PrivKeyToX25519(edPrivKey ed25519.PrivateKey) ([]byte, error) {
	if len(edPrivKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivKeySize
	}
	seed := edPrivKey.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32], nil
}

// ComputeSharedSecret derives an X25519 ECDH shared secret between this
// identity's private key and a remote identity's public key.
func (id *Identity) ComputeSharedSecret(remotePubKey []byte) ([]byte, error) {
	if id.PrivateKey == nil {
		return nil, errors.New("identity: no private key available for ECDH")
	}
	if len(remotePubKey) != ed25519.PublicKeySize {
		return nil, ErrInvalidPubKeySize
	}
	xPriv, err := Ed25519PrivKeyToX25519(id.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("converting private key: %w", err)
	}
	xPub, err := Ed25519PubKeyToX25519(remotePubKey)
	if err != nil {
		return nil, fmt.Errorf("converting public key: %w", err)
	}
	secret, err := curve25519.X25519(xPriv, xPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH: %w", err)
	}
	return secret, nil
}

// Registry maps destination hashes to the Identity that can rebuild their
// announce packet, implementing `Identity.recall(destination_hash)`.
// Populated with this node's own identity when the transport is created
// and with the remote identity of each admitted announce; registering a
// local destination adds nothing to it.
type Registry struct {
	mu   sync.RWMutex
	byID map[wire.TruncatedHash]*Identity
}

// NewRegistry creates an empty recall registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[wire.TruncatedHash]*Identity)}
}

// Remember records an identity under its destination hash so it can
// later be recalled.
func (r *Registry) Remember(id *Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id.Hash()] = id
}

// Recall looks up the identity registered for a destination hash.
func (r *Registry) Recall(hash wire.TruncatedHash) (*Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byID[hash]
	return id, ok
}
