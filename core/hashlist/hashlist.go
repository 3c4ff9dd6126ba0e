// Package hashlist implements the bounded FIFO packet-hash dedup set used
// by the transport core's packet filter (§4.1), persisted across restarts
// with a self-describing binary packer.
//
// This adapts the shape of core/dedupe.PacketDeduplicator (circular
// buffer, oldest-first eviction) to the transport core's much larger
// capacity: at 1,000,000 entries a fixed circular byte buffer scanned
// linearly on every lookup is too slow, so this keeps a map for O(1)
// membership alongside a FIFO slice of insertion order for eviction.
package hashlist

import (
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arcmesh/transport/core/wire"
)

// DefaultMax is the hashlist capacity specified for the transport core.
const DefaultMax = 1_000_000

// Hashlist is a bounded, FIFO-eviction set of packet hashes.
type Hashlist struct {
	max     int
	order   []wire.FullHash
	present map[wire.FullHash]struct{}
}

// New creates a Hashlist with the given capacity. A non-positive max
// falls back to DefaultMax.
func New(max int) *Hashlist {
	if max <= 0 {
		max = DefaultMax
	}
	return &Hashlist{
		max:     max,
		order:   make([]wire.FullHash, 0, 256),
		present: make(map[wire.FullHash]struct{}, 256),
	}
}

// Contains reports whether hash has already been recorded.
func (h *Hashlist) Contains(hash wire.FullHash) bool {
	_, ok := h.present[hash]
	return ok
}

// Add records hash, evicting the oldest entry if the list is now over
// capacity. Adding an already-present hash is a no-op.
func (h *Hashlist) Add(hash wire.FullHash) {
	if h.Contains(hash) {
		return
	}
	h.order = append(h.order, hash)
	h.present[hash] = struct{}{}
	h.Trim(h.max)
}

// Trim drops entries from the oldest end until at most max remain.
func (h *Hashlist) Trim(max int) {
	for len(h.order) > max {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.present, oldest)
	}
}

// Len returns the number of hashes currently recorded.
func (h *Hashlist) Len() int {
	return len(h.order)
}

// persistedForm is the msgpack-serializable snapshot written to disk.
// A plain slice of hashes is sufficient to reconstruct FIFO order.
type persistedForm struct {
	Hashes [][wire.FullHashSize]byte
}

// SaveTo persists the hashlist to path using msgpack encoding, standing
// in for the original's self-describing binary packer.
func (h *Hashlist) SaveTo(path string) error {
	snap := persistedForm{Hashes: make([][wire.FullHashSize]byte, len(h.order))}
	for i, hash := range h.order {
		snap.Hashes[i] = hash
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadFrom restores a hashlist previously written by SaveTo. A missing
// file is not an error: the transport core starts with an empty list and
// logs the persistence failure at the caller, per §7's "Persistence
// failure" handling.
func LoadFrom(path string, max int) (*Hashlist, error) {
	h := New(max)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return h, err
	}
	var snap persistedForm
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return h, err
	}
	for _, raw := range snap.Hashes {
		h.Add(wire.FullHash(raw))
	}
	return h, nil
}
