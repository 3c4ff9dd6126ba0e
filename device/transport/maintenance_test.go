package transport

import (
	"testing"
	"time"

	"github.com/arcmesh/transport/core/identity"
	"github.com/arcmesh/transport/core/wire"
)

func TestWalkAnnounceTableRetransmitsDueEntry(t *testing.T) {
	tr, drivers := newTestTransport(t, 1)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.nowFn = func() time.Time { return start }

	remote, err := identity.Generate()
	if err != nil {
		t.Fatalf("generating identity: %v", err)
	}
	dest := remote.Hash()
	tr.identities.Remember(remote)

	orig := &wire.Packet{
		Raw:      []byte{(wire.HeaderType1 << 6) | (wire.TypeAnnounce << 2), 2, 0x01},
		DestType: wire.DestTypeSingle,
	}
	tr.tables.announce[dest] = &announceEntry{
		nextRetransmitAt: start.Add(-time.Second), // already due
		retriesUsed:      0,
		advertisedHops:   2,
		originalPacket:   orig,
	}

	tr.runMaintenanceCycle(true, false)

	entry, ok := tr.tables.announce[dest]
	if !ok {
		t.Fatal("expected entry to survive a due retransmit")
	}
	if entry.retriesUsed != 1 {
		t.Errorf("expected retriesUsed incremented to 1, got %d", entry.retriesUsed)
	}
	if !entry.nextRetransmitAt.After(start) {
		t.Error("expected nextRetransmitAt rescheduled into the future")
	}

	sent := drivers[0].sentPackets()
	if len(sent) != 1 {
		t.Fatalf("expected the rebuilt announce flushed and emitted, got %d packets", len(sent))
	}
}

func TestWalkAnnounceTableRetiresExhaustedEntry(t *testing.T) {
	tr, drivers := newTestTransport(t, 1)
	tr.cfg.MaxAnnounceRetries = 1

	dest := wire.TruncatedHash{0x45}
	tr.tables.announce[dest] = &announceEntry{
		retriesUsed:    2, // already past MaxAnnounceRetries
		advertisedHops: 1,
		originalPacket: &wire.Packet{Raw: []byte{(wire.HeaderType1 << 6) | (wire.TypeAnnounce << 2), 1}},
	}

	tr.runMaintenanceCycle(true, false)

	if _, ok := tr.tables.announce[dest]; ok {
		t.Error("expected exhausted entry removed")
	}
	if len(drivers[0].sentPackets()) != 0 {
		t.Error("expected no rebroadcast for a retired entry")
	}
}

func TestWalkAnnounceTableSkipsNotYetDue(t *testing.T) {
	tr, _ := newTestTransport(t, 1)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.nowFn = func() time.Time { return now }

	dest := wire.TruncatedHash{0x46}
	tr.tables.announce[dest] = &announceEntry{
		nextRetransmitAt: now.Add(time.Hour),
		retriesUsed:      0,
		advertisedHops:   1,
		originalPacket:   &wire.Packet{Raw: []byte{(wire.HeaderType1 << 6) | (wire.TypeAnnounce << 2), 1}},
	}

	tr.runMaintenanceCycle(true, false)

	entry := tr.tables.announce[dest]
	if entry == nil {
		t.Fatal("expected entry to remain")
	}
	if entry.retriesUsed != 0 {
		t.Error("expected untouched entry, not yet due")
	}
}

func TestRebuildAnnounceSetsPathResponseContext(t *testing.T) {
	tr, _ := newTestTransport(t, 1)

	remote, err := identity.Generate()
	if err != nil {
		t.Fatalf("generating identity: %v", err)
	}
	dest := remote.Hash()
	tr.identities.Remember(remote)

	orig := &wire.Packet{
		Raw:      []byte{(wire.HeaderType1 << 6) | (wire.TypeAnnounce << 2), 4, 0xAA},
		DestType: wire.DestTypeSingle,
	}
	ae := &announceEntry{
		advertisedHops:    4,
		originalPacket:    orig,
		blockRebroadcasts: true,
	}

	rebuilt := tr.rebuildAnnounce(dest, ae)

	if rebuilt.Context != wire.ContextPathResponse {
		t.Errorf("expected ContextPathResponse, got %v", rebuilt.Context)
	}
	if rebuilt.TransportID == nil || *rebuilt.TransportID != tr.self.Hash() {
		t.Error("expected transport id set to this node's hash")
	}
	if rebuilt.HeaderType() != wire.HeaderType2 {
		t.Error("expected rebuilt announce to carry HeaderType2")
	}
}

func TestHashlistTrimmedDuringMaintenance(t *testing.T) {
	tr, _ := newTestTransport(t, 1)
	tr.cfg.HashlistMax = 2

	tr.hashlist.Add(wire.FullHash{0x01})
	tr.hashlist.Add(wire.FullHash{0x02})
	tr.hashlist.Add(wire.FullHash{0x03})

	tr.runMaintenanceCycle(false, false)

	if tr.hashlist.Len() != 2 {
		t.Errorf("expected hashlist trimmed to 2, got %d", tr.hashlist.Len())
	}
}

func TestCullExpiredEntries(t *testing.T) {
	tr, _ := newTestTransport(t, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.nowFn = func() time.Time { return now }

	tr.cfg.ReverseTimeout = time.Minute
	tr.cfg.LinkTimeout = time.Minute
	tr.cfg.DestinationTimeout = time.Minute

	staleReverse := wire.TruncatedHash{0x51}
	freshReverse := wire.TruncatedHash{0x52}
	tr.tables.reverse[staleReverse] = &reverseEntry{createdAt: now.Add(-time.Hour)}
	tr.tables.reverse[freshReverse] = &reverseEntry{createdAt: now.Add(-time.Second)}

	staleLink := wire.TruncatedHash{0x53}
	freshLink := wire.TruncatedHash{0x54}
	tr.tables.link[staleLink] = &linkEntry{lastUsedAt: now.Add(-time.Hour)}
	tr.tables.link[freshLink] = &linkEntry{lastUsedAt: now.Add(-time.Second)}

	// t.links is the keep-alive authority cullExpiredEntries now defers
	// to for the Link Table, so it needs its own record of each link's
	// last-seen time, stamped through the same nowFn the table entries
	// above were stamped with.
	tr.nowFn = func() time.Time { return now.Add(-time.Hour) }
	tr.links.Register(staleLink)
	tr.nowFn = func() time.Time { return now.Add(-time.Second) }
	tr.links.Register(freshLink)
	tr.nowFn = func() time.Time { return now }

	staleDest := wire.TruncatedHash{0x55}
	freshDest := wire.TruncatedHash{0x56}
	tr.tables.destination[staleDest] = &destinationEntry{lastUsedAt: now.Add(-time.Hour)}
	tr.tables.destination[freshDest] = &destinationEntry{lastUsedAt: now.Add(-time.Second)}

	tr.runMaintenanceCycle(false, true)

	if _, ok := tr.tables.reverse[staleReverse]; ok {
		t.Error("expected stale Reverse Table entry culled")
	}
	if _, ok := tr.tables.reverse[freshReverse]; !ok {
		t.Error("expected fresh Reverse Table entry kept")
	}
	if _, ok := tr.tables.link[staleLink]; ok {
		t.Error("expected stale Link Table entry culled")
	}
	if _, ok := tr.tables.link[freshLink]; !ok {
		t.Error("expected fresh Link Table entry kept")
	}
	if _, ok := tr.tables.destination[staleDest]; ok {
		t.Error("expected stale Destination Table entry culled")
	}
	if _, ok := tr.tables.destination[freshDest]; !ok {
		t.Error("expected fresh Destination Table entry kept")
	}
}
