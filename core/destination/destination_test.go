package destination

import (
	"testing"

	"github.com/arcmesh/transport/core/wire"
)

func testHash(b byte) wire.TruncatedHash {
	var h wire.TruncatedHash
	h[0] = b
	return h
}

func TestRegisterDestinationSkipsOutbound(t *testing.T) {
	r := NewRegistry()
	h := testHash(1)
	r.RegisterDestination(&Destination{Hash: h, Direction: DirectionOut, Type: TypeSingle})
	if _, ok := r.FindDestinationByHash(h); ok {
		t.Error("outbound-only destination should not be tracked for delivery")
	}
}

func TestFindDestinationsMatchesHashAndType(t *testing.T) {
	r := NewRegistry()
	h := testHash(2)
	r.RegisterDestination(&Destination{Hash: h, Direction: DirectionIn, Type: TypeSingle})
	r.RegisterDestination(&Destination{Hash: h, Direction: DirectionIn, Type: TypeLink})

	single := r.FindDestinations(h, TypeSingle)
	if len(single) != 1 {
		t.Fatalf("FindDestinations(single) = %d results, want 1", len(single))
	}

	other := testHash(3)
	if got := r.FindDestinations(other, TypeSingle); len(got) != 0 {
		t.Errorf("FindDestinations for unregistered hash = %d results, want 0", len(got))
	}
}

func TestRegisterAndActivateLink(t *testing.T) {
	r := NewRegistry()
	id := testHash(5)
	l := &Link{ID: id, Initiator: true, Status: LinkPending}
	r.RegisterLink(l)

	if _, ok := r.ActiveLink(id); ok {
		t.Fatal("initiator link should start pending, not active")
	}
	if _, ok := r.PendingLink(id); !ok {
		t.Fatal("initiator link should be registered as pending")
	}

	if err := r.ActivateLink(id); err != nil {
		t.Fatalf("ActivateLink: %v", err)
	}
	if _, ok := r.PendingLink(id); ok {
		t.Error("link still pending after activation")
	}
	active, ok := r.ActiveLink(id)
	if !ok {
		t.Fatal("link not active after activation")
	}
	if active.Status != LinkActive {
		t.Errorf("Status = %v, want LinkActive", active.Status)
	}
}

func TestActivateLinkUnknownReturnsError(t *testing.T) {
	r := NewRegistry()
	if err := r.ActivateLink(testHash(9)); err != ErrLinkNotPending {
		t.Errorf("ActivateLink on unknown link = %v, want ErrLinkNotPending", err)
	}
}

func TestNonInitiatorLinkRegistersActive(t *testing.T) {
	r := NewRegistry()
	id := testHash(7)
	r.RegisterLink(&Link{ID: id, Initiator: false, Status: LinkActive})
	if _, ok := r.ActiveLink(id); !ok {
		t.Error("non-initiator link should register directly as active")
	}
}
