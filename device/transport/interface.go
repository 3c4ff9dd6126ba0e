package transport

import (
	"github.com/arcmesh/transport/core/wire"
	iface "github.com/arcmesh/transport/transport"
)

// Interface is the transport core's view of a link-layer driver (§3): an
// opaque handle with a may_transmit flag, an emit sink, and an identity
// notion, held as a non-owning reference to a concrete driver (mqtt,
// serial, or any other iface.Transport implementation).
type Interface struct {
	// ID gives the Interface the equality/identity notion §3 requires,
	// since Go interface values containing non-comparable concrete types
	// can't be used directly as map keys.
	ID string

	// MayTransmit mirrors the driver's current connectivity: an
	// interface that is not connected may not be used for emission.
	MayTransmit bool

	Driver iface.Transport
}

// NewInterface wraps a driver as a transport-core Interface, seeding
// MayTransmit from the driver's current connection state and keeping it
// in sync via the driver's state handler.
func NewInterface(driver iface.Transport) *Interface {
	in := &Interface{
		ID:          driver.ID(),
		MayTransmit: driver.IsConnected(),
		Driver:      driver,
	}
	driver.SetStateHandler(func(_ iface.Transport, event iface.Event) {
		switch event {
		case iface.EventConnected:
			in.MayTransmit = true
		case iface.EventDisconnected:
			in.MayTransmit = false
		}
	})
	return in
}

// Emit sends raw wire bytes on this interface.
func (in *Interface) Emit(raw []byte) error {
	var pkt wire.Packet
	if err := pkt.ReadFrom(raw); err != nil {
		return err
	}
	return in.Driver.SendPacket(&pkt)
}
