package transport

import "errors"

// Error kinds per §7. None of these propagate to callers on routing
// decisions; they exist so logging call sites can classify what
// happened without constructing ad-hoc strings.
var (
	errDecodeFailure     = errors.New("transport: decode failure")
	errSignatureFailure  = errors.New("transport: announce signature verification failed")
	errNoPath            = errors.New("transport: no known path for transported packet")
	errInterfaceMismatch = errors.New("transport: packet arrived on unexpected interface")
	errReplay            = errors.New("transport: announce replay detected")
)
