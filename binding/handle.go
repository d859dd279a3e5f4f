package binding

import (
	"fmt"
	"time"

	"github.com/ardnew/softi2c/hal"
)

// State is the binding state of a Manager.
type State uint8

// Binding states.
const (
	StateUnbound State = iota // No device bound; bus operations fail
	StateBound                // Device bound; interface published
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "Unbound"
	case StateBound:
		return "Bound"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}

// Handle represents one bound physical device instance.
// It is created by Manager.Bind and invalidated by Manager.Unbind.
type Handle struct {
	node       string
	compatible string
	addr       hal.Addr
	adapter    hal.Adapter
	boundAt    time.Time
}

// Addr returns the device's bus address.
func (h *Handle) Addr() hal.Addr {
	return h.addr
}

// Adapter returns the bus adapter the device is attached to.
func (h *Handle) Adapter() hal.Adapter {
	return h.adapter
}

// Node returns the platform node name the device was discovered as.
func (h *Handle) Node() string {
	return h.node
}

// Compatible returns the compatible identifier the device matched.
func (h *Handle) Compatible() string {
	return h.compatible
}

// BoundAt returns when the device was bound.
func (h *Handle) BoundAt() time.Time {
	return h.boundAt
}

// String describes the handle for logging.
func (h *Handle) String() string {
	return fmt.Sprintf("%s@%s on %s", h.compatible, h.addr, h.adapter.Name())
}
