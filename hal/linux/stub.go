//go:build !linux

package linux

import (
	"context"
	"fmt"
	"time"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
)

// Options configures an Adapter.
type Options struct {
	Timeout time.Duration
	Retries int
}

// Adapter is unavailable on this platform.
type Adapter struct{}

// Open always fails with pkg.ErrNotSupported on this platform.
func Open(bus int, _ Options) (*Adapter, error) {
	return nil, fmt.Errorf("%w: i2c-dev bus %d requires linux", pkg.ErrNotSupported, bus)
}

// Name returns an empty string.
func (*Adapter) Name() string { return "" }

// Bus returns -1.
func (*Adapter) Bus() int { return -1 }

// Transfer always fails with pkg.ErrNotSupported.
func (*Adapter) Transfer(context.Context, []hal.Message) (int, error) {
	return -1, pkg.ErrNotSupported
}

// Close is a no-op.
func (*Adapter) Close() error { return nil }

// Monitor is unavailable on this platform.
type Monitor struct{}

// NewMonitor always fails with pkg.ErrNotSupported on this platform.
func NewMonitor() (*Monitor, error) {
	return nil, fmt.Errorf("%w: uevent monitoring requires linux", pkg.ErrNotSupported)
}

// Close is a no-op.
func (*Monitor) Close() error { return nil }

// Run returns pkg.ErrNotSupported.
func (*Monitor) Run(context.Context, func(Event)) error {
	return pkg.ErrNotSupported
}
