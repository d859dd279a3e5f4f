package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/transfer"
)

// Defaults for the BMP280-class driver.
const (
	DefaultCompatible = "myi2c"    // Platform compatible identifier
	DefaultName       = "myi2cdev" // Logical name of the user-facing interface
)

// Registrar publishes and retracts the user-facing interface.
type Registrar interface {
	// Register publishes the interface under name.
	Register(name string) error

	// Unregister retracts the interface published under name.
	Unregister(name string) error
}

// Candidate is a device discovered by the platform that may be bound.
type Candidate struct {
	Node       string      // Platform node name (informational)
	Compatible string      // Compatible identifier from the platform description
	Addr       hal.Addr    // 7-bit bus address
	Adapter    hal.Adapter // Bus the device is attached to
}

// Options configures a Manager.
type Options struct {
	Compatible string    // Compatible identifier to match; DefaultCompatible if empty
	Name       string    // Interface name; DefaultName if empty
	Registrar  Registrar // Interface publisher; nopRegistrar if nil
}

// Manager owns the single bound device handle and serializes all bus
// access to it.
type Manager struct {
	compatible string
	name       string
	registrar  Registrar
	engine     *transfer.Engine

	// lifecycle serializes Bind and Unbind.
	lifecycle sync.Mutex

	// bus is held for the duration of each transaction.
	bus chan struct{}

	stateMu sync.RWMutex
	state   State
	handle  *Handle

	cbMu     sync.RWMutex
	onBind   func(*Handle)
	onUnbind func(*Handle)
}

// New creates an unbound Manager.
func New(opts Options) *Manager {
	if opts.Compatible == "" {
		opts.Compatible = DefaultCompatible
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Registrar == nil {
		opts.Registrar = nopRegistrar{}
	}
	m := &Manager{
		compatible: opts.Compatible,
		name:       opts.Name,
		registrar:  opts.Registrar,
		bus:        make(chan struct{}, 1),
		state:      StateUnbound,
	}
	m.engine = transfer.New(m)
	return m
}

// Compatible returns the compatible identifier this manager binds.
func (m *Manager) Compatible() string {
	return m.compatible
}

// Name returns the logical interface name.
func (m *Manager) Name() string {
	return m.name
}

// Engine returns the transaction engine bound to this manager.
func (m *Manager) Engine() *transfer.Engine {
	return m.engine
}

// Match reports whether compatible exactly equals the driver identifier.
func (m *Manager) Match(compatible string) bool {
	return compatible == m.compatible
}

// State returns the current binding state.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Handle returns the bound handle, or nil when unbound.
func (m *Manager) Handle() *Handle {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.handle
}

// SetOnBind sets the callback invoked after a successful bind. The callback
// runs without the manager's lifecycle lock held, so it may call Bind or
// Unbind.
func (m *Manager) SetOnBind(cb func(*Handle)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onBind = cb
}

// SetOnUnbind sets the callback invoked after an unbind. Like the bind
// callback, it may call back into the manager.
func (m *Manager) SetOnUnbind(cb func(*Handle)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onUnbind = cb
}

// Bind associates the driver with c and publishes the user-facing
// interface. It fails with pkg.ErrAlreadyBound if a device is bound,
// pkg.ErrNoMatch if c is not compatible, and a *pkg.BindError if the
// interface cannot be registered. A failed Bind changes nothing.
func (m *Manager) Bind(ctx context.Context, c Candidate) (*Handle, error) {
	h, err := m.bind(ctx, c)
	if err != nil {
		return nil, err
	}

	m.cbMu.RLock()
	cb := m.onBind
	m.cbMu.RUnlock()
	if cb != nil {
		cb(h)
	}
	return h, nil
}

func (m *Manager) bind(ctx context.Context, c Candidate) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if cur := m.Handle(); cur != nil {
		return nil, fmt.Errorf("%w: %s at %s", pkg.ErrAlreadyBound, cur.node, cur.addr)
	}
	if !m.Match(c.Compatible) {
		return nil, fmt.Errorf("%w: %q (want %q)", pkg.ErrNoMatch, c.Compatible, m.compatible)
	}
	if err := c.Addr.Validate(); err != nil {
		return nil, err
	}
	if c.Adapter == nil {
		return nil, fmt.Errorf("%w: no adapter for %s", pkg.ErrNoDevice, c.Addr)
	}

	if err := m.registrar.Register(m.name); err != nil {
		pkg.LogError(pkg.ComponentBinding, "could not register interface",
			"name", m.name,
			"error", err)
		return nil, &pkg.BindError{Name: m.name, Err: err}
	}

	h := &Handle{
		node:       c.Node,
		compatible: c.Compatible,
		addr:       c.Addr,
		adapter:    c.Adapter,
		boundAt:    time.Now(),
	}

	m.stateMu.Lock()
	m.handle = h
	m.state = StateBound
	m.stateMu.Unlock()

	pkg.LogInfo(pkg.ComponentBinding, "device bound",
		"name", m.name,
		"node", c.Node,
		"addr", c.Addr.String(),
		"adapter", c.Adapter.Name())

	return h, nil
}

// Unbind retracts the user-facing interface and clears the bound handle.
// Calling Unbind while unbound is a no-op that returns nil. If ctx ends
// while a transaction holds the bus, the handle is cleared without waiting
// and the context error is returned.
func (m *Manager) Unbind(ctx context.Context) error {
	h, err := m.unbind(ctx)
	if h == nil {
		return err
	}

	m.cbMu.RLock()
	cb := m.onUnbind
	m.cbMu.RUnlock()
	if cb != nil {
		cb(h)
	}
	return err
}

// unbind returns the handle it cleared, or nil if nothing was bound.
func (m *Manager) unbind(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	h := m.Handle()
	if h == nil {
		pkg.LogDebug(pkg.ComponentBinding, "unbind without bound device", "name", m.name)
		return nil, nil
	}

	var unregErr error
	if err := m.registrar.Unregister(m.name); err != nil {
		// The handle is cleared even if unregistration fails.
		unregErr = fmt.Errorf("unregister %s: %w", m.name, err)
		pkg.LogWarn(pkg.ComponentBinding, "could not unregister interface",
			"name", m.name,
			"error", err)
	}

	// Wait for any in-flight transaction before clearing the handle. If
	// ctx ends first the handle is cleared anyway; the running transaction
	// keeps its own reference and later ones see pkg.ErrNoDevice.
	var waitErr error
	select {
	case m.bus <- struct{}{}:
		defer func() { <-m.bus }()
	case <-ctx.Done():
		waitErr = fmt.Errorf("unbind %s: waiting for bus: %w", m.name, ctx.Err())
		pkg.LogWarn(pkg.ComponentBinding, "unbind did not wait for in-flight transaction",
			"name", m.name,
			"error", ctx.Err())
	}
	m.stateMu.Lock()
	m.handle = nil
	m.state = StateUnbound
	m.stateMu.Unlock()

	pkg.LogInfo(pkg.ComponentBinding, "device unbound",
		"name", m.name,
		"node", h.node,
		"addr", h.addr.String())

	return h, errors.Join(unregErr, waitErr)
}

// Do runs fn with exclusive access to the bound device. It returns
// pkg.ErrNoDevice without calling fn when no device is bound, and
// ctx.Err() if ctx ends while waiting for the bus.
func (m *Manager) Do(ctx context.Context, fn func(transfer.Device) error) error {
	select {
	case m.bus <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.bus }()

	h := m.Handle()
	if h == nil {
		return pkg.ErrNoDevice
	}
	return fn(h)
}

// nopRegistrar publishes nothing.
type nopRegistrar struct{}

func (nopRegistrar) Register(string) error   { return nil }
func (nopRegistrar) Unregister(string) error { return nil }
