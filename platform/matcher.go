package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardnew/softi2c/binding"
	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
)

// Binder binds and unbinds a single device. *binding.Manager implements
// Binder.
type Binder interface {
	Match(compatible string) bool
	Bind(ctx context.Context, c binding.Candidate) (*binding.Handle, error)
	Unbind(ctx context.Context) error
}

// AdapterFunc returns the bus adapter for a bus number.
type AdapterFunc func(bus int) (hal.Adapter, error)

// Matcher feeds platform nodes to a Binder: a node whose compatible
// strings include the driver identifier is bound; removing the bound node
// unbinds it.
type Matcher struct {
	binder   Binder
	adapters AdapterFunc

	mu    sync.Mutex
	bound *Node
}

// NewMatcher creates a matcher that binds through b and resolves adapters
// through adapters.
func NewMatcher(b Binder, adapters AdapterFunc) *Matcher {
	return &Matcher{binder: b, adapters: adapters}
}

// Bound returns the node currently bound, if any.
func (m *Matcher) Bound() (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound == nil {
		return Node{}, false
	}
	return *m.bound, true
}

// Add offers n to the binder. It reports whether n was bound. A node that
// does not match is ignored; a matching node that arrives while another is
// bound fails with pkg.ErrAlreadyBound.
func (m *Matcher) Add(ctx context.Context, n Node) (bool, error) {
	compat, ok := n.Matches(m.binder.Match)
	if !ok {
		pkg.LogDebug(pkg.ComponentPlatform, "node not compatible",
			"node", n.Name,
			"compatible", []string(n.Compatible))
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bound != nil && m.bound.same(n) {
		return false, nil
	}

	adapter, err := m.adapters(n.Bus)
	if err != nil {
		return false, fmt.Errorf("%s: adapter: %w", n, err)
	}

	_, err = m.binder.Bind(ctx, binding.Candidate{
		Node:       n.Name,
		Compatible: compat,
		Addr:       n.Address,
		Adapter:    adapter,
	})
	if err != nil {
		pkg.LogWarn(pkg.ComponentPlatform, "bind failed",
			"node", n.String(),
			"error", err)
		return false, err
	}

	bound := n
	m.bound = &bound
	pkg.LogInfo(pkg.ComponentPlatform, "node matched", "node", n.String(), "compatible", compat)
	return true, nil
}

// Remove reports the removal of n. If n is the bound node, it is unbound.
// It reports whether an unbind took place.
func (m *Matcher) Remove(ctx context.Context, n Node) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bound == nil || !m.bound.same(n) {
		return false, nil
	}

	err := m.binder.Unbind(ctx)
	// The binder clears its handle even when unregistering fails.
	m.bound = nil
	pkg.LogInfo(pkg.ComponentPlatform, "node removed", "node", n.String())
	return true, err
}

// Release unbinds whatever node is bound, as on driver unload.
func (m *Matcher) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bound == nil {
		return nil
	}
	err := m.binder.Unbind(ctx)
	m.bound = nil
	return err
}

// Sync offers every node in order. The first compatible node is bound;
// later compatible nodes are logged and skipped. A node whose interface
// cannot be registered is skipped too, leaving the driver unbound.
func (m *Matcher) Sync(ctx context.Context, nodes []Node) error {
	for _, n := range nodes {
		if _, err := m.Add(ctx, n); err != nil {
			if errors.Is(err, pkg.ErrAlreadyBound) || errors.Is(err, pkg.ErrRegistrationFailed) {
				continue
			}
			return err
		}
	}
	return nil
}
