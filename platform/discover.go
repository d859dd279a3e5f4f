package platform

import (
	"context"

	"github.com/ardnew/softi2c/hal/linux"
	"github.com/ardnew/softi2c/pkg"
)

// FromClient converts a kernel I2C client into a node.
func FromClient(c linux.Client) Node {
	name := c.Node
	if name == "" {
		name = c.Name
	}
	if name == "" {
		name = linux.FormatClientName(c.Bus, c.Addr)
	}
	return Node{
		Name:       name,
		Compatible: Strings(c.Compatible),
		Bus:        c.Bus,
		Address:    c.Addr,
	}
}

// ScanSysfs returns a node for every I2C client instantiated under root
// (normally linux.SysfsI2CPath).
func ScanSysfs(root string) ([]Node, error) {
	clients, err := linux.ScanClients(root)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(clients))
	for _, c := range clients {
		nodes = append(nodes, FromClient(c))
	}
	return nodes, nil
}

// EventSource delivers kernel uevents. *linux.Monitor implements
// EventSource.
type EventSource interface {
	Run(ctx context.Context, fn func(linux.Event)) error
}

// Watch feeds client add and remove events from src into m until ctx is
// done or src fails.
func (m *Matcher) Watch(ctx context.Context, src EventSource) error {
	return src.Run(ctx, func(evt linux.Event) {
		c, err := evt.Client()
		if err != nil {
			return
		}
		n := FromClient(c)

		switch evt.Action {
		case linux.ActionAdd:
			if _, err := m.Add(ctx, n); err != nil {
				pkg.LogWarn(pkg.ComponentPlatform, "hotplug bind failed",
					"node", n.String(),
					"error", err)
			}
		case linux.ActionRemove:
			if _, err := m.Remove(ctx, n); err != nil {
				pkg.LogWarn(pkg.ComponentPlatform, "hotplug unbind failed",
					"node", n.String(),
					"error", err)
			}
		}
	})
}
