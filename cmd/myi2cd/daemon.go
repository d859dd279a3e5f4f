package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardnew/softi2c/binding"
	"github.com/ardnew/softi2c/command"
	"github.com/ardnew/softi2c/config"
	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/hal/linux"
	"github.com/ardnew/softi2c/hal/sim"
	"github.com/ardnew/softi2c/miscdev"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/platform"
	"github.com/ardnew/softi2c/telemetry"
)

// shutdownTimeout bounds the final unbind.
const shutdownTimeout = 5 * time.Second

// daemon wires the platform description, the binding manager, the
// published interface and telemetry together.
type daemon struct {
	cfg *config.Config

	mgr       *binding.Manager
	server    *miscdev.Server
	disp      *command.Dispatcher
	matcher   *platform.Matcher
	publisher *telemetry.Publisher

	mu    sync.Mutex
	buses map[int]hal.Adapter
}

func newDaemon(cfg *config.Config) *daemon {
	d := &daemon{
		cfg:   cfg,
		buses: make(map[int]hal.Adapter),
	}

	// The server needs the dispatcher, which needs the manager's engine,
	// which needs the server as its registrar.
	d.server = miscdev.NewServer(cfg.MiscDev.Dir, nil)
	d.mgr = binding.New(binding.Options{
		Compatible: cfg.Device.Compatible,
		Name:       cfg.Device.Name,
		Registrar:  d.server,
	})

	opts := command.Options{WriteBack: cfg.Dispatcher.WriteBack}
	if cfg.MQTT.Enabled {
		pub, err := telemetry.Connect(telemetry.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			Device:   cfg.Device.Name,
			QoS:      byte(cfg.MQTT.QoS),
			Retained: cfg.MQTT.Retained,
		})
		if err != nil {
			// Telemetry is optional; the driver runs without it.
			pkg.LogWarn(pkg.ComponentDaemon, "telemetry disabled", "error", err)
		} else {
			d.publisher = pub
			opts.Reporter = pub
		}
	}
	d.disp = command.New(d.mgr.Engine(), opts)
	d.server.SetHandler(d.disp)

	d.matcher = platform.NewMatcher(d.mgr, d.adapter)

	d.mgr.SetOnBind(func(h *binding.Handle) {
		pkg.LogInfo(pkg.ComponentDaemon, "interface available",
			"device", h.String(),
			"socket", d.server.SocketPath(cfg.Device.Name))
	})
	d.mgr.SetOnUnbind(func(h *binding.Handle) {
		pkg.LogInfo(pkg.ComponentDaemon, "interface removed", "device", h.String())
	})

	return d
}

// adapter returns the adapter for bus, opening it on first use.
func (d *daemon) adapter(bus int) (hal.Adapter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.buses[bus]; ok {
		return a, nil
	}

	var a hal.Adapter
	switch d.cfg.Bus.Kind {
	case config.BusSim:
		s := sim.New(fmt.Sprintf("sim%d", bus))
		if bus == d.cfg.Bus.Number {
			s.Attach(hal.Addr(d.cfg.Bus.Address), sim.NewBMP280())
		}
		a = s
	case config.BusLinux:
		la, err := linux.Open(bus, linux.Options{
			Timeout: d.cfg.BusTimeout(),
			Retries: d.cfg.Bus.Retries,
		})
		if err != nil {
			return nil, err
		}
		a = la
	default:
		return nil, fmt.Errorf("%w: bus kind %q", pkg.ErrNotSupported, d.cfg.Bus.Kind)
	}

	d.buses[bus] = a
	return a, nil
}

// nodes returns the platform description: the board file if configured,
// otherwise the simulated sensor or the kernel's instantiated clients.
func (d *daemon) nodes() ([]platform.Node, error) {
	if d.cfg.Board.Path != "" {
		b, err := platform.LoadBoard(d.cfg.Board.Path)
		if err != nil {
			return nil, err
		}
		pkg.LogInfo(pkg.ComponentDaemon, "board loaded", "board", b.Name, "devices", len(b.Nodes))
		return b.Nodes, nil
	}

	if d.cfg.Bus.Kind == config.BusSim {
		return []platform.Node{{
			Name:       "sim-bmp280",
			Compatible: platform.Strings{d.cfg.Device.Compatible},
			Bus:        d.cfg.Bus.Number,
			Address:    hal.Addr(d.cfg.Bus.Address),
		}}, nil
	}

	return platform.ScanSysfs(linux.SysfsI2CPath)
}

// run matches the platform description, follows hotplug events if
// enabled, and tears everything down when ctx is done.
func (d *daemon) run(ctx context.Context) error {
	defer d.close()

	nodes, err := d.nodes()
	if err != nil {
		return err
	}
	if err := d.matcher.Sync(ctx, nodes); err != nil {
		// Stay up unbound; a hotplug event may bind later.
		pkg.LogError(pkg.ComponentDaemon, "platform sync failed", "error", err)
	}
	if _, ok := d.matcher.Bound(); !ok {
		pkg.LogWarn(pkg.ComponentDaemon, "no compatible device found",
			"compatible", d.cfg.Device.Compatible,
			"candidates", len(nodes))
	}

	var wg sync.WaitGroup
	if d.cfg.Board.Hotplug && d.cfg.Bus.Kind == config.BusLinux {
		mon, err := linux.NewMonitor()
		if err != nil {
			pkg.LogWarn(pkg.ComponentDaemon, "hotplug disabled", "error", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer mon.Close()
				if err := d.matcher.Watch(ctx, mon); err != nil && !errors.Is(err, context.Canceled) {
					pkg.LogError(pkg.ComponentDaemon, "hotplug monitor stopped", "error", err)
				}
			}()
		}
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// close unbinds the device and releases every resource.
func (d *daemon) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.matcher.Release(ctx); err != nil {
		pkg.LogWarn(pkg.ComponentDaemon, "release failed", "error", err)
	}

	dispatched, failed := d.disp.Counts()
	pkg.LogInfo(pkg.ComponentDaemon, "shutdown",
		"dispatched", dispatched,
		"failed", failed)

	if d.publisher != nil {
		d.publisher.Close()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for bus, a := range d.buses {
		if c, ok := a.(hal.Closer); ok {
			if err := c.Close(); err != nil {
				pkg.LogWarn(pkg.ComponentDaemon, "close adapter", "bus", bus, "error", err)
			}
		}
		delete(d.buses, bus)
	}
}
