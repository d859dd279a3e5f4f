package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softi2c/binding"
	"github.com/ardnew/softi2c/config"
	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/hal/sim"
	"github.com/ardnew/softi2c/miscdev"
	"github.com/ardnew/softi2c/pkg"
)

func simConfig(t *testing.T) *config.Config {
	t.Helper()
	dir, err := os.MkdirTemp("", "myi2cd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := config.Default()
	cfg.MiscDev.Dir = dir
	require.NoError(t, cfg.Validate())
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) (*daemon, context.CancelFunc, <-chan error) {
	t.Helper()
	d := newDaemon(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()
	t.Cleanup(cancel)
	return d, cancel, done
}

func TestDaemon_SimRoundTrip(t *testing.T) {
	cfg := simConfig(t)
	d, cancel, done := startDaemon(t, cfg)

	path := filepath.Join(cfg.MiscDev.Dir, cfg.Device.Name+miscdev.SocketSuffix)
	require.Eventually(t, func() bool {
		return d.mgr.State() == binding.StateBound
	}, 2*time.Second, 5*time.Millisecond)

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()

	c, err := miscdev.Dial(ctx, path)
	require.NoError(t, err)
	defer c.Close()

	session, err := c.Open(ctx)
	require.NoError(t, err)

	resp, err := c.Ioctl(ctx, session, 100, 110)
	require.NoError(t, err)
	assert.Equal(t, pkg.StatusSuccess, resp.Status)
	assert.Equal(t, uint8(0x7E), resp.Value)
	require.NoError(t, c.Release(ctx, session))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.Equal(t, binding.StateUnbound, d.mgr.State())
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "socket removed on shutdown")

	dispatched, failed := d.disp.Counts()
	assert.Equal(t, uint64(1), dispatched)
	assert.Zero(t, failed)
}

func TestDaemon_WriteBack(t *testing.T) {
	cfg := simConfig(t)
	cfg.Dispatcher.WriteBack = true
	d := newDaemon(cfg)
	defer d.close()

	nodes, err := d.nodes()
	require.NoError(t, err)
	require.NoError(t, d.matcher.Sync(context.Background(), nodes))

	r := d.disp.HandleCommand(context.Background(), 1, 2)
	require.NoError(t, r.Err)

	a, err := d.adapter(cfg.Bus.Number)
	require.NoError(t, err)
	dev := a.(*sim.Adapter).Target(0x76)
	require.NotNil(t, dev)
	assert.Equal(t, []byte{0x7F}, dev.Get(0xF4, 1))
}

func TestDaemon_BoardFile(t *testing.T) {
	cfg := simConfig(t)
	cfg.Bus.Number = 2
	cfg.Bus.Address = 0x77
	cfg.Board.Path = filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(cfg.Board.Path, []byte(`
board: test
devices:
  - name: eeprom
    compatible: atmel,24c02
    bus: 2
    address: 0x50
  - name: pressure
    compatible: myi2c
    bus: 2
    address: 0x77
`), 0o644))

	d := newDaemon(cfg)
	defer d.close()

	nodes, err := d.nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	require.NoError(t, d.matcher.Sync(context.Background(), nodes))
	n, ok := d.matcher.Bound()
	require.True(t, ok)
	assert.Equal(t, "pressure", n.Name)
	assert.Equal(t, hal.Addr(0x77), d.mgr.Handle().Addr())
}

func TestDaemon_NoCompatibleDevice(t *testing.T) {
	cfg := simConfig(t)
	cfg.Device.Compatible = "other"
	cfg.Board.Path = filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(cfg.Board.Path, []byte("devices:\n  - name: p\n    compatible: myi2c\n    address: 0x76\n"), 0o644))

	d, cancel, done := startDaemon(t, cfg)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, binding.StateUnbound, d.mgr.State())

	// Commands fail cleanly without a device.
	r := d.disp.HandleCommand(context.Background(), 100, 110)
	assert.ErrorIs(t, r.Err, pkg.ErrNoDevice)

	cancel()
	assert.NoError(t, <-done)
}

func TestDaemon_RegistrationFailureKeepsRunning(t *testing.T) {
	cfg := simConfig(t)
	path := filepath.Join(cfg.MiscDev.Dir, cfg.Device.Name+miscdev.SocketSuffix)
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0o644))

	d, cancel, done := startDaemon(t, cfg)

	select {
	case err := <-done:
		t.Fatalf("daemon stopped after failed registration: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, binding.StateUnbound, d.mgr.State())

	r := d.disp.HandleCommand(context.Background(), 100, 110)
	assert.ErrorIs(t, r.Err, pkg.ErrNoDevice)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// The foreign file is left alone.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a socket", string(data))
}

func TestDaemon_AdapterCache(t *testing.T) {
	d := newDaemon(simConfig(t))
	defer d.close()

	a1, err := d.adapter(1)
	require.NoError(t, err)
	a2, err := d.adapter(1)
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	// Only the configured bus carries the simulated sensor.
	other, err := d.adapter(5)
	require.NoError(t, err)
	assert.Nil(t, other.(*sim.Adapter).Target(0x76))
}

func TestDaemon_MissingBoard(t *testing.T) {
	cfg := simConfig(t)
	cfg.Board.Path = filepath.Join(t.TempDir(), "missing.yaml")

	err := newDaemon(cfg).run(context.Background())
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging(config.LoggingConfig{Level: "warn", Format: "text"}))
	assert.Error(t, setupLogging(config.LoggingConfig{Level: "loud"}))
	assert.Error(t, setupLogging(config.LoggingConfig{Format: "xml"}))
}
