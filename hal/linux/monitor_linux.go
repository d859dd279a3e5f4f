//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softi2c/pkg"
)

// pollInterval bounds how long Run blocks between context checks.
const pollInterval = 250 // milliseconds

// Monitor receives kernel uevents for I2C client devices over netlink.
type Monitor struct {
	fd  int
	buf [UEventBufferSize]byte
}

// NewMonitor opens a netlink socket bound to the kernel uevent broadcast
// group.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(
		unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		NetlinkKObjectUEvent,
	)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // Kernel broadcast group
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netlink bind: %w", err)
	}

	return &Monitor{fd: fd}, nil
}

// Close closes the netlink socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run delivers every I2C client add/remove event to fn until ctx is done.
// Other events are discarded. Run returns ctx.Err() on cancellation.
func (m *Monitor) Run(ctx context.Context, fn func(Event)) error {
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("netlink poll: %w", err)
		}
		if n == 0 {
			continue
		}

		for {
			evt, ok, err := m.read()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if !evt.IsI2CClient() {
				continue
			}
			if evt.Action != ActionAdd && evt.Action != ActionRemove {
				continue
			}
			pkg.LogDebug(pkg.ComponentHAL, "i2c uevent",
				"action", evt.Action.String(),
				"devpath", evt.DevPath,
				"compatible", evt.OFCompatible)
			fn(evt)
		}
	}
}

// read reads one datagram. ok is false when no data is pending.
func (m *Monitor) read() (evt Event, ok bool, err error) {
	n, err := unix.Read(m.fd, m.buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return Event{}, false, nil
		}
		// ENOBUFS means the kernel dropped events; keep listening.
		if errors.Is(err, unix.ENOBUFS) {
			pkg.LogWarn(pkg.ComponentHAL, "uevent buffer overrun")
			return Event{}, false, nil
		}
		return Event{}, false, fmt.Errorf("netlink read: %w", err)
	}
	if n <= 0 {
		return Event{}, false, nil
	}
	return ParseUEvent(m.buf[:n]), true, nil
}
