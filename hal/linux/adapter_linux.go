//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
)

// =============================================================================
// Kernel Structures
// =============================================================================

// i2cMsg must match the kernel's struct i2c_msg layout.
type i2cMsg struct {
	addr  uint16 // Target address
	flags uint16 // I2C_M_* flags
	len   uint16 // Buffer length
	buf   *byte  // Data buffer
}

// i2cRdwrData must match the kernel's struct i2c_rdwr_ioctl_data layout.
type i2cRdwrData struct {
	msgs  *i2cMsg // Message array
	nmsgs uint32  // Number of messages
}

// =============================================================================
// Adapter
// =============================================================================

// Options configures an Adapter.
type Options struct {
	// Timeout sets the adapter timeout (I2C_TIMEOUT), rounded to 10 ms.
	// Zero leaves the kernel default.
	Timeout time.Duration

	// Retries sets the number of address retries (I2C_RETRIES).
	// Zero leaves the kernel default.
	Retries int
}

// Adapter implements hal.Adapter on a Linux i2c-dev character device.
//
// The kernel serializes transfers on one adapter; the Adapter additionally
// serializes calls through its file descriptor.
type Adapter struct {
	path  string
	bus   int
	funcs uint // unsigned long in the kernel ABI

	mu     sync.Mutex
	fd     int
	closed bool
}

// Open opens /dev/i2c-<bus> and verifies the adapter supports combined
// I2C_RDWR transfers.
func Open(bus int, opts Options) (*Adapter, error) {
	path := fmt.Sprintf("%s%d", DevI2CPrefix, bus)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	a := &Adapter{path: path, bus: bus, fd: fd}

	if err := a.ioctl(ioctlI2CFuncs, uintptr(unsafe.Pointer(&a.funcs))); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: I2C_FUNCS: %w", path, err)
	}
	if a.funcs&FuncI2C == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s lacks plain I2C transfers", pkg.ErrNotSupported, path)
	}

	if opts.Timeout > 0 {
		ticks := uintptr((opts.Timeout + 9*time.Millisecond) / (10 * time.Millisecond))
		if err := a.ioctl(ioctlI2CTimeout, ticks); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("%s: I2C_TIMEOUT: %w", path, err)
		}
	}
	if opts.Retries > 0 {
		if err := a.ioctl(ioctlI2CRetries, uintptr(opts.Retries)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("%s: I2C_RETRIES: %w", path, err)
		}
	}

	pkg.LogInfo(pkg.ComponentHAL, "i2c adapter opened",
		"path", path,
		"funcs", fmt.Sprintf("0x%08X", a.funcs))

	return a, nil
}

// Name returns the device path, e.g. "/dev/i2c-1".
func (a *Adapter) Name() string {
	return a.path
}

// Bus returns the adapter number.
func (a *Adapter) Bus() int {
	return a.bus
}

// Functionality returns the I2C_FUNCS mask reported by the kernel.
func (a *Adapter) Functionality() uint {
	return a.funcs
}

// Transfer submits msgs as one combined I2C_RDWR transaction. It returns
// the number of messages completed or a negated errno with the error.
// ctx is checked before the ioctl; the ioctl itself cannot be cancelled.
func (a *Adapter) Transfer(ctx context.Context, msgs []hal.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return -int(unix.ECANCELED), err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if len(msgs) > MaxMessages {
		return -int(unix.EINVAL), fmt.Errorf("%w: %d messages exceeds %d",
			pkg.ErrNotSupported, len(msgs), MaxMessages)
	}

	kmsgs := make([]i2cMsg, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if len(m.Buf) == 0 || len(m.Buf) > 0xFFFF {
			return -int(unix.EINVAL), fmt.Errorf("message %d: invalid length %d", i, len(m.Buf))
		}
		if m.Flags&hal.FlagTenBit != 0 && a.funcs&FuncTenBitAddr == 0 {
			return -int(unix.EOPNOTSUPP), fmt.Errorf("%w: 10-bit addressing", pkg.ErrNotSupported)
		}
		kmsgs[i] = i2cMsg{
			addr:  uint16(m.Addr),
			flags: uint16(m.Flags),
			len:   uint16(len(m.Buf)),
			buf:   &m.Buf[0],
		}
	}
	data := i2cRdwrData{msgs: &kmsgs[0], nmsgs: uint32(len(kmsgs))}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return -int(unix.EBADF), fmt.Errorf("%s: %w", a.path, unix.EBADF)
	}

	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(a.fd), ioctlI2CRdwr,
		uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(kmsgs)
	runtime.KeepAlive(msgs)

	if errno != 0 {
		return -int(errno), errno
	}
	return int(r), nil
}

// Close releases the character device. Subsequent transfers fail.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	pkg.LogDebug(pkg.ComponentHAL, "i2c adapter closed", "path", a.path)
	return unix.Close(a.fd)
}

func (a *Adapter) ioctl(req, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(a.fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// IsNACK reports whether err is the kernel's "no acknowledge" result.
func IsNACK(err error) bool {
	return errors.Is(err, unix.ENXIO) || errors.Is(err, unix.EREMOTEIO)
}
