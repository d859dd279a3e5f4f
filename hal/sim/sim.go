package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/regmap"
)

// Adapter result codes (negated errno, as returned by Linux i2c_transfer).
const (
	CodeIO     = -5   // EIO: bus error
	CodeNXIO   = -6   // ENXIO: address not acknowledged
	CodeAgain  = -11  // EAGAIN: arbitration lost
	CodeRemote = -121 // EREMOTEIO: NACK during data phase
)

// Errors.
var (
	// ErrNACK indicates no target acknowledged the address.
	ErrNACK = errors.New("address not acknowledged")

	// ErrInjected is the default error for injected failures.
	ErrInjected = errors.New("injected bus failure")
)

// failure is a pending injected failure.
type failure struct {
	code int
	err  error
}

// Adapter implements hal.Adapter against in-memory simulated targets.
type Adapter struct {
	name string

	mu      sync.Mutex
	targets map[hal.Addr]*Device
	history [][]hal.Message
	fail    []failure

	// Delay is slept inside each transfer to widen race windows in tests.
	Delay time.Duration

	inFlight atomic.Int32
	overlaps atomic.Int32
	calls    atomic.Int64
}

// New creates an adapter with no targets attached.
func New(name string) *Adapter {
	return &Adapter{
		name:    name,
		targets: make(map[hal.Addr]*Device),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.name
}

// Attach places dev on the bus at addr, replacing any existing target.
func (a *Adapter) Attach(addr hal.Addr, dev *Device) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.targets[addr] = dev
	pkg.LogDebug(pkg.ComponentHAL, "sim target attached", "adapter", a.name, "addr", addr.String())
}

// Detach removes the target at addr.
func (a *Adapter) Detach(addr hal.Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.targets, addr)
	pkg.LogDebug(pkg.ComponentHAL, "sim target detached", "adapter", a.name, "addr", addr.String())
}

// Target returns the device attached at addr, or nil.
func (a *Adapter) Target(addr hal.Addr) *Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targets[addr]
}

// FailNext queues a failure for the next transfer. A nil err defaults to
// ErrInjected; code is returned as the transfer count.
func (a *Adapter) FailNext(code int, err error) {
	if err == nil {
		err = ErrInjected
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = append(a.fail, failure{code: code, err: err})
}

// Calls returns the number of Transfer invocations.
func (a *Adapter) Calls() int {
	return int(a.calls.Load())
}

// Overlaps returns the number of Transfer calls that started while another
// was still in progress.
func (a *Adapter) Overlaps() int {
	return int(a.overlaps.Load())
}

// History returns copies of every message sequence passed to Transfer.
func (a *Adapter) History() [][]hal.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]hal.Message, len(a.history))
	for i, msgs := range a.history {
		out[i] = copyMessages(msgs)
	}
	return out
}

// Last returns a copy of the most recent message sequence, or nil.
func (a *Adapter) Last() []hal.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.history) == 0 {
		return nil
	}
	return copyMessages(a.history[len(a.history)-1])
}

// Reset clears history, counters and pending failures.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.fail = nil
	a.calls.Store(0)
	a.overlaps.Store(0)
}

// Transfer executes msgs against the attached targets.
func (a *Adapter) Transfer(ctx context.Context, msgs []hal.Message) (int, error) {
	a.calls.Add(1)
	if a.inFlight.Add(1) > 1 {
		a.overlaps.Add(1)
	}
	defer a.inFlight.Add(-1)

	if err := ctx.Err(); err != nil {
		return CodeIO, err
	}

	a.mu.Lock()
	a.history = append(a.history, copyMessages(msgs))
	var fail *failure
	if len(a.fail) > 0 {
		f := a.fail[0]
		a.fail = a.fail[1:]
		fail = &f
	}
	a.mu.Unlock()

	if a.Delay > 0 {
		time.Sleep(a.Delay)
	}

	if fail != nil {
		return fail.code, fail.err
	}

	if len(msgs) == 0 {
		return 0, nil
	}

	// A combined transaction addresses one target per message; track the
	// current target so pointer state resets on every address change.
	var cur *Device
	var curAddr hal.Addr
	for i := range msgs {
		m := &msgs[i]
		if cur == nil || m.Addr != curAddr {
			cur = a.Target(m.Addr)
			curAddr = m.Addr
			if cur == nil {
				return CodeNXIO, fmt.Errorf("%w: %s", ErrNACK, m.Addr)
			}
			cur.start()
		}
		cur.exec(m)
	}
	return len(msgs), nil
}

func copyMessages(msgs []hal.Message) []hal.Message {
	out := make([]hal.Message, len(msgs))
	for i, m := range msgs {
		out[i] = hal.Message{Addr: m.Addr, Flags: m.Flags, Buf: append([]byte(nil), m.Buf...)}
	}
	return out
}

// Device is a simulated register-addressed target.
//
// Within one transaction, the first written bytes select the register
// pointer; later written bytes store data and reads fetch data, both
// auto-incrementing the pointer.
type Device struct {
	mu    sync.Mutex
	width int
	regs  map[uint16]byte
	ptr   uint16

	// transaction state
	pointerSet int
}

// NewDevice creates a target whose register pointer is width bytes wide.
func NewDevice(width uint8) *Device {
	if width != regmap.PointerWidth16 {
		width = regmap.PointerWidth8
	}
	return &Device{width: int(width), regs: make(map[uint16]byte)}
}

// NewBMP280 creates a BMP280-class target with power-on register values
// and a fixed measurement sample.
func NewBMP280() *Device {
	d := NewDevice(regmap.PointerWidth8)
	d.Set(regmap.AddrChipID, regmap.ChipIDBMP280)
	d.Set(regmap.AddrStatus, 0x00)
	d.Set(regmap.AddrControl, 0x00)
	d.Set(regmap.AddrConfig, 0x00)
	d.Set(regmap.AddrPressMSB, 0x65, 0x5A, 0xC0)
	d.Set(regmap.AddrTempMSB, 0x7E, 0xED, 0x00)
	return d
}

// Set stores data at consecutive registers starting at addr.
func (d *Device) Set(addr uint16, data ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		d.regs[addr+uint16(i)] = b
	}
}

// Get returns n consecutive register values starting at addr.
func (d *Device) Get(addr uint16, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = d.regs[addr+uint16(i)]
	}
	return out
}

func (d *Device) start() {
	d.mu.Lock()
	d.pointerSet = 0
	d.mu.Unlock()
}

func (d *Device) exec(m *hal.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m.IsRead() {
		for i := range m.Buf {
			m.Buf[i] = d.regs[d.ptr]
			d.ptr++
		}
		return
	}

	for _, b := range m.Buf {
		if d.pointerSet < d.width {
			if d.pointerSet == 0 {
				d.ptr = uint16(b)
			} else {
				d.ptr |= uint16(b) << 8
			}
			d.pointerSet++
			continue
		}
		d.regs[d.ptr] = b
		d.ptr++
	}
}
