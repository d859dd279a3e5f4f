package transfer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/regmap"
)

// Device is a bound bus target.
type Device interface {
	// Addr returns the target's 7-bit bus address.
	Addr() hal.Addr

	// Adapter returns the bus adapter the target is attached to.
	Adapter() hal.Adapter
}

// Locker grants exclusive access to the bound device.
//
// Do calls fn with the bound device while holding the bus lock, or returns
// pkg.ErrNoDevice without calling fn if no device is bound.
type Locker interface {
	Do(ctx context.Context, fn func(Device) error) error
}

// Stats holds engine counters.
type Stats struct {
	Transactions uint64 // Transactions submitted to the adapter
	Failures     uint64 // Transactions the adapter rejected
}

// Engine executes register reads and writes as framed bus transactions.
// An Engine is safe for concurrent use; the Locker serializes access to
// the bus.
type Engine struct {
	dev Locker

	transactions atomic.Uint64
	failures     atomic.Uint64
}

// New creates an engine that resolves its target through dev.
func New(dev Locker) *Engine {
	return &Engine{dev: dev}
}

// Read reads reg and returns a new slice of reg.Length bytes.
// On failure no data is returned.
func (e *Engine) Read(ctx context.Context, reg regmap.Register) ([]byte, error) {
	buf := make([]byte, reg.Length)
	if _, err := e.ReadInto(ctx, reg, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto reads reg into buf and returns the number of bytes read.
// buf is only modified when the transaction succeeds.
func (e *Engine) ReadInto(ctx context.Context, reg regmap.Register, buf []byte) (int, error) {
	if len(buf) < int(reg.Length) {
		return 0, fmt.Errorf("%w: need %d, have %d", pkg.ErrBufferTooSmall, reg.Length, len(buf))
	}

	// Stage into scratch so a failed transfer never leaks partial data.
	var scratch [regmap.MaxLength]byte
	err := e.dev.Do(ctx, func(d Device) error {
		tx, err := ReadTransaction(d.Addr(), reg, scratch[:])
		if err != nil {
			return err
		}
		return e.submit(ctx, d, &tx)
	})
	if err != nil {
		return 0, err
	}

	n := copy(buf, scratch[:reg.Length])
	pkg.LogDebug(pkg.ComponentTransfer, "register read",
		"register", reg.Name,
		"data", fmt.Sprintf("% X", buf[:n]))
	return n, nil
}

// Write writes a single byte to reg.
func (e *Engine) Write(ctx context.Context, reg regmap.Register, value byte) error {
	// Reject read-only registers before taking the bus.
	if !reg.Writable() {
		return fmt.Errorf("%w: %s", pkg.ErrReadOnly, reg.Name)
	}
	err := e.dev.Do(ctx, func(d Device) error {
		tx, err := WriteTransaction(d.Addr(), reg, value)
		if err != nil {
			return err
		}
		return e.submit(ctx, d, &tx)
	})
	if err != nil {
		return err
	}

	pkg.LogDebug(pkg.ComponentTransfer, "register written",
		"register", reg.Name,
		"value", fmt.Sprintf("0x%02X", value))
	return nil
}

// Submit validates and executes an arbitrary transaction against the bound
// device.
func (e *Engine) Submit(ctx context.Context, tx *Transaction) error {
	return e.dev.Do(ctx, func(d Device) error {
		return e.submit(ctx, d, tx)
	})
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Transactions: e.transactions.Load(),
		Failures:     e.failures.Load(),
	}
}

// submit runs tx on d. The caller holds the bus lock.
func (e *Engine) submit(ctx context.Context, d Device, tx *Transaction) error {
	if err := tx.Validate(d.Addr()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.transactions.Add(1)
	n, err := d.Adapter().Transfer(ctx, tx.Msgs)

	switch {
	case err != nil || n < 0:
		if n >= 0 {
			n = -1
		}
		e.failures.Add(1)
		terr := &pkg.TransferError{
			Addr:     uint16(d.Addr()),
			Messages: len(tx.Msgs),
			Code:     n,
			Err:      err,
		}
		pkg.LogWarn(pkg.ComponentTransfer, "transaction failed",
			"kind", tx.Kind.String(),
			"register", tx.Register.Name,
			"addr", d.Addr().String(),
			"adapter", d.Adapter().Name(),
			"code", n,
			"error", err)
		return terr

	case n < len(tx.Msgs):
		e.failures.Add(1)
		pkg.LogWarn(pkg.ComponentTransfer, "short transaction",
			"kind", tx.Kind.String(),
			"register", tx.Register.Name,
			"completed", n,
			"submitted", len(tx.Msgs))
		return &pkg.TransferError{
			Addr:     uint16(d.Addr()),
			Messages: len(tx.Msgs),
			Code:     n,
			Err:      pkg.ErrShortTransfer,
		}
	}

	return nil
}
