package hal

import (
	"context"
	"fmt"
	"strings"

	"github.com/ardnew/softi2c/pkg"
)

// Flags modify how an adapter executes a message.
type Flags uint16

// Message flags (Linux i2c-dev compatible values).
const (
	FlagRead    Flags = 0x0001 // Read data from the target into Buf
	FlagTenBit  Flags = 0x0010 // Address is a 10-bit address
	FlagNoStart Flags = 0x4000 // Suppress the repeated START before this message
)

// IsRead reports whether the read-direction flag is set.
func (f Flags) IsRead() bool {
	return f&FlagRead != 0
}

// String returns a human-readable flag set.
func (f Flags) String() string {
	var parts []string
	if f.IsRead() {
		parts = append(parts, "read")
	} else {
		parts = append(parts, "write")
	}
	if f&FlagTenBit != 0 {
		parts = append(parts, "tenbit")
	}
	if f&FlagNoStart != 0 {
		parts = append(parts, "nostart")
	}
	return strings.Join(parts, "|")
}

// Addr is an I2C target address.
type Addr uint16

// Address range limits for 7-bit targets.
const (
	MinAddr Addr = 0x08 // First non-reserved 7-bit address
	MaxAddr Addr = 0x77 // Last non-reserved 7-bit address
)

// Valid reports whether a is a usable 7-bit target address.
func (a Addr) Valid() bool {
	return a >= MinAddr && a <= MaxAddr
}

// Validate returns pkg.ErrInvalidAddress if a is not a usable 7-bit address.
func (a Addr) Validate() error {
	if !a.Valid() {
		return fmt.Errorf("%w: 0x%02X", pkg.ErrInvalidAddress, uint16(a))
	}
	return nil
}

// String formats the address in hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%02X", uint16(a))
}

// Message is one directional segment of a bus transaction.
// The message length is len(Buf).
type Message struct {
	Addr  Addr   // Target address
	Flags Flags  // Direction and modifiers
	Buf   []byte // Data to write, or destination for read data
}

// Len returns the number of bytes the message transfers.
func (m *Message) Len() int {
	return len(m.Buf)
}

// IsRead reports whether the message reads from the target.
func (m *Message) IsRead() bool {
	return m.Flags.IsRead()
}

// Adapter is the bus transfer primitive provided by a bus controller.
//
// Transfer executes msgs in order as a single combined transaction,
// separated by repeated STARTs and terminated by one STOP. It returns the
// number of messages completed. A failed transaction is reported by a
// negative count, a non-nil error, or both; in that case the contents of
// any read buffers are undefined.
//
// Implementations need not serialize concurrent callers; the binding layer
// serializes all access to a bound device.
type Adapter interface {
	// Transfer executes msgs as one combined transaction.
	Transfer(ctx context.Context, msgs []Message) (int, error)

	// Name identifies the adapter for logging.
	Name() string
}

// Closer is implemented by adapters that hold OS resources.
type Closer interface {
	Close() error
}
