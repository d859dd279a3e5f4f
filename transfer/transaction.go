package transfer

import (
	"fmt"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/regmap"
)

// Kind classifies a transaction by its data phase.
type Kind uint8

// Transaction kinds.
const (
	KindRead  Kind = iota // Pointer write, then read
	KindWrite             // Pointer write, then payload write
)

// String returns the transaction kind name.
func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Transaction is an ordered message sequence submitted to the adapter as
// one combined transfer.
type Transaction struct {
	Kind     Kind
	Register regmap.Register
	Msgs     []hal.Message
}

// ReadTransaction frames a register read: a pointer write of
// reg.PointerWidth bytes followed by a read of reg.Length bytes into buf.
// buf must hold at least reg.Length bytes; only the first reg.Length bytes
// are used.
func ReadTransaction(addr hal.Addr, reg regmap.Register, buf []byte) (Transaction, error) {
	if err := reg.Validate(); err != nil {
		return Transaction{}, err
	}
	if len(buf) < int(reg.Length) {
		return Transaction{}, fmt.Errorf("%w: need %d, have %d",
			pkg.ErrBufferTooSmall, reg.Length, len(buf))
	}
	return Transaction{
		Kind:     KindRead,
		Register: reg,
		Msgs: []hal.Message{
			{Addr: addr, Buf: reg.Pointer()},
			{Addr: addr, Flags: hal.FlagRead, Buf: buf[:reg.Length]},
		},
	}, nil
}

// WriteTransaction frames a single byte register write: a pointer write
// followed by a one byte payload write.
func WriteTransaction(addr hal.Addr, reg regmap.Register, value byte) (Transaction, error) {
	if err := reg.Validate(); err != nil {
		return Transaction{}, err
	}
	if !reg.Writable() {
		return Transaction{}, fmt.Errorf("%w: %s", pkg.ErrReadOnly, reg.Name)
	}
	return Transaction{
		Kind:     KindWrite,
		Register: reg,
		Msgs: []hal.Message{
			{Addr: addr, Buf: reg.Pointer()},
			{Addr: addr, Buf: []byte{value}},
		},
	}, nil
}

// Validate checks the transaction invariants against the target address:
// at least one message, every message non-empty and addressed to addr, and
// for reads, only the final message carries the read flag.
func (t *Transaction) Validate(addr hal.Addr) error {
	if len(t.Msgs) == 0 {
		return pkg.ErrEmptyTransaction
	}
	last := len(t.Msgs) - 1
	for i := range t.Msgs {
		m := &t.Msgs[i]
		if m.Addr != addr {
			return fmt.Errorf("%w: message %d to %s, device at %s",
				pkg.ErrMisaddressed, i, m.Addr, addr)
		}
		if m.Len() == 0 {
			return fmt.Errorf("%w: message %d is empty", pkg.ErrInvalidRegister, i)
		}
		if m.IsRead() && (t.Kind != KindRead || i != last) {
			return fmt.Errorf("%w: unexpected read at message %d", pkg.ErrInvalidRegister, i)
		}
	}
	if t.Kind == KindRead && !t.Msgs[last].IsRead() {
		return fmt.Errorf("%w: read transaction without data phase", pkg.ErrInvalidRegister)
	}
	return nil
}

// Data returns the data phase buffer of the transaction.
func (t *Transaction) Data() []byte {
	if len(t.Msgs) == 0 {
		return nil
	}
	return t.Msgs[len(t.Msgs)-1].Buf
}
