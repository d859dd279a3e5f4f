package regmap

import (
	"fmt"
	"sort"

	"github.com/ardnew/softi2c/pkg"
)

// Register describes one addressable register (or burst of registers) on
// the target device.
type Register struct {
	Name         string // Logical name
	Addr         uint16 // Register offset
	PointerWidth uint8  // Bytes written to select Addr (1 or 2)
	Length       uint8  // Data bytes transferred in the data phase
	Access       Access // Read-only or read/write
}

// Validate checks the descriptor for framing errors.
func (r Register) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: empty name", pkg.ErrInvalidRegister)
	case r.PointerWidth != PointerWidth8 && r.PointerWidth != PointerWidth16:
		return fmt.Errorf("%w: %s: pointer width %d", pkg.ErrInvalidRegister, r.Name, r.PointerWidth)
	case r.PointerWidth == PointerWidth8 && r.Addr > 0xFF:
		return fmt.Errorf("%w: %s: address 0x%04X exceeds 8-bit pointer", pkg.ErrInvalidRegister, r.Name, r.Addr)
	case r.Length == 0 || r.Length > MaxLength:
		return fmt.Errorf("%w: %s: length %d", pkg.ErrInvalidRegister, r.Name, r.Length)
	case r.Access > AccessReadWrite:
		return fmt.Errorf("%w: %s: access %d", pkg.ErrInvalidRegister, r.Name, r.Access)
	}
	return nil
}

// Writable reports whether the register accepts writes.
func (r Register) Writable() bool {
	return r.Access == AccessReadWrite
}

// PutPointer encodes the register pointer into buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (r Register) PutPointer(buf []byte) int {
	n := int(r.PointerWidth)
	if n == 0 || len(buf) < n {
		return 0
	}
	buf[0] = byte(r.Addr)
	if n == PointerWidth16 {
		buf[1] = byte(r.Addr >> 8)
	}
	return n
}

// Pointer returns the register pointer bytes.
func (r Register) Pointer() []byte {
	buf := make([]byte, r.PointerWidth)
	return buf[:r.PutPointer(buf)]
}

// String returns a compact description of the register.
func (r Register) String() string {
	return fmt.Sprintf("%s@0x%02X/%d[%d]%s", r.Name, r.Addr, r.PointerWidth, r.Length, r.Access)
}

// Reg8 returns a register with a single byte pointer.
func Reg8(name string, addr uint8, length uint8, access Access) Register {
	return Register{
		Name:         name,
		Addr:         uint16(addr),
		PointerWidth: PointerWidth8,
		Length:       length,
		Access:       access,
	}
}

// Reg16 returns a register with a two byte pointer.
func Reg16(name string, addr uint16, length uint8, access Access) Register {
	return Register{
		Name:         name,
		Addr:         addr,
		PointerWidth: PointerWidth16,
		Length:       length,
		Access:       access,
	}
}

// Map is an immutable, name-indexed set of register descriptors.
type Map struct {
	name   string
	byName map[string]Register
}

// NewMap validates regs and returns a map named name.
// Duplicate register names are rejected.
func NewMap(name string, regs ...Register) (*Map, error) {
	m := &Map{name: name, byName: make(map[string]Register, len(regs))}
	for _, r := range regs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.byName[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate register %q", pkg.ErrInvalidRegister, r.Name)
		}
		m.byName[r.Name] = r
	}
	return m, nil
}

// MustMap is like NewMap but panics on an invalid descriptor.
// It is intended for compiled-in maps.
func MustMap(name string, regs ...Register) *Map {
	m, err := NewMap(name, regs...)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the map (device profile) name.
func (m *Map) Name() string {
	return m.name
}

// Lookup returns the register with the given name.
func (m *Map) Lookup(name string) (Register, bool) {
	r, ok := m.byName[name]
	return r, ok
}

// Registers returns all registers ordered by address, then name.
func (m *Map) Registers() []Register {
	regs := make([]Register, 0, len(m.byName))
	for _, r := range m.byName {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Addr != regs[j].Addr {
			return regs[i].Addr < regs[j].Addr
		}
		return regs[i].Name < regs[j].Name
	})
	return regs
}

// Len returns the number of registers in the map.
func (m *Map) Len() int {
	return len(m.byName)
}
