package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/regmap"
)

// Kind identifies a command variant.
type Kind uint8

// Command kinds.
const (
	KindReadTemperature Kind = iota // Burst read of the temperature registers
	KindReadPressure                // Burst read of the pressure registers
	KindReadRegister                // Read of an arbitrary mapped register
	KindWriteControl                // Single byte write to the control register
	KindLegacy                      // Numeric code/argument pair; reads temperature
)

var kindNames = [...]string{
	KindReadTemperature: "read-temperature",
	KindReadPressure:    "read-pressure",
	KindReadRegister:    "read-register",
	KindWriteControl:    "write-control",
	KindLegacy:          "legacy",
}

// String returns the command kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown Kind (%d)", k)
}

// ParseKind parses a command kind name. Matching ignores case.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if s == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", pkg.ErrInvalidCommand, s)
}

// Command is one request to the dispatcher. Construct commands with the
// ReadTemperature, ReadPressure, ReadRegister, WriteControl and Legacy
// functions; only the fields belonging to Kind are meaningful.
type Command struct {
	Kind     Kind
	Register string // KindReadRegister: register name in the dispatcher's map
	Value    byte   // KindWriteControl: byte to write
	Code     uint32 // KindLegacy: opaque command code
	Arg      int64  // KindLegacy: opaque argument
}

// ReadTemperature returns a temperature read command.
func ReadTemperature() Command {
	return Command{Kind: KindReadTemperature}
}

// ReadPressure returns a pressure read command.
func ReadPressure() Command {
	return Command{Kind: KindReadPressure}
}

// ReadRegister returns a command that reads the named register.
func ReadRegister(name string) Command {
	return Command{Kind: KindReadRegister, Register: name}
}

// WriteControl returns a command that writes value to the control register.
func WriteControl(value byte) Command {
	return Command{Kind: KindWriteControl, Value: value}
}

// Legacy returns a numeric command. The code and argument are recorded but
// do not select behavior; every legacy command reads temperature.
func Legacy(code uint32, arg int64) Command {
	return Command{Kind: KindLegacy, Code: code, Arg: arg}
}

// Validate checks that the command is well formed.
func (c Command) Validate() error {
	switch c.Kind {
	case KindReadTemperature, KindReadPressure, KindWriteControl, KindLegacy:
		return nil
	case KindReadRegister:
		if c.Register == "" {
			return fmt.Errorf("%w: %s without register", pkg.ErrInvalidCommand, c.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", pkg.ErrInvalidCommand, c.Kind)
	}
}

// String describes the command for logging.
func (c Command) String() string {
	switch c.Kind {
	case KindReadRegister:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Register)
	case KindWriteControl:
		return fmt.Sprintf("%s(0x%02X)", c.Kind, c.Value)
	case KindLegacy:
		return fmt.Sprintf("%s(cmd=%d, arg=%d)", c.Kind, c.Code, c.Arg)
	default:
		return c.Kind.String()
	}
}

// Parse builds a command from its textual form, as used by the control
// client and the interface wire protocol. operand is the register name for
// read-register and the byte value for write-control; it is ignored
// otherwise.
func Parse(kind, operand string) (Command, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Command{}, err
	}
	switch k {
	case KindReadTemperature:
		return ReadTemperature(), nil
	case KindReadPressure:
		return ReadPressure(), nil
	case KindReadRegister:
		c := ReadRegister(strings.TrimSpace(operand))
		if err := c.Validate(); err != nil {
			return Command{}, err
		}
		return c, nil
	case KindWriteControl:
		v, err := ParseByte(operand)
		if err != nil {
			return Command{}, err
		}
		return WriteControl(v), nil
	default:
		return Command{}, fmt.Errorf("%w: %s requires a numeric code", pkg.ErrInvalidCommand, k)
	}
}

// ParseByte parses a decimal, 0x-prefixed hexadecimal, or 0b-prefixed
// binary byte value.
func ParseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q: %v", pkg.ErrInvalidCommand, s, err)
	}
	return byte(v), nil
}

// resolve maps a command to the register it addresses in m.
func resolve(c Command, m *regmap.Map) (regmap.Register, error) {
	var name string
	switch c.Kind {
	case KindReadTemperature, KindLegacy:
		name = regmap.NameTemperature
	case KindReadPressure:
		name = regmap.NamePressure
	case KindReadRegister:
		name = c.Register
	case KindWriteControl:
		name = regmap.NameControl
	default:
		return regmap.Register{}, fmt.Errorf("%w: %s", pkg.ErrInvalidCommand, c.Kind)
	}
	reg, ok := m.Lookup(name)
	if !ok {
		return regmap.Register{}, fmt.Errorf("%w: %q not in map %s",
			pkg.ErrInvalidRegister, name, m.Name())
	}
	return reg, nil
}
