package regmap

// BMP280-class register offsets (single byte).
const (
	AddrChipID    = 0xD0 // Chip identification
	AddrReset     = 0xE0 // Soft reset (write 0xB6)
	AddrStatus    = 0xF3 // Measuring / NVM update status
	AddrControl   = 0xF4 // ctrl_meas: oversampling and power mode
	AddrConfig    = 0xF5 // Standby time, IIR filter, SPI 3-wire
	AddrPressMSB  = 0xF7 // Pressure [19:12]
	AddrPressLSB  = 0xF8 // Pressure [11:4]
	AddrPressXLSB = 0xF9 // Pressure [3:0] in bits 7..4
	AddrTempMSB   = 0xFA // Temperature [19:12]
	AddrTempLSB   = 0xFB // Temperature [11:4]
	AddrTempXLSB  = 0xFC // Temperature [3:0] in bits 7..4
)

// Register values.
const (
	ChipIDBMP280 = 0x58 // Value of chip-id on a BMP280
	ResetWord    = 0xB6 // Written to reset to trigger a power-on reset
)

// Access describes whether a register may be written.
type Access uint8

// Access modes.
const (
	AccessRead      Access = iota // Read-only measurement or status register
	AccessReadWrite               // Read/write control register
)

// String returns a short access mode name.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "ro"
	case AccessReadWrite:
		return "rw"
	default:
		return "unknown"
	}
}

// Pointer widths.
const (
	PointerWidth8  = 1 // Single byte register offset
	PointerWidth16 = 2 // Two byte register offset, low byte first
)

// MaxLength is the largest data length a descriptor may declare.
const MaxLength = 32
