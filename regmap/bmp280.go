package regmap

// Register names in the BMP280 profile.
const (
	NameChipID      = "chip-id"
	NameReset       = "reset"
	NameStatus      = "status"
	NameControl     = "control"
	NameConfig      = "config"
	NamePressure    = "pressure"
	NamePressMSB    = "pressure-msb"
	NamePressLSB    = "pressure-lsb"
	NamePressXLSB   = "pressure-xlsb"
	NameTemperature = "temperature"
	NameTempMSB     = "temperature-msb"
	NameTempLSB     = "temperature-lsb"
	NameTempXLSB    = "temperature-xlsb"
)

// Descriptors for the BMP280 profile.
var (
	ChipID  = Reg8(NameChipID, AddrChipID, 1, AccessRead)
	Reset   = Reg8(NameReset, AddrReset, 1, AccessReadWrite)
	Status  = Reg8(NameStatus, AddrStatus, 1, AccessRead)
	Control = Reg8(NameControl, AddrControl, 1, AccessReadWrite)
	Config  = Reg8(NameConfig, AddrConfig, 1, AccessReadWrite)

	// Pressure reads MSB, LSB and XLSB in one burst.
	Pressure  = Reg8(NamePressure, AddrPressMSB, 3, AccessRead)
	PressMSB  = Reg8(NamePressMSB, AddrPressMSB, 1, AccessRead)
	PressLSB  = Reg8(NamePressLSB, AddrPressLSB, 1, AccessRead)
	PressXLSB = Reg8(NamePressXLSB, AddrPressXLSB, 1, AccessRead)

	// Temperature reads MSB, LSB and XLSB in one burst.
	Temperature = Reg8(NameTemperature, AddrTempMSB, 3, AccessRead)
	TempMSB     = Reg8(NameTempMSB, AddrTempMSB, 1, AccessRead)
	TempLSB     = Reg8(NameTempLSB, AddrTempLSB, 1, AccessRead)
	TempXLSB    = Reg8(NameTempXLSB, AddrTempXLSB, 1, AccessRead)
)

// BMP280 is the register map of the default device profile.
var BMP280 = MustMap("bmp280",
	ChipID, Reset, Status, Control, Config,
	Pressure, PressMSB, PressLSB, PressXLSB,
	Temperature, TempMSB, TempLSB, TempXLSB,
)

// Raw20 assembles a 20-bit ADC sample from an MSB/LSB/XLSB burst.
// Returns 0 if data holds fewer than 3 bytes.
func Raw20(data []byte) uint32 {
	if len(data) < 3 {
		return 0
	}
	return uint32(data[0])<<12 | uint32(data[1])<<4 | uint32(data[2])>>4
}
