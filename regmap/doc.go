// Package regmap holds the static register map of the target sensor.
//
// Every bus access is described by a [Register]: its offset, the width of
// the pointer written to select it, the number of data bytes in the data
// phase, and whether it may be written. The transfer engine derives message
// framing from these descriptors, so callers never assemble pointer bytes
// by hand.
//
// [BMP280] is the compiled-in profile for BMP280-class pressure and
// temperature sensors.
package regmap
