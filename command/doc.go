// Package command translates user commands into register operations on the
// bound device.
//
// Commands form a closed set:
//
//	ReadTemperature()     burst read of temperature MSB/LSB/XLSB
//	ReadPressure()        burst read of pressure MSB/LSB/XLSB
//	ReadRegister(name)    read any register in the dispatcher's map
//	WriteControl(value)   write one byte to the control register
//	Legacy(code, arg)     numeric surface; always reads temperature
//
// A Dispatcher resolves each command against a regmap.Map and executes it
// through an Engine (normally the binding manager's *transfer.Engine):
//
//	d := command.New(mgr.Engine(), command.Options{})
//	r := d.HandleCommand(ctx, 100, 110)
//	if r.OK() {
//	    fmt.Printf("0x%02X\n", r.Value)
//	}
//
// Results carry the observed byte (the first byte read) and the raw data.
// On failure Result.Err is set and no data is returned.
package command
