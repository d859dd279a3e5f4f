// Package sim provides an in-memory I2C adapter for tests and demos.
//
// The [Adapter] implements [github.com/ardnew/softi2c/hal.Adapter] against
// simulated register-file targets. It records every transaction, can
// inject failures, and counts overlapping transfers so callers can verify
// that access to the bus is serialized.
//
//	bus := sim.New("sim0")
//	bus.Attach(0x76, sim.NewBMP280())
//	bus.FailNext(sim.CodeRemote, nil)
package sim
