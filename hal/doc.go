// Package hal defines the boundary between the softi2c driver and the bus
// controller that physically executes I2C transactions.
//
// The driver never drives SDA/SCL itself. It composes [Message] sequences
// and submits them through an [Adapter]. Platform vendors implement
// [Adapter] for their controller; this module ships two implementations:
//
//   - [github.com/ardnew/softi2c/hal/linux]: Linux i2c-dev (I2C_RDWR)
//   - [github.com/ardnew/softi2c/hal/sim]: in-memory register-file simulator
//
// # Transactions
//
// A transaction is an ordered slice of messages executed between one START
// and one STOP. A register read is a pointer write followed by a read:
//
//	msgs := []hal.Message{
//	    {Addr: 0x76, Buf: []byte{0xFA}},
//	    {Addr: 0x76, Flags: hal.FlagRead, Buf: make([]byte, 3)},
//	}
//	n, err := adapter.Transfer(ctx, msgs)
package hal
