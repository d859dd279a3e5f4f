// Package binding implements the device lifecycle of the softi2c driver.
//
// A [Manager] binds the driver to one platform-discovered device, publishes
// the user-facing interface through a [Registrar], and tears both down on
// unbind:
//
//	Unbound --Bind--> Bound --Unbind--> Unbound
//
// The Manager is also the only path to the bus. [Manager.Do] hands the
// bound [Handle] to a callback while holding the bus lock, so the pointer
// write and data phase of one caller's transaction are never interleaved
// with another's. Operations attempted while unbound fail with
// [github.com/ardnew/softi2c/pkg.ErrNoDevice] before any bus access.
package binding
