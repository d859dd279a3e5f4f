// Package miscdev publishes the driver's user-facing interface.
//
// A Server implements binding.Registrar. When the binding manager binds a
// device, Register listens on a Unix socket named after the interface
// (<dir>/myi2cdev.sock by default); Unbind calls Unregister, which closes
// every client and removes the socket.
//
// # Wire Protocol
//
// Each frame is a 4-byte big-endian length followed by a CBOR map with
// integer keys (see Request and Response). A client opens a session,
// issues ioctl or named commands on it, and closes it:
//
//	c, _ := miscdev.Dial(ctx, "/run/softi2c/myi2cdev.sock")
//	s, _ := c.Open(ctx)
//	resp, _ := c.Ioctl(ctx, s, 100, 110)
//	_ = c.Release(ctx, s)
//
// Open and close always succeed. An ioctl performs the dispatcher's
// numeric command; its code and argument do not select behavior.
package miscdev
