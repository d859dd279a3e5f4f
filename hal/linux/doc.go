// Package linux provides an I2C bus adapter and device discovery for Linux.
//
// The adapter drives /dev/i2c-N through the i2c-dev interface. Every
// transaction is submitted with a single I2C_RDWR ioctl, so the kernel
// issues one START, a repeated START between messages, and one STOP.
//
// Discovery reads instantiated clients from /sys/bus/i2c/devices. Clients
// created from devicetree expose their compatible list under of_node; the
// MODALIAS is used when no devicetree node is present. A Monitor watches
// the kernel uevent netlink socket for clients being added or removed.
//
// # Requirements
//
// The i2c-dev module must be loaded and the user needs read/write access to
// /dev/i2c-N (typically membership in the i2c group). Netlink uevents are
// readable without privileges.
//
// On other platforms Open and NewMonitor return pkg.ErrNotSupported; the
// sysfs and uevent parsers remain available.
package linux
