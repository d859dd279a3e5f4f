// Package platform describes where devices are and matches them to the
// driver.
//
// Nodes come from a YAML board file:
//
//	board: raspberrypi4
//	devices:
//	  - name: pressure
//	    compatible: ["bosch,bmp280", myi2c]
//	    bus: 1
//	    address: 0x76
//
// or from the kernel's I2C client list in sysfs (ScanSysfs), with hotplug
// add/remove events delivered through Watch. A Matcher binds the first node
// whose compatible list contains the driver identifier and unbinds it when
// that node is removed.
package platform
