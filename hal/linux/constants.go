package linux

// =============================================================================
// System Paths
// =============================================================================

// SysfsI2CPath is the base path for I2C clients and adapters in sysfs.
const SysfsI2CPath = "/sys/bus/i2c/devices"

// DevI2CPrefix is the path prefix of i2c-dev character devices.
const DevI2CPrefix = "/dev/i2c-"

// =============================================================================
// i2c-dev ioctl Requests
// =============================================================================

// ioctl request numbers from <linux/i2c-dev.h>.
const (
	ioctlI2CRetries = 0x0701 // Number of times a device address is polled
	ioctlI2CTimeout = 0x0702 // Timeout in units of 10 ms
	ioctlI2CFuncs   = 0x0705 // Get the adapter functionality mask
	ioctlI2CRdwr    = 0x0707 // Combined R/W transfer (one STOP only)
)

// MaxMessages is the most messages the kernel accepts in one I2C_RDWR call
// (I2C_RDWR_IOCTL_MAX_MSGS).
const MaxMessages = 42

// =============================================================================
// Adapter Functionality
// =============================================================================

// Functionality bits reported by I2C_FUNCS.
const (
	FuncI2C          = 0x00000001 // Plain i2c-level commands (I2C_RDWR)
	FuncTenBitAddr   = 0x00000002 // 10-bit addressing
	FuncProtocolMang = 0x00000004 // I2C_M_IGNORE_NAK and friends
	FuncNoStart      = 0x00000010 // I2C_M_NOSTART
	FuncSMBusQuick   = 0x00010000 // SMBus quick command
)

// =============================================================================
// Hotplug Configuration
// =============================================================================

// NetlinkKObjectUEvent is the netlink protocol for kernel uevents.
const NetlinkKObjectUEvent = 15 // NETLINK_KOBJECT_UEVENT

// UEventBufferSize is the buffer size for netlink messages.
const UEventBufferSize = 8192

// SubsystemI2C is the SUBSYSTEM value of I2C client uevents.
const SubsystemI2C = "i2c"

// DevTypeClient is the DEVTYPE value of I2C client devices.
const DevTypeClient = "i2c_client"
