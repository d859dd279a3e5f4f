package linux

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/softi2c/hal"
)

// =============================================================================
// I2C Client Information
// =============================================================================

// Client describes an I2C client device instantiated by the kernel,
// typically from a devicetree node.
type Client struct {
	SysfsPath  string   // Path in /sys/bus/i2c/devices
	Name       string   // Client name ("name" attribute)
	Node       string   // Devicetree node name, if any
	Bus        int      // Adapter number (the N in /dev/i2c-N)
	Addr       hal.Addr // 7-bit address
	Compatible []string // Devicetree compatible list, most specific first
}

// Matches reports whether any of the client's compatible strings equals
// compatible exactly.
func (c *Client) Matches(compatible string) bool {
	for _, s := range c.Compatible {
		if s == compatible {
			return true
		}
	}
	return false
}

// DevPath returns the i2c-dev character device for the client's adapter.
func (c *Client) DevPath() string {
	return DevI2CPrefix + strconv.Itoa(c.Bus)
}

// =============================================================================
// Sysfs Parsing
// =============================================================================

// ScanClients scans root (normally SysfsI2CPath) for I2C client devices.
// Adapter entries and entries that cannot be parsed are skipped.
func ScanClients(root string) ([]Client, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var clients []Client
	for _, entry := range entries {
		name := entry.Name()

		// Clients are named "<bus>-<addr>", e.g. "1-0076".
		// Adapters are named "i2c-<bus>".
		if strings.HasPrefix(name, "i2c-") {
			continue
		}

		c, err := ParseClient(filepath.Join(root, name))
		if err != nil {
			continue
		}
		clients = append(clients, c)
	}

	return clients, nil
}

// ParseClient parses the client device at sysfsPath.
func ParseClient(sysfsPath string) (Client, error) {
	bus, addr, err := ParseClientName(filepath.Base(sysfsPath))
	if err != nil {
		return Client{}, err
	}

	c := Client{
		SysfsPath: sysfsPath,
		Bus:       bus,
		Addr:      addr,
	}

	if name, err := readSysfsString(filepath.Join(sysfsPath, "name")); err == nil {
		c.Name = name
	}

	// Prefer the devicetree node; fall back to the modalias.
	ofNode := filepath.Join(sysfsPath, "of_node")
	if data, err := os.ReadFile(filepath.Join(ofNode, "compatible")); err == nil {
		c.Compatible = splitNulList(data)
	}
	if data, err := os.ReadFile(filepath.Join(ofNode, "name")); err == nil {
		c.Node = string(bytes.TrimRight(data, "\x00\n"))
	}
	if len(c.Compatible) == 0 {
		if alias, err := readSysfsString(filepath.Join(sysfsPath, "modalias")); err == nil {
			node, compat := parseModalias(alias)
			if c.Node == "" {
				c.Node = node
			}
			c.Compatible = compat
		}
	}

	return c, nil
}

// ParseClientName parses a client directory name of the form
// "<bus>-<addr>" where addr is four hexadecimal digits.
func ParseClientName(name string) (bus int, addr hal.Addr, err error) {
	b, a, ok := strings.Cut(name, "-")
	if !ok || len(a) != 4 {
		return 0, 0, fmt.Errorf("not an i2c client: %q", name)
	}
	n, err := strconv.Atoi(b)
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("not an i2c client: %q", name)
	}
	v, err := strconv.ParseUint(a, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("not an i2c client: %q", name)
	}
	return n, hal.Addr(v), nil
}

// FormatClientName returns the sysfs directory name of the client at addr
// on bus.
func FormatClientName(bus int, addr hal.Addr) string {
	return fmt.Sprintf("%d-%04x", bus, uint16(addr))
}

// parseModalias extracts the node name and compatible list from an "of:"
// modalias, e.g. "of:NpressureT(null)Cbosch,bmp280Cmyi2c". An "i2c:" alias
// yields its device name as the only compatible string.
func parseModalias(alias string) (node string, compatible []string) {
	switch {
	case strings.HasPrefix(alias, "i2c:"):
		return "", []string{alias[4:]}
	case !strings.HasPrefix(alias, "of:"):
		return "", nil
	}

	s := alias[3:]
	if rest, ok := strings.CutPrefix(s, "N"); ok {
		i := strings.Index(rest, "T")
		if i < 0 {
			return rest, nil
		}
		node, s = rest[:i], rest[i+1:]
	}
	// Skip the type field up to the first compatible marker.
	i := strings.Index(s, "C")
	if i < 0 {
		return node, nil
	}
	for _, part := range strings.Split(s[i+1:], "C") {
		if part != "" {
			compatible = append(compatible, part)
		}
	}
	return node, compatible
}

// splitNulList splits a devicetree string list property.
func splitNulList(data []byte) []string {
	var out []string
	for _, p := range bytes.Split(data, []byte{0}) {
		if s := strings.TrimSpace(string(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Sysfs Read Helpers
// =============================================================================

// readSysfsString reads a string from a sysfs attribute file.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
