package linux

import (
	"bytes"
	"path"
	"strconv"
	"strings"
)

// =============================================================================
// UEvent Types
// =============================================================================

// Action is a kernel uevent action.
type Action uint8

// Uevent actions.
const (
	ActionUnknown Action = iota
	ActionAdd
	ActionRemove
	ActionChange
	ActionBind
	ActionUnbind
)

// String returns the kernel spelling of the action.
func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionChange:
		return "change"
	case ActionBind:
		return "bind"
	case ActionUnbind:
		return "unbind"
	default:
		return "unknown"
	}
}

func parseAction(s string) Action {
	switch s {
	case "add":
		return ActionAdd
	case "remove":
		return ActionRemove
	case "change":
		return ActionChange
	case "bind":
		return ActionBind
	case "unbind":
		return ActionUnbind
	default:
		return ActionUnknown
	}
}

// Event is a parsed netlink uevent.
type Event struct {
	Action    Action
	DevPath   string // DEVPATH value
	Subsystem string // SUBSYSTEM value
	DevType   string // DEVTYPE value
	Driver    string // DRIVER value
	Modalias  string // MODALIAS value

	// Devicetree properties
	OFName       string   // OF_NAME
	OFFullName   string   // OF_FULLNAME
	OFCompatible []string // OF_COMPATIBLE_0 .. OF_COMPATIBLE_{N-1}
}

// IsI2CClient reports whether the event concerns an I2C client device
// (as opposed to an adapter).
func (e *Event) IsI2CClient() bool {
	if e.Subsystem != SubsystemI2C {
		return false
	}
	if e.DevType != "" {
		return e.DevType == DevTypeClient
	}
	_, _, err := ParseClientName(path.Base(e.DevPath))
	return err == nil
}

// Client derives client information from the event. Compatible strings
// come from OF_COMPATIBLE_n, or from MODALIAS when those are absent.
func (e *Event) Client() (Client, error) {
	bus, addr, err := ParseClientName(path.Base(e.DevPath))
	if err != nil {
		return Client{}, err
	}
	c := Client{
		SysfsPath:  path.Join("/sys", e.DevPath),
		Node:       e.OFName,
		Bus:        bus,
		Addr:       addr,
		Compatible: e.OFCompatible,
	}
	if len(c.Compatible) == 0 && e.Modalias != "" {
		node, compat := parseModalias(e.Modalias)
		if c.Node == "" {
			c.Node = node
		}
		c.Compatible = compat
	}
	return c, nil
}

// =============================================================================
// UEvent Parsing
// =============================================================================

// ParseUEvent parses a netlink uevent message: an "action@devpath" header
// followed by NUL-separated KEY=value pairs.
func ParseUEvent(data []byte) Event {
	evt := Event{}
	compat := map[int]string{}
	ncompat := -1

	for _, line := range bytes.Split(data, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		s := string(line)

		key, value, ok := strings.Cut(s, "=")
		if !ok {
			if act, dp, ok := strings.Cut(s, "@"); ok {
				evt.Action = parseAction(act)
				evt.DevPath = dp
			}
			continue
		}

		switch key {
		case "ACTION":
			evt.Action = parseAction(value)
		case "DEVPATH":
			evt.DevPath = value
		case "SUBSYSTEM":
			evt.Subsystem = value
		case "DEVTYPE":
			evt.DevType = value
		case "DRIVER":
			evt.Driver = value
		case "MODALIAS":
			evt.Modalias = value
		case "OF_NAME":
			evt.OFName = value
		case "OF_FULLNAME":
			evt.OFFullName = value
		case "OF_COMPATIBLE_N":
			if n, err := strconv.Atoi(value); err == nil {
				ncompat = n
			}
		default:
			if idx, ok := strings.CutPrefix(key, "OF_COMPATIBLE_"); ok {
				if i, err := strconv.Atoi(idx); err == nil && i >= 0 {
					compat[i] = value
				}
			}
		}
	}

	if ncompat < 0 {
		ncompat = len(compat)
	}
	for i := 0; i < ncompat; i++ {
		if s, ok := compat[i]; ok {
			evt.OFCompatible = append(evt.OFCompatible, s)
		}
	}

	return evt
}
