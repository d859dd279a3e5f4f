package pkg

import (
	"errors"
	"fmt"
)

// Driver errors.
var (
	// ErrNoDevice indicates no device is bound to the driver.
	ErrNoDevice = errors.New("no device bound")

	// ErrBusFailure indicates the bus adapter failed a transaction.
	ErrBusFailure = errors.New("bus transfer failed")

	// ErrRegistrationFailed indicates the user-facing interface could not be published.
	ErrRegistrationFailed = errors.New("interface registration failed")

	// ErrAlreadyBound indicates a device is already bound to the driver.
	ErrAlreadyBound = errors.New("device already bound")

	// ErrNoMatch indicates a candidate's compatible string does not match the driver.
	ErrNoMatch = errors.New("compatible string mismatch")

	// ErrInvalidAddress indicates a bus address outside the 7-bit range.
	ErrInvalidAddress = errors.New("invalid bus address")

	// ErrReadOnly indicates a write to a read-only register.
	ErrReadOnly = errors.New("register is read-only")

	// ErrInvalidRegister indicates a malformed register descriptor.
	ErrInvalidRegister = errors.New("invalid register descriptor")

	// ErrEmptyTransaction indicates a transaction with no messages.
	ErrEmptyTransaction = errors.New("empty transaction")

	// ErrMisaddressed indicates a message not addressed to the bound device.
	ErrMisaddressed = errors.New("message addressed to wrong device")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrShortTransfer indicates the adapter completed fewer messages than submitted.
	ErrShortTransfer = errors.New("short transfer")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrInvalidCommand indicates an unknown or malformed command.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrNotRegistered indicates the interface is not currently published.
	ErrNotRegistered = errors.New("interface not registered")

	// ErrAlreadyRunning indicates the service is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the service is not running.
	ErrNotRunning = errors.New("not running")
)

// BindError reports a failed bind attempt.
type BindError struct {
	Name string // Logical interface name
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BindError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRegistrationFailed.
// Every BindError is a registration failure.
func (e *BindError) Is(target error) bool {
	return target == ErrRegistrationFailed
}

// TransferError reports a bus transaction rejected by the adapter.
type TransferError struct {
	Addr     uint16 // Target bus address
	Messages int    // Messages submitted
	Code     int    // Adapter result (negative on failure)
	Err      error  // Adapter error, if any
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: addr=0x%02X msgs=%d code=%d: %v",
			ErrBusFailure, e.Addr, e.Messages, e.Code, e.Err)
	}
	return fmt.Sprintf("%v: addr=0x%02X msgs=%d code=%d",
		ErrBusFailure, e.Addr, e.Messages, e.Code)
}

// Unwrap returns the adapter error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBusFailure.
func (e *TransferError) Is(target error) bool {
	return target == ErrBusFailure
}

// Status is a command completion status reported to interface clients.
type Status int

// Status values.
const (
	StatusSuccess  Status = iota // Command completed
	StatusNoDevice               // No device bound
	StatusBusError               // Adapter failure
	StatusInvalid                // Invalid command or argument
	StatusError                  // Any other failure
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoDevice:
		return "no-device"
	case StatusBusError:
		return "bus-error"
	case StatusInvalid:
		return "invalid"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the status.
func (s Status) Error() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusNoDevice:
		return ErrNoDevice
	case StatusBusError:
		return ErrBusFailure
	case StatusInvalid:
		return ErrInvalidCommand
	default:
		return errors.New("command failed")
	}
}

// StatusOf classifies err into a Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrNoDevice):
		return StatusNoDevice
	case errors.Is(err, ErrBusFailure):
		return StatusBusError
	case errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, ErrInvalidRegister):
		return StatusInvalid
	default:
		return StatusError
	}
}
