package miscdev

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ardnew/softi2c/pkg"
)

// Op is a request operation.
type Op uint8

// Request operations.
const (
	OpOpen    Op = 1 // Open a session
	OpClose   Op = 2 // Close a session
	OpIoctl   Op = 3 // Numeric command code and argument
	OpCommand Op = 4 // Named command
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	case OpIoctl:
		return "ioctl"
	case OpCommand:
		return "command"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Request is a client request.
//
// CBOR encoding:
//
//	{
//	  1: id,       // uint32, echoed in the response
//	  2: op,       // uint8
//	  3: session,  // string, from the open response
//	  4: cmd,      // uint32, ioctl only
//	  5: arg,      // int64, ioctl only
//	  6: kind,     // string, command only
//	  7: operand   // string, command only
//	}
type Request struct {
	ID      uint32 `cbor:"1,keyasint"`
	Op      Op     `cbor:"2,keyasint"`
	Session string `cbor:"3,keyasint,omitempty"`
	Cmd     uint32 `cbor:"4,keyasint,omitempty"`
	Arg     int64  `cbor:"5,keyasint,omitempty"`
	Kind    string `cbor:"6,keyasint,omitempty"`
	Operand string `cbor:"7,keyasint,omitempty"`
}

// Validate checks the request shape.
func (r *Request) Validate() error {
	switch r.Op {
	case OpOpen:
		return nil
	case OpClose, OpIoctl:
		if r.Session == "" {
			return fmt.Errorf("%w: %s without session", pkg.ErrInvalidCommand, r.Op)
		}
		return nil
	case OpCommand:
		if r.Session == "" || r.Kind == "" {
			return fmt.Errorf("%w: command without session or kind", pkg.ErrInvalidCommand)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", pkg.ErrInvalidCommand, r.Op)
	}
}

// Response answers one request.
//
// CBOR encoding:
//
//	{
//	  1: id,       // uint32, from the request
//	  2: status,   // uint8, see pkg.Status
//	  3: session,  // string, open only
//	  4: value,    // uint8, observed byte
//	  5: data,     // bytes read
//	  6: error     // string, on failure
//	}
type Response struct {
	ID      uint32     `cbor:"1,keyasint"`
	Status  pkg.Status `cbor:"2,keyasint"`
	Session string     `cbor:"3,keyasint,omitempty"`
	Value   uint8      `cbor:"4,keyasint,omitempty"`
	Data    []byte     `cbor:"5,keyasint,omitempty"`
	Error   string     `cbor:"6,keyasint,omitempty"`
}

// Err returns the error the response reports, or nil on success.
func (r *Response) Err() error {
	if r.Status == pkg.StatusSuccess {
		return nil
	}
	if r.Error != "" {
		return fmt.Errorf("%w: %s", r.Status.Error(), r.Error)
	}
	return r.Status.Error()
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		MaxMapPairs: 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decoder mode: %v", err))
	}
}

// EncodeRequest validates and encodes req.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(req)
}

// DecodeRequest decodes and validates a request. A request that decodes
// but fails validation is returned along with the error.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := decMode.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return &req, err
	}
	return &req, nil
}

// EncodeResponse encodes resp.
func EncodeResponse(resp *Response) ([]byte, error) {
	return encMode.Marshal(resp)
}

// DecodeResponse decodes a response.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := decMode.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
