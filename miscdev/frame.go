package miscdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 4

	// MaxMessageSize bounds a frame payload.
	MaxMessageSize = 4096
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds MaxMessageSize.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// framer reads and writes length-prefixed frames. Writes are serialized;
// reads must come from a single goroutine.
type framer struct {
	rw io.ReadWriter

	wmu    sync.Mutex
	length [LengthPrefixSize]byte
}

func newFramer(rw io.ReadWriter) *framer {
	return &framer{rw: rw}
}

// writeFrame writes one frame.
func (f *framer) writeFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), MaxMessageSize)
	}

	f.wmu.Lock()
	defer f.wmu.Unlock()

	buf := make([]byte, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[LengthPrefixSize:], data)
	if _, err := f.rw.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame reads one frame and returns its payload. It returns io.EOF
// when the stream ends cleanly between frames.
func (f *framer) readFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.rw, f.length[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(f.length[:])
	if n == 0 {
		return nil, ErrMessageEmpty
	}
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, MaxMessageSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.rw, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload, nil
}
