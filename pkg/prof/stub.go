//go:build !profile

package prof

import "io"

// Enabled reports whether the binary was built with the "profile" tag.
const Enabled = false

// Profiling errors (defined for API compatibility but never returned by stubs).
var (
	// ErrCPUProfileActive indicates CPU profiling is already active.
	ErrCPUProfileActive error

	// ErrInvalidProfile indicates an invalid or unsupported profile type.
	ErrInvalidProfile error
)

// Session is a no-op when built without the "profile" tag.
type Session struct{}

// Start is a no-op when built without the "profile" tag.
func Start(_ Options) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (*Session) Stop() error {
	return nil
}

// Write is a no-op when built without the "profile" tag.
func Write(_ Profile, _ string) error {
	return nil
}

// WriteTo is a no-op when built without the "profile" tag.
func WriteTo(_ Profile, _ io.Writer, _ int) error {
	return nil
}
