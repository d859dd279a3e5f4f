//go:build profile

package prof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sync"
	"time"

	_ "net/http/pprof" // Register HTTP handlers at /debug/pprof/

	"github.com/ardnew/softi2c/pkg"
)

// Enabled reports whether the binary was built with the "profile" tag.
const Enabled = true

// Profiling errors.
var (
	// ErrCPUProfileActive indicates CPU profiling is already active.
	ErrCPUProfileActive = errors.New("cpu profile already active")

	// ErrInvalidProfile indicates an invalid or unsupported profile type.
	ErrInvalidProfile = errors.New("invalid profile")
)

// cpuActive guards against overlapping sessions; runtime/pprof allows only
// one CPU profile at a time.
var (
	cpuMutex  sync.Mutex
	cpuActive bool
)

// Session is a running set of profilers started by Start.
type Session struct {
	opts Options
	cpu  *os.File
	srv  *http.Server

	once sync.Once
	err  error
}

// Start begins the profilers named in opts.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	if opts.CPUProfile != "" {
		f, err := startCPU(opts.CPUProfile)
		if err != nil {
			return nil, err
		}
		s.cpu = f
	}

	if opts.HTTPAddr != "" {
		ln, err := net.Listen("tcp", opts.HTTPAddr)
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("pprof listen: %w", err)
		}
		s.srv = &http.Server{Handler: http.DefaultServeMux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				pkg.LogWarn(pkg.ComponentProf, "pprof server stopped", "error", err)
			}
		}()
		pkg.LogInfo(pkg.ComponentProf, "pprof listening", "addr", ln.Addr().String())
	}

	return s, nil
}

// Stop stops CPU profiling, writes the heap profile if one was requested
// and shuts down the HTTP endpoint. Only the first call has effect.
func (s *Session) Stop() error {
	s.once.Do(func() {
		var errs []error
		errs = append(errs, s.stopCPU())
		if s.opts.HeapProfile != "" {
			errs = append(errs, Write(ProfileHeap, s.opts.HeapProfile))
		}
		if s.srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			errs = append(errs, s.srv.Shutdown(ctx))
			cancel()
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}

func startCPU(path string) (*os.File, error) {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	if cpuActive {
		return nil, ErrCPUProfileActive
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	cpuActive = true
	pkg.LogInfo(pkg.ComponentProf, "cpu profile started", "path", path)
	return f, nil
}

func (s *Session) stopCPU() error {
	if s.cpu == nil {
		return nil
	}

	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	pprof.StopCPUProfile()
	cpuActive = false
	err := s.cpu.Close()
	s.cpu = nil
	return err
}

// Write writes a snapshot profile to path. ProfileCPU is rejected; CPU
// profiles are collected by a Session.
func Write(profile Profile, path string) error {
	if profile == ProfileCPU {
		return ErrInvalidProfile
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteTo(profile, f, 0)
}

// WriteTo writes a snapshot profile to w. Debug level 0 produces protobuf
// for go tool pprof; 1 produces text.
func WriteTo(profile Profile, w io.Writer, debug int) error {
	if profile == ProfileCPU {
		return ErrInvalidProfile
	}
	p := pprof.Lookup(string(profile))
	if p == nil {
		return ErrInvalidProfile
	}
	return p.WriteTo(w, debug)
}
