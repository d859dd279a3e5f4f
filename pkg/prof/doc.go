// Package prof profiles the myi2cd daemon.
//
// This package wraps [runtime/pprof] behind the "profile" build tag:
//
//	go build -tags profile ./cmd/myi2cd
//	go test -tags profile ./pkg/prof
//
// Without the tag every function is a no-op and [Enabled] is false, so the
// daemon's profiling flags cost nothing in production builds.
//
// # Sessions
//
// A [Session] runs the profilers selected by [Options] from daemon start to
// shutdown:
//
//	s, err := prof.Start(prof.Options{
//	    CPUProfile:  "myi2cd.cpu",
//	    HeapProfile: "myi2cd.heap",
//	    HTTPAddr:    "localhost:6060",
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// HTTPAddr serves the standard /debug/pprof/ endpoints. Only one CPU
// profile may be active; a second Start with CPUProfile set returns
// [ErrCPUProfileActive].
//
// # Snapshots
//
// [Write] and [WriteTo] capture point-in-time profiles such as
// [ProfileGoroutine], which is useful for finding a transaction stuck on
// the bus lock. [ProfileCPU] is rejected; use a Session.
package prof
