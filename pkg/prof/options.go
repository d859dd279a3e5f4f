package prof

// Profile represents a pprof profile type.
type Profile string

// Profile type constants.
const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// String returns the string representation of the profile type.
func (p Profile) String() string {
	return string(p)
}

// Options selects the profilers a Session runs. Empty fields are off.
type Options struct {
	CPUProfile  string // File receiving the CPU profile
	HeapProfile string // File receiving a heap snapshot at Stop
	HTTPAddr    string // Address serving /debug/pprof/
}

// Requested reports whether any profiler is selected.
func (o Options) Requested() bool {
	return o.CPUProfile != "" || o.HeapProfile != "" || o.HTTPAddr != ""
}
