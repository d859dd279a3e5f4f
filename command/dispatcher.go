package command

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/regmap"
)

// Engine executes register reads and writes against the bound device.
// *transfer.Engine implements Engine.
type Engine interface {
	Read(ctx context.Context, reg regmap.Register) ([]byte, error)
	Write(ctx context.Context, reg regmap.Register, value byte) error
}

// Reporter receives every dispatched result.
type Reporter interface {
	Report(ctx context.Context, r Result) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, r Result) error

// Report calls f(ctx, r).
func (f ReporterFunc) Report(ctx context.Context, r Result) error {
	return f(ctx, r)
}

// Result is the outcome of one dispatched command.
type Result struct {
	Command Command
	Data    []byte        // Bytes read; nil for writes and on failure
	Value   byte          // Observed byte (first data byte) or byte written
	Err     error         // nil on success
	Elapsed time.Duration // Time spent executing the command
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Status classifies the result for interface clients.
func (r Result) Status() pkg.Status {
	return pkg.StatusOf(r.Err)
}

// Options configures a Dispatcher.
type Options struct {
	// Map resolves command registers. Defaults to regmap.BMP280.
	Map *regmap.Map

	// WriteBack enables the read-increment-write demonstration on legacy
	// commands: the observed temperature byte plus one is written to the
	// control register. Off by default.
	WriteBack bool

	// Reporter, if set, receives every result.
	Reporter Reporter
}

// Dispatcher translates commands into register operations.
type Dispatcher struct {
	engine    Engine
	regs      *regmap.Map
	writeBack bool
	reporter  Reporter

	dispatched atomic.Uint64
	failed     atomic.Uint64
}

// New creates a dispatcher that executes commands through engine.
func New(engine Engine, opts Options) *Dispatcher {
	if opts.Map == nil {
		opts.Map = regmap.BMP280
	}
	return &Dispatcher{
		engine:    engine,
		regs:      opts.Map,
		writeBack: opts.WriteBack,
		reporter:  opts.Reporter,
	}
}

// Map returns the register map commands resolve against.
func (d *Dispatcher) Map() *regmap.Map {
	return d.regs
}

// Counts returns the number of dispatched and failed commands.
func (d *Dispatcher) Counts() (dispatched, failed uint64) {
	return d.dispatched.Load(), d.failed.Load()
}

// HandleCommand is the numeric command surface. Every code and argument
// performs the temperature read; both values are logged but do not select
// behavior.
func (d *Dispatcher) HandleCommand(ctx context.Context, code uint32, arg int64) Result {
	pkg.LogInfo(pkg.ComponentCommand, "command received",
		"cmd", code,
		"arg", arg)
	return d.Dispatch(ctx, Legacy(code, arg))
}

// Dispatch executes c and returns its result. Errors are reported in
// Result.Err; Dispatch never panics and a failure leaves the device bound.
func (d *Dispatcher) Dispatch(ctx context.Context, c Command) Result {
	start := time.Now()
	r := d.dispatch(ctx, c)
	r.Elapsed = time.Since(start)

	d.dispatched.Add(1)
	if r.Err != nil {
		d.failed.Add(1)
		pkg.LogWarn(pkg.ComponentCommand, "command failed",
			"command", c.String(),
			"status", r.Status().String(),
			"error", r.Err)
	} else {
		pkg.LogInfo(pkg.ComponentCommand, "command completed",
			"command", c.String(),
			"value", fmt.Sprintf("0x%02X", r.Value),
			"elapsed", r.Elapsed)
	}

	if d.reporter != nil {
		if err := d.reporter.Report(ctx, r); err != nil {
			pkg.LogWarn(pkg.ComponentCommand, "could not report result",
				"command", c.String(),
				"error", err)
		}
	}
	return r
}

func (d *Dispatcher) dispatch(ctx context.Context, c Command) Result {
	r := Result{Command: c}
	if err := c.Validate(); err != nil {
		r.Err = err
		return r
	}
	reg, err := resolve(c, d.regs)
	if err != nil {
		r.Err = err
		return r
	}

	if c.Kind == KindWriteControl {
		if err := d.engine.Write(ctx, reg, c.Value); err != nil {
			r.Err = err
			return r
		}
		r.Value = c.Value
		return r
	}

	data, err := d.engine.Read(ctx, reg)
	if err != nil {
		r.Err = err
		return r
	}
	r.Data = data
	r.Value = data[0]
	pkg.LogInfo(pkg.ComponentCommand, "read register",
		"register", reg.Name,
		"value", fmt.Sprintf("0x%02X", r.Value))

	if c.Kind == KindLegacy && d.writeBack {
		if err := d.writeBackValue(ctx, r.Value+1); err != nil {
			return Result{Command: c, Err: err}
		}
	}
	return r
}

// writeBackValue writes value to the control register.
func (d *Dispatcher) writeBackValue(ctx context.Context, value byte) error {
	reg, ok := d.regs.Lookup(regmap.NameControl)
	if !ok {
		return fmt.Errorf("%w: %q not in map %s", pkg.ErrInvalidRegister, regmap.NameControl, d.regs.Name())
	}
	if err := d.engine.Write(ctx, reg, value); err != nil {
		return fmt.Errorf("write-back: %w", err)
	}
	pkg.LogDebug(pkg.ComponentCommand, "write-back complete",
		"register", reg.Name,
		"value", fmt.Sprintf("0x%02X", value))
	return nil
}
