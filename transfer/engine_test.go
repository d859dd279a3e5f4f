package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/hal/sim"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/regmap"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// testDevice is a bound target on an adapter.
type testDevice struct {
	addr    hal.Addr
	adapter hal.Adapter
}

func (d *testDevice) Addr() hal.Addr       { return d.addr }
func (d *testDevice) Adapter() hal.Adapter { return d.adapter }

// testLocker serializes access to an optional bound device.
type testLocker struct {
	mu  sync.Mutex
	dev *testDevice
}

func (l *testLocker) Do(ctx context.Context, fn func(Device) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dev == nil {
		return pkg.ErrNoDevice
	}
	return fn(l.dev)
}

// countAdapter returns a fixed count and error without touching buffers.
type countAdapter struct {
	n     int
	err   error
	calls int
}

func (a *countAdapter) Name() string { return "count" }

func (a *countAdapter) Transfer(_ context.Context, msgs []hal.Message) (int, error) {
	a.calls++
	return a.n, a.err
}

func newSimEngine(t *testing.T, dev *sim.Device) (*Engine, *sim.Adapter) {
	t.Helper()
	bus := sim.New("sim0")
	bus.Attach(0x76, dev)
	return New(&testLocker{dev: &testDevice{addr: 0x76, adapter: bus}}), bus
}

// =============================================================================
// Framing Tests
// =============================================================================

func TestReadTransaction_Frames(t *testing.T) {
	tests := []struct {
		name string
		reg  regmap.Register
		want []hal.Message
	}{
		{
			name: "8-bit pointer",
			reg:  regmap.Temperature,
			want: []hal.Message{
				{Addr: 0x76, Buf: []byte{0xFA}},
				{Addr: 0x76, Flags: hal.FlagRead, Buf: make([]byte, 3)},
			},
		},
		{
			name: "single byte",
			reg:  regmap.ChipID,
			want: []hal.Message{
				{Addr: 0x76, Buf: []byte{0xD0}},
				{Addr: 0x76, Flags: hal.FlagRead, Buf: make([]byte, 1)},
			},
		},
		{
			name: "16-bit pointer LSB first",
			reg:  regmap.Reg16("t", 0xFBFA, 3, regmap.AccessRead),
			want: []hal.Message{
				{Addr: 0x76, Buf: []byte{0xFA, 0xFB}},
				{Addr: 0x76, Flags: hal.FlagRead, Buf: make([]byte, 3)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := ReadTransaction(0x76, tt.reg, make([]byte, regmap.MaxLength))
			if err != nil {
				t.Fatalf("ReadTransaction() error = %v", err)
			}
			if tx.Kind != KindRead {
				t.Errorf("Kind = %v, want %v", tx.Kind, KindRead)
			}
			if diff := cmp.Diff(tt.want, tx.Msgs); diff != "" {
				t.Errorf("Msgs mismatch (-want +got):\n%s", diff)
			}
			if err := tx.Validate(0x76); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestReadTransaction_BufferTooSmall(t *testing.T) {
	_, err := ReadTransaction(0x76, regmap.Temperature, make([]byte, 2))
	if !errors.Is(err, pkg.ErrBufferTooSmall) {
		t.Errorf("error = %v, want ErrBufferTooSmall", err)
	}
}

func TestWriteTransaction_Frames(t *testing.T) {
	tx, err := WriteTransaction(0x76, regmap.Control, 0x27)
	if err != nil {
		t.Fatalf("WriteTransaction() error = %v", err)
	}
	want := []hal.Message{
		{Addr: 0x76, Buf: []byte{0xF4}},
		{Addr: 0x76, Buf: []byte{0x27}},
	}
	if diff := cmp.Diff(want, tx.Msgs); diff != "" {
		t.Errorf("Msgs mismatch (-want +got):\n%s", diff)
	}
	if tx.Kind != KindWrite {
		t.Errorf("Kind = %v, want %v", tx.Kind, KindWrite)
	}
	if got := tx.Data(); !cmp.Equal(got, []byte{0x27}) {
		t.Errorf("Data() = % X, want 27", got)
	}
}

func TestWriteTransaction_ReadOnly(t *testing.T) {
	_, err := WriteTransaction(0x76, regmap.Temperature, 0x00)
	if !errors.Is(err, pkg.ErrReadOnly) {
		t.Errorf("error = %v, want ErrReadOnly", err)
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want error
	}{
		{
			name: "empty",
			tx:   Transaction{Kind: KindRead},
			want: pkg.ErrEmptyTransaction,
		},
		{
			name: "misaddressed",
			tx: Transaction{Kind: KindWrite, Msgs: []hal.Message{
				{Addr: 0x76, Buf: []byte{0xF4}},
				{Addr: 0x77, Buf: []byte{0x00}},
			}},
			want: pkg.ErrMisaddressed,
		},
		{
			name: "empty message",
			tx: Transaction{Kind: KindWrite, Msgs: []hal.Message{
				{Addr: 0x76, Buf: nil},
			}},
			want: pkg.ErrInvalidRegister,
		},
		{
			name: "read before pointer",
			tx: Transaction{Kind: KindRead, Msgs: []hal.Message{
				{Addr: 0x76, Flags: hal.FlagRead, Buf: []byte{0}},
				{Addr: 0x76, Buf: []byte{0xFA}},
			}},
			want: pkg.ErrInvalidRegister,
		},
		{
			name: "read in write transaction",
			tx: Transaction{Kind: KindWrite, Msgs: []hal.Message{
				{Addr: 0x76, Buf: []byte{0xF4}},
				{Addr: 0x76, Flags: hal.FlagRead, Buf: []byte{0}},
			}},
			want: pkg.ErrInvalidRegister,
		},
		{
			name: "read without data phase",
			tx: Transaction{Kind: KindRead, Msgs: []hal.Message{
				{Addr: 0x76, Buf: []byte{0xFA}},
			}},
			want: pkg.ErrInvalidRegister,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tx.Validate(0x76); !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// =============================================================================
// Engine Tests
// =============================================================================

func TestEngine_Read(t *testing.T) {
	e, bus := newSimEngine(t, sim.NewBMP280())

	got, err := e.Read(context.Background(), regmap.Temperature)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff([]byte{0x7E, 0xED, 0x00}, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
	if bus.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", bus.Calls())
	}

	last := bus.Last()
	if len(last) != 2 {
		t.Fatalf("len(Last()) = %d, want 2", len(last))
	}
	if last[0].Len() != int(regmap.Temperature.PointerWidth) {
		t.Errorf("pointer length = %d, want %d", last[0].Len(), regmap.Temperature.PointerWidth)
	}
	if last[0].IsRead() || !last[1].IsRead() {
		t.Errorf("flags = %v,%v, want write,read", last[0].Flags, last[1].Flags)
	}
}

func TestEngine_Read16BitPointer(t *testing.T) {
	dev := sim.NewDevice(regmap.PointerWidth16)
	dev.Set(0xFBFA, 0x1A, 0x2B, 0x3C)
	e, bus := newSimEngine(t, dev)

	reg := regmap.Reg16("t", 0xFBFA, 3, regmap.AccessRead)
	got, err := e.Read(context.Background(), reg)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff([]byte{0x1A, 0x2B, 0x3C}, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xFA, 0xFB}, bus.Last()[0].Buf); diff != "" {
		t.Errorf("pointer mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_ReadInto(t *testing.T) {
	e, _ := newSimEngine(t, sim.NewBMP280())

	buf := []byte{0xAA, 0xAA, 0xAA, 0xAA}
	n, err := e.ReadInto(context.Background(), regmap.Pressure, buf)
	if err != nil {
		t.Fatalf("ReadInto() error = %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	if diff := cmp.Diff([]byte{0x65, 0x5A, 0xC0, 0xAA}, buf); diff != "" {
		t.Errorf("buf mismatch (-want +got):\n%s", diff)
	}

	if _, err := e.ReadInto(context.Background(), regmap.Pressure, buf[:2]); !errors.Is(err, pkg.ErrBufferTooSmall) {
		t.Errorf("short buffer error = %v, want ErrBufferTooSmall", err)
	}
}

func TestEngine_Write(t *testing.T) {
	dev := sim.NewBMP280()
	e, bus := newSimEngine(t, dev)

	if err := e.Write(context.Background(), regmap.Control, 0x27); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := dev.Get(regmap.AddrControl, 1)[0]; got != 0x27 {
		t.Errorf("control = 0x%02X, want 0x27", got)
	}

	last := bus.Last()
	if len(last) != 2 {
		t.Fatalf("len(Last()) = %d, want 2", len(last))
	}
	if last[1].Len() != 1 || last[1].IsRead() {
		t.Errorf("payload = %v, want single write byte", last[1])
	}
}

func TestEngine_WriteReadOnlyNeverReachesBus(t *testing.T) {
	e, bus := newSimEngine(t, sim.NewBMP280())

	for _, reg := range []regmap.Register{regmap.ChipID, regmap.Temperature, regmap.Status} {
		if err := e.Write(context.Background(), reg, 0x00); !errors.Is(err, pkg.ErrReadOnly) {
			t.Errorf("Write(%s) error = %v, want ErrReadOnly", reg.Name, err)
		}
	}
	if bus.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", bus.Calls())
	}
}

func TestEngine_Unbound(t *testing.T) {
	e := New(&testLocker{})

	if _, err := e.Read(context.Background(), regmap.Temperature); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("Read() error = %v, want ErrNoDevice", err)
	}
	if err := e.Write(context.Background(), regmap.Control, 1); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("Write() error = %v, want ErrNoDevice", err)
	}
	if s := e.Stats(); s.Transactions != 0 {
		t.Errorf("Transactions = %d, want 0", s.Transactions)
	}
}

func TestEngine_AdapterFailure(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		err      error
		wantCode int
		wantErr  error
	}{
		{"negative count", sim.CodeNXIO, nil, sim.CodeNXIO, pkg.ErrBusFailure},
		{"error with zero count", 0, sim.ErrInjected, -1, sim.ErrInjected},
		{"short transfer", 1, nil, 1, pkg.ErrShortTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &countAdapter{n: tt.n, err: tt.err}
			e := New(&testLocker{dev: &testDevice{addr: 0x76, adapter: bus}})

			data, err := e.Read(context.Background(), regmap.Temperature)
			if data != nil {
				t.Errorf("data = % X, want nil", data)
			}
			if !errors.Is(err, pkg.ErrBusFailure) {
				t.Errorf("error = %v, want ErrBusFailure", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}

			var terr *pkg.TransferError
			if !errors.As(err, &terr) {
				t.Fatalf("error %T is not *TransferError", err)
			}
			if terr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", terr.Code, tt.wantCode)
			}
			if terr.Messages != 2 {
				t.Errorf("Messages = %d, want 2", terr.Messages)
			}
			if terr.Addr != 0x76 {
				t.Errorf("Addr = 0x%02X, want 0x76", terr.Addr)
			}

			s := e.Stats()
			if s.Transactions != 1 || s.Failures != 1 {
				t.Errorf("Stats() = %+v, want 1/1", s)
			}
		})
	}
}

func TestEngine_FailedReadLeavesBufferUntouched(t *testing.T) {
	e, bus := newSimEngine(t, sim.NewBMP280())
	bus.FailNext(sim.CodeRemote, nil)

	buf := []byte{0xAA, 0xAA, 0xAA}
	n, err := e.ReadInto(context.Background(), regmap.Temperature, buf)
	if err == nil {
		t.Fatal("ReadInto() error = nil, want failure")
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if diff := cmp.Diff([]byte{0xAA, 0xAA, 0xAA}, buf); diff != "" {
		t.Errorf("buf modified (-want +got):\n%s", diff)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	e, bus := newSimEngine(t, sim.NewBMP280())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Read(ctx, regmap.ChipID); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
	if bus.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", bus.Calls())
	}
}

func TestEngine_Submit(t *testing.T) {
	e, bus := newSimEngine(t, sim.NewBMP280())

	tx, err := ReadTransaction(0x76, regmap.ChipID, make([]byte, 1))
	if err != nil {
		t.Fatalf("ReadTransaction() error = %v", err)
	}
	if err := e.Submit(context.Background(), &tx); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := tx.Data()[0]; got != regmap.ChipIDBMP280 {
		t.Errorf("chip id = 0x%02X, want 0x%02X", got, regmap.ChipIDBMP280)
	}

	bad, _ := ReadTransaction(0x77, regmap.ChipID, make([]byte, 1))
	if err := e.Submit(context.Background(), &bad); !errors.Is(err, pkg.ErrMisaddressed) {
		t.Errorf("Submit(misaddressed) error = %v, want ErrMisaddressed", err)
	}
	if bus.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", bus.Calls())
	}
}
