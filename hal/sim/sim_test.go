package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softi2c/hal"
	"github.com/ardnew/softi2c/regmap"
)

func readMsgs(addr hal.Addr, ptr []byte, n int) []hal.Message {
	return []hal.Message{
		{Addr: addr, Buf: ptr},
		{Addr: addr, Flags: hal.FlagRead, Buf: make([]byte, n)},
	}
}

func TestAdapter_ReadAutoIncrement(t *testing.T) {
	bus := New("sim0")
	bus.Attach(0x76, NewBMP280())

	msgs := readMsgs(0x76, []byte{regmap.AddrTempMSB}, 3)
	n, err := bus.Transfer(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x7E, 0xED, 0x00}, msgs[1].Buf)
}

func TestAdapter_SixteenBitPointer(t *testing.T) {
	bus := New("sim0")
	dev := NewDevice(regmap.PointerWidth16)
	dev.Set(0xFBFA, 0x1A, 0x2B, 0x3C)
	bus.Attach(0x76, dev)

	msgs := readMsgs(0x76, []byte{0xFA, 0xFB}, 3)
	_, err := bus.Transfer(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1A, 0x2B, 0x3C}, msgs[1].Buf)
}

func TestAdapter_WriteThenRead(t *testing.T) {
	bus := New("sim0")
	dev := NewBMP280()
	bus.Attach(0x76, dev)

	write := []hal.Message{
		{Addr: 0x76, Buf: []byte{regmap.AddrControl}},
		{Addr: 0x76, Buf: []byte{0x27}},
	}
	n, err := bus.Transfer(context.Background(), write)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x27}, dev.Get(regmap.AddrControl, 1))

	// Pointer state does not leak between transactions.
	read := readMsgs(0x76, []byte{regmap.AddrChipID}, 1)
	_, err = bus.Transfer(context.Background(), read)
	require.NoError(t, err)
	assert.Equal(t, byte(regmap.ChipIDBMP280), read[1].Buf[0])
}

func TestAdapter_NACK(t *testing.T) {
	bus := New("sim0")
	n, err := bus.Transfer(context.Background(), readMsgs(0x40, []byte{0}, 1))
	assert.Equal(t, CodeNXIO, n)
	assert.ErrorIs(t, err, ErrNACK)
}

func TestAdapter_FailNext(t *testing.T) {
	bus := New("sim0")
	bus.Attach(0x76, NewBMP280())

	custom := errors.New("arbitration lost")
	bus.FailNext(CodeRemote, nil)
	bus.FailNext(CodeAgain, custom)

	n, err := bus.Transfer(context.Background(), readMsgs(0x76, []byte{0xD0}, 1))
	assert.Equal(t, CodeRemote, n)
	assert.ErrorIs(t, err, ErrInjected)

	n, err = bus.Transfer(context.Background(), readMsgs(0x76, []byte{0xD0}, 1))
	assert.Equal(t, CodeAgain, n)
	assert.ErrorIs(t, err, custom)

	n, err = bus.Transfer(context.Background(), readMsgs(0x76, []byte{0xD0}, 1))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, bus.Calls())
}

func TestAdapter_History(t *testing.T) {
	bus := New("sim0")
	bus.Attach(0x76, NewBMP280())
	assert.Nil(t, bus.Last())

	msgs := readMsgs(0x76, []byte{regmap.AddrStatus}, 1)
	_, err := bus.Transfer(context.Background(), msgs)
	require.NoError(t, err)

	last := bus.Last()
	require.Len(t, last, 2)
	assert.Equal(t, []byte{regmap.AddrStatus}, last[0].Buf)
	assert.True(t, last[1].IsRead())

	// History holds copies.
	msgs[0].Buf[0] = 0xFF
	assert.Equal(t, byte(regmap.AddrStatus), bus.History()[0][0].Buf[0])

	bus.Reset()
	assert.Empty(t, bus.History())
	assert.Zero(t, bus.Calls())
}

func TestAdapter_Cancelled(t *testing.T) {
	bus := New("sim0")
	bus.Attach(0x76, NewBMP280())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := bus.Transfer(ctx, readMsgs(0x76, []byte{0xD0}, 1))
	assert.Equal(t, CodeIO, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_DetectsOverlap(t *testing.T) {
	bus := New("sim0")
	bus.Attach(0x76, NewBMP280())
	bus.Delay = 5 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = bus.Transfer(context.Background(), readMsgs(0x76, []byte{0xD0}, 1))
		}()
	}
	wg.Wait()

	assert.Positive(t, bus.Overlaps(), "unserialized callers should overlap")
}

func TestAdapter_Detach(t *testing.T) {
	bus := New("sim0")
	bus.Attach(0x76, NewBMP280())
	require.NotNil(t, bus.Target(0x76))

	bus.Detach(0x76)
	assert.Nil(t, bus.Target(0x76))
	_, err := bus.Transfer(context.Background(), readMsgs(0x76, []byte{0xD0}, 1))
	assert.ErrorIs(t, err, ErrNACK)
}
