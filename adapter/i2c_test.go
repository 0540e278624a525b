package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/mcp2221"
	"github.com/mklimuk/mcp2221/codec"
	"github.com/mklimuk/mcp2221/transport"
)

func newTestDevice(e *fakeEngine, opts ...Opt) *MCP2221 {
	return New(e, append([]Opt{WithRecoveryDelay(0)}, opts...)...)
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestInvalidArgumentsSendNothing(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx := context.Background()

	for _, addr := range []byte{0x80, 0xA0, 0xFF} {
		t.Run(fmt.Sprintf("address %#02x", addr), func(t *testing.T) {
			err := d.Write(ctx, addr, []byte{1}, codec.Regular, 0)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			_, err = d.Read(ctx, addr, 1, codec.Regular, 0)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			_, err = d.ReadRegister(ctx, addr, []byte{0}, 1)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	t.Run("empty write", func(t *testing.T) {
		assert.ErrorIs(t, d.Write(ctx, 0x50, nil, codec.Regular, 0), ErrInvalidArgument)
	})
	t.Run("oversized write", func(t *testing.T) {
		assert.ErrorIs(t, d.Write(ctx, 0x50, make([]byte, 65536), codec.Regular, 0), ErrInvalidArgument)
	})
	t.Run("zero read", func(t *testing.T) {
		_, err := d.Read(ctx, 0x50, 0, codec.Regular, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
	t.Run("nostop read", func(t *testing.T) {
		_, err := d.Read(ctx, 0x50, 1, codec.NoStop, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
	assert.Empty(t, e.ops)
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, n := range []int{1, 59, 60, 61, 119, 120, 121, 130, 1000, 65535} {
		t.Run(fmt.Sprintf("%d bytes", n), func(t *testing.T) {
			e := newFakeEngine(0x50)
			d := newTestDevice(e)
			ctx := context.Background()
			data := pattern(n)

			require.NoError(t, d.Write(ctx, 0x50, data, codec.Regular, 0))
			assert.Equal(t, (n+codec.ChunkSize-1)/codec.ChunkSize, e.count(codec.OpI2CWrite))

			got, err := d.Read(ctx, 0x50, n, codec.Regular, 0)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, got), "read back differs")
			assert.False(t, d.Dirty())
			assert.Zero(t, e.cancels)
		})
	}
}

func TestWriteChunkLayout(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	data := pattern(130)
	require.NoError(t, d.Write(context.Background(), 0x50, data, codec.Regular, 0))

	var chunks []codec.Frame
	for _, f := range e.ops {
		if f.Opcode() == codec.OpI2CWrite {
			chunks = append(chunks, f)
		}
	}
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, []byte{130, 0, 0xA0}, c[1:4], "chunk %d header", i)
	}
	assert.Equal(t, data[:60], chunks[0][4:64])
	assert.Equal(t, data[60:120], chunks[1][4:64])
	assert.Equal(t, data[120:], chunks[2][4:14])
	assert.Equal(t, make([]byte, 50), chunks[2][14:64])
}

func TestEndToEndRestartRead(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx := context.Background()
	data := pattern(130)

	require.NoError(t, d.Write(ctx, 0x50, data, codec.Regular, 0))
	got, err := d.Read(ctx, 0x50, 130, codec.Restart, 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 1, e.count(codec.OpI2CReadRestart))
	assert.Equal(t, 3, e.count(codec.OpI2CReadData))
	assert.False(t, d.Dirty())
}

func TestSequentialWritesNeedNoRecovery(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx := context.Background()

	require.NoError(t, d.Write(ctx, 0x50, []byte{0x00, 0x10}, codec.Regular, 0))
	assert.False(t, d.Dirty())
	require.NoError(t, d.Write(ctx, 0x50, []byte{0x00, 0x20}, codec.Regular, 0))
	assert.False(t, d.Dirty())
	assert.Zero(t, e.cancels)
}

func TestNoStopThenRegularIsMisuse(t *testing.T) {
	tests := []struct {
		name   string
		follow func(d *MCP2221) error
	}{
		{
			name: "regular write",
			follow: func(d *MCP2221) error {
				return d.Write(context.Background(), 0x50, []byte{1}, codec.Regular, 0)
			},
		},
		{
			name: "regular read",
			follow: func(d *MCP2221) error {
				_, err := d.Read(context.Background(), 0x50, 1, codec.Regular, 0)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeEngine(0x50)
			d := newTestDevice(e)
			require.NoError(t, d.Write(context.Background(), 0x50, []byte{0x10}, codec.NoStop, 0))

			err := tt.follow(d)
			assert.ErrorIs(t, err, ErrProtocolMisuse)
			assert.Equal(t, 1, e.cancels, "bus recovered after misuse")
			assert.False(t, d.Dirty())

			// the bus is usable again
			require.NoError(t, d.Write(context.Background(), 0x50, []byte{0x20}, codec.Regular, 0))
		})
	}
}

func TestReadRegister(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	got, err := d.ReadRegister(context.Background(), 0x50, []byte{0xAB, 0xCD}, 4)
	require.NoError(t, err)
	// the fake echoes the register address
	assert.Equal(t, []byte{0xAB, 0xCD, 0xAB, 0xCD}, got)
	assert.Equal(t, 1, e.count(codec.OpI2CWriteNoStop))
	assert.Equal(t, 1, e.count(codec.OpI2CReadRestart))
	assert.Zero(t, e.cancels, "status after nostop write is not confusion")
}

func TestMissingTarget(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx := context.Background()

	err := d.Write(ctx, 0x51, []byte{1, 2, 3}, codec.Regular, 0)
	assert.ErrorIs(t, err, ErrNotAcknowledged)
	assert.True(t, IsExpected(err))
	assert.False(t, IsFatal(err))
	assert.False(t, d.Dirty())

	err = d.Write(ctx, 0x51, pattern(130), codec.Regular, 0)
	assert.ErrorIs(t, err, ErrNotAcknowledged)

	_, err = d.Read(ctx, 0x51, 4, codec.Regular, 0)
	assert.ErrorIs(t, err, ErrNotAcknowledged)
	assert.False(t, d.Dirty())

	require.NoError(t, d.Write(ctx, 0x50, []byte{1}, codec.Regular, 0))
}

func TestBusyChunkIsResent(t *testing.T) {
	e := newFakeEngine(0x50)
	e.busyChunks = 2
	d := newTestDevice(e, WithWatchdog(time.Second))
	require.NoError(t, d.Write(context.Background(), 0x50, pattern(61), codec.Regular, 0))
	assert.Equal(t, 4, e.count(codec.OpI2CWrite))
	assert.Zero(t, e.cancels)
}

func TestWriteWatchdog(t *testing.T) {
	e := newFakeEngine(0x50)
	e.busyChunks = 1 << 30
	d := newTestDevice(e, WithWatchdog(5*time.Millisecond))
	err := d.Write(context.Background(), 0x50, []byte{1}, codec.Regular, 0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsExpected(err))
	assert.Equal(t, 1, e.cancels)
	assert.False(t, d.Dirty())
}

func TestReadWaitsForData(t *testing.T) {
	e := newFakeEngine(0x50)
	e.targets[0x50] = []byte{0x42}
	e.emptyPolls = 3
	d := newTestDevice(e, WithWatchdog(time.Second))
	got, err := d.Read(context.Background(), 0x50, 2, codec.Regular, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42, 0x42}, got)
	assert.Equal(t, 4, e.count(codec.OpI2CReadData))
}

func TestReadWatchdog(t *testing.T) {
	e := newFakeEngine(0x50)
	e.emptyPolls = 1 << 30
	d := newTestDevice(e)
	_, err := d.Read(context.Background(), 0x50, 2, codec.Regular, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, e.cancels)
}

func TestSCLHeld(t *testing.T) {
	e := newFakeEngine(0x50)
	e.scl = false
	d := newTestDevice(e)
	ctx := context.Background()

	err := d.Write(ctx, 0x50, []byte{1}, codec.Regular, 0)
	assert.ErrorIs(t, err, ErrSCLHeld)
	assert.ErrorIs(t, err, ErrElectricalFault)
	assert.True(t, IsFatal(err))
	assert.True(t, d.Dirty())

	_, err = d.Read(ctx, 0x50, 1, codec.Regular, 0)
	assert.ErrorIs(t, err, ErrSCLHeld)
	assert.True(t, d.Dirty())
	err = d.Write(ctx, 0x50, []byte{1}, codec.Restart, 0)
	assert.ErrorIs(t, err, ErrSCLHeld)

	e.scl = true
	require.NoError(t, d.Write(ctx, 0x50, []byte{1}, codec.Regular, 0))
	assert.False(t, d.Dirty())
}

func TestSDAHeld(t *testing.T) {
	e := newFakeEngine(0x50)
	e.sda = false
	d := newTestDevice(e)
	_, err := d.Read(context.Background(), 0x50, 1, codec.Regular, 0)
	assert.ErrorIs(t, err, ErrSDAHeld)
	assert.NotErrorIs(t, err, ErrSCLHeld)
	assert.True(t, d.Dirty())
}

func TestConfusedEngineRecoveredBeforeTransfer(t *testing.T) {
	e := newFakeEngine(0x50)
	e.initialized = true
	e.confused = 0x02
	d := newTestDevice(e)
	require.NoError(t, d.Write(context.Background(), 0x50, []byte{1}, codec.Regular, 0))
	assert.Equal(t, 1, e.cancels)
}

func TestUnclassifiedEngineState(t *testing.T) {
	const unknown = codec.EngineState(0x77)
	tests := []struct {
		name     string
		op       string
		arm      func(e *fakeEngine)
		transfer func(d *MCP2221) error
	}{
		{
			name: "write chunk",
			op:   "write to 0x50",
			arm:  func(e *fakeEngine) { e.chunkState = unknown },
			transfer: func(d *MCP2221) error {
				return d.Write(context.Background(), 0x50, pattern(10), codec.Regular, 0)
			},
		},
		{
			name: "read fetch",
			op:   "read from 0x50",
			arm:  func(e *fakeEngine) { e.dataState = unknown },
			transfer: func(d *MCP2221) error {
				_, err := d.Read(context.Background(), 0x50, 10, codec.Regular, 0)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeEngine(0x50)
			e.initialized = true
			tt.arm(e)
			d := newTestDevice(e)

			err := tt.transfer(d)
			var engErr *EngineError
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, unknown, engErr.Code)
			assert.Equal(t, tt.op, engErr.Op)
			assert.ErrorIs(t, err, ErrEngine)
			assert.False(t, IsExpected(err))
			assert.False(t, IsFatal(err))
			assert.Equal(t, 1, e.cancels, "bus recovered after the unknown state")
			assert.False(t, d.Dirty())

			require.NoError(t, tt.transfer(d))
		})
	}
}

func TestTransportFailureDefersRecovery(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx := context.Background()
	linkDown := errors.New("link down")
	// drop the link once the first chunk of a transfer was accepted
	e.onWrite = func(req codec.Frame) error {
		if req.Opcode() == codec.OpI2CWrite && len(e.wbuf) > 0 {
			return linkDown
		}
		return nil
	}

	err := d.Write(ctx, 0x50, pattern(130), codec.Regular, 0)
	assert.ErrorIs(t, err, transport.ErrTransport)
	assert.ErrorIs(t, err, linkDown)
	assert.True(t, IsFatal(err))
	assert.True(t, d.Dirty())
	assert.Zero(t, e.cancels, "no recovery over a failing link")
	assert.Equal(t, 1, e.count(codec.OpStatus), "only the pre-transfer poll")
	assert.Equal(t, codec.StateWriteDataWait, e.state)

	e.onWrite = nil
	data := pattern(10)
	require.NoError(t, d.Write(ctx, 0x50, data, codec.Regular, 0))
	assert.Equal(t, 1, e.cancels, "next transfer recovers first")
	assert.False(t, d.Dirty())
	assert.Equal(t, data, e.targets[0x50])
}

func TestCancelledContext(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Write(ctx, 0x50, []byte{1}, codec.Regular, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.ops)
}

func TestSetSpeed(t *testing.T) {
	tests := []struct {
		name    string
		hz      uint32
		divider byte
	}{
		{name: "100kHz", hz: 100_000, divider: 118},
		{name: "400kHz", hz: 400_000, divider: 28},
		{name: "lowest", hz: 46_693, divider: 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeEngine()
			e.divider = 0
			d := newTestDevice(e)
			require.NoError(t, d.SetSpeed(context.Background(), tt.hz))
			assert.Equal(t, tt.divider, e.divider)
			assert.Equal(t, tt.hz, d.Speed())
		})
	}

	t.Run("out of range sends nothing", func(t *testing.T) {
		e := newFakeEngine()
		d := newTestDevice(e)
		for _, hz := range []uint32{0, 46_500, 10_000, 12_000_000} {
			assert.ErrorIs(t, d.SetSpeed(context.Background(), hz), ErrInvalidArgument)
		}
		assert.Empty(t, e.ops)
	})

	t.Run("refused once", func(t *testing.T) {
		e := newFakeEngine()
		e.refuseSpeed = 1
		d := newTestDevice(e)
		require.NoError(t, d.SetSpeed(context.Background(), 400_000))
		assert.Equal(t, byte(28), e.divider)
		assert.Zero(t, e.cancels, "engine never used, no cancel")
	})

	t.Run("refused twice", func(t *testing.T) {
		e := newFakeEngine()
		e.refuseSpeed = 2
		d := newTestDevice(e)
		err := d.SetSpeed(context.Background(), 400_000)
		var eerr *EngineError
		require.ErrorAs(t, err, &eerr)
		assert.ErrorIs(t, err, mcp2221.ErrBusBusy)
		assert.ErrorIs(t, err, ErrEngine)
		assert.Equal(t, uint32(0), d.Speed())
	})
}

func TestScan(t *testing.T) {
	e := newFakeEngine(0x20, 0x50)
	d := newTestDevice(e)
	found, err := d.Scan(context.Background(), 0x08, 0x77)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x20, 0x50}, found)
	assert.False(t, d.Dirty())

	_, err = d.Scan(context.Background(), 0x10, 0x80)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestScanStopsOnFatal(t *testing.T) {
	e := newFakeEngine(0x20)
	e.scl = false
	d := newTestDevice(e)
	found, err := d.Scan(context.Background(), 0x08, 0x77)
	assert.ErrorIs(t, err, ErrSCLHeld)
	assert.Empty(t, found)
}

func TestI2CBusInterface(t *testing.T) {
	e := newFakeEngine(0x50)
	d := newTestDevice(e)
	ctx := context.Background()
	var bus mcp2221.I2CBus = d

	require.NoError(t, bus.WriteToAddr(ctx, 0x50, []byte{9, 8, 7}))
	buf := make([]byte, 3)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x50, buf))
	assert.Equal(t, []byte{9, 8, 7}, buf)
	assert.ErrorIs(t, bus.ReadFromAddr(ctx, 0x51, buf), ErrNotAcknowledged)
	require.NoError(t, bus.Release(ctx))
}
