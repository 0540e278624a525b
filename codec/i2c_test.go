package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedDivider(t *testing.T) {
	tests := []struct {
		name    string
		hz      uint32
		divider byte
		wantErr bool
	}{
		{name: "100kHz", hz: 100_000, divider: 118},
		{name: "400kHz", hz: 400_000, divider: 28},
		{name: "slowest valid", hz: 46_693, divider: 255},
		{name: "fastest valid", hz: 6_000_000, divider: 0},
		{name: "divider 256", hz: 46_500, wantErr: true},
		{name: "too slow", hz: 10_000, wantErr: true},
		{name: "too fast", hz: 12_000_000, wantErr: true},
		{name: "zero", hz: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			div, err := SpeedDivider(tt.hz)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSpeedOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.divider, div)
		})
	}
}

func TestDividerSpeed(t *testing.T) {
	assert.Equal(t, uint32(100_000), DividerSpeed(118))
	assert.Equal(t, uint32(6_000_000), DividerSpeed(0))
}

func TestTransferKindOpcodes(t *testing.T) {
	tests := []struct {
		kind      TransferKind
		write     Opcode
		read      Opcode
		readError bool
	}{
		{kind: Regular, write: OpI2CWrite, read: OpI2CRead},
		{kind: Restart, write: OpI2CWriteRestart, read: OpI2CReadRestart},
		{kind: NoStop, write: OpI2CWriteNoStop, readError: true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			w, err := tt.kind.WriteOpcode()
			require.NoError(t, err)
			assert.Equal(t, tt.write, w)
			r, err := tt.kind.ReadOpcode()
			if tt.readError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.read, r)
		})
	}
}

func TestEncodeWrite(t *testing.T) {
	f := EncodeWrite(OpI2CWrite, 130, 0x50, []byte{0xDE, 0xAD})
	assert.Equal(t, byte(0x90), f[0])
	assert.Equal(t, byte(130), f[1])
	assert.Equal(t, byte(0), f[2])
	assert.Equal(t, byte(0xA0), f[3])
	assert.Equal(t, []byte{0xDE, 0xAD, 0x00}, f[4:7])

	f = EncodeWrite(OpI2CWriteNoStop, 0x1234, 0x7F, nil)
	assert.Equal(t, byte(0x34), f[1])
	assert.Equal(t, byte(0x12), f[2])
	assert.Equal(t, byte(0xFE), f[3])
}

func TestEncodeRead(t *testing.T) {
	f := EncodeRead(OpI2CReadRestart, 300, 0x50)
	assert.Equal(t, byte(0x93), f[0])
	assert.Equal(t, byte(0x2C), f[1])
	assert.Equal(t, byte(0x01), f[2])
	assert.Equal(t, byte(0xA1), f[3])
}

func TestDecodeReadData(t *testing.T) {
	t.Run("chunk", func(t *testing.T) {
		f := NewFrame(OpI2CReadData)
		f[2] = byte(StateReadPartial)
		f[3] = 3
		copy(f[4:], []byte{1, 2, 3, 4})
		c := DecodeReadData(f)
		assert.True(t, c.Valid)
		assert.Equal(t, StateReadPartial, c.State)
		assert.Equal(t, []byte{1, 2, 3}, c.Data)
		f[4] = 9
		assert.Equal(t, byte(1), c.Data[0])
	})
	t.Run("no data", func(t *testing.T) {
		f := NewFrame(OpI2CReadData)
		f[1] = ResultReadError
		f[3] = 0x7F
		c := DecodeReadData(f)
		assert.False(t, c.Valid)
		assert.Nil(t, c.Data)
	})
	t.Run("oversized length", func(t *testing.T) {
		f := NewFrame(OpI2CReadData)
		f[3] = 61
		assert.False(t, DecodeReadData(f).Valid)
	})
}
