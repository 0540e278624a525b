package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ChunkSize is the I2C payload carried by one write frame or one read-data
// response: 64 bytes minus the 4-byte header.
const ChunkSize = FrameSize - 4

// MaxTransfer is the largest transfer the 16-bit length field can describe.
const MaxTransfer = 0xFFFF

// MaxAddress is the highest 7-bit target address.
const MaxAddress = 0x7F

// Speed divider bounds.
const (
	MinDivider = 0
	MaxDivider = 255
)

var ErrSpeedOutOfRange = errors.New("speed out of range")

// TransferKind selects the start/stop framing of a transfer.
type TransferKind byte

const (
	// Regular transfers are framed by START and STOP.
	Regular TransferKind = iota
	// Restart transfers begin with a repeated START and end with STOP.
	Restart
	// NoStop transfers begin with START and leave the bus held. Only a
	// Restart transfer may follow.
	NoStop
)

func (k TransferKind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Restart:
		return "restart"
	case NoStop:
		return "nostop"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// WriteOpcode returns the write command for k.
func (k TransferKind) WriteOpcode() (Opcode, error) {
	switch k {
	case Regular:
		return OpI2CWrite, nil
	case Restart:
		return OpI2CWriteRestart, nil
	case NoStop:
		return OpI2CWriteNoStop, nil
	}
	return 0, fmt.Errorf("unsupported write kind %s", k)
}

// ReadOpcode returns the read command for k. Reads cannot end without STOP.
func (k TransferKind) ReadOpcode() (Opcode, error) {
	switch k {
	case Regular:
		return OpI2CRead, nil
	case Restart:
		return OpI2CReadRestart, nil
	}
	return 0, fmt.Errorf("unsupported read kind %s", k)
}

// SpeedDivider converts a bus frequency into the engine divider:
// round(12 MHz / hz) - 2, valid in [0, 255].
func SpeedDivider(hz uint32) (byte, error) {
	if hz == 0 {
		return 0, fmt.Errorf("%w: %d Hz", ErrSpeedOutOfRange, hz)
	}
	div := (int64(ClockHz)+int64(hz)/2)/int64(hz) - 2
	if div < MinDivider || div > MaxDivider {
		return 0, fmt.Errorf("%w: %d Hz gives divider %d", ErrSpeedOutOfRange, hz, div)
	}
	return byte(div), nil
}

// DividerSpeed is the inverse of SpeedDivider.
func DividerSpeed(div byte) uint32 {
	return ClockHz / (uint32(div) + 2)
}

// EncodeWrite builds one write chunk. length is the total transfer length and
// chunk holds at most ChunkSize bytes.
func EncodeWrite(op Opcode, length uint16, address byte, chunk []byte) Frame {
	f := NewFrame(op)
	binary.LittleEndian.PutUint16(f[1:3], length)
	f[3] = address << 1
	copy(f[4:], chunk)
	return f
}

// EncodeRead builds a read request; the low address bit marks the read.
func EncodeRead(op Opcode, length uint16, address byte) Frame {
	f := NewFrame(op)
	binary.LittleEndian.PutUint16(f[1:3], length)
	f[3] = address<<1 | 1
	return f
}

// EncodeReadData builds a request for the engine's buffered read data.
func EncodeReadData() Frame {
	return NewFrame(OpI2CReadData)
}

// noReadData is the length byte the chip returns when it has nothing to give.
const noReadData = 0x7F

// ReadChunk is a decoded OpI2CReadData response.
type ReadChunk struct {
	Result byte
	State  EngineState
	// Valid is false when the chip reported no data (length 0x7F) or a length
	// larger than a chunk.
	Valid bool
	Data  []byte
}

// DecodeReadData decodes a read-data response. Data aliases a copy of the
// frame payload, never the frame itself.
func DecodeReadData(f Frame) ReadChunk {
	c := ReadChunk{Result: f[1], State: EngineState(f[2])}
	n := int(f[3])
	if n == noReadData || n > ChunkSize {
		return c
	}
	c.Valid = true
	c.Data = make([]byte, n)
	copy(c.Data, f[4:4+n])
	return c
}

// WriteState returns the engine state echoed in byte 2 of an I2C command
// response.
func WriteState(f Frame) EngineState {
	return EngineState(f[2])
}
