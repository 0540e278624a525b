// Package codec converts between the raw 64-byte MCP2221 command/response
// frames and the semantic records used by the driver. Every function in this
// package is pure: no I/O, no shared state.
//
// Byte offsets follow the MCP2221/MCP2221A datasheet (DS20005565) and are part
// of the wire contract with the chip.
package codec

import "fmt"

// FrameSize is the size of every command and response frame.
const FrameSize = 64

// ClockHz is the internal clock the I2C speed divider is derived from.
const ClockHz = 12_000_000

// Frame is a single command or response report.
type Frame [FrameSize]byte

// Opcode is the first byte of every command frame.
type Opcode byte

const (
	OpStatus          Opcode = 0x10 // status poll / set parameters (cancel, speed)
	OpI2CReadData     Opcode = 0x40 // fetch buffered I2C read data
	OpGPIOSet         Opcode = 0x50
	OpGPIOGet         Opcode = 0x51
	OpSRAMSet         Opcode = 0x60
	OpSRAMGet         Opcode = 0x61
	OpReset           Opcode = 0x70
	OpI2CWrite        Opcode = 0x90
	OpI2CRead         Opcode = 0x91
	OpI2CWriteRestart Opcode = 0x92
	OpI2CReadRestart  Opcode = 0x93
	OpI2CWriteNoStop  Opcode = 0x94
	OpFlashRead       Opcode = 0xB0
	OpFlashWrite      Opcode = 0xB1
	OpFlashPassword   Opcode = 0xB2
)

// Result codes carried in byte 1 of a response.
const (
	ResultOK   byte = 0x00
	ResultBusy byte = 0x01
	// ResultReadError is returned by OpI2CReadData when the engine has no
	// data for the host.
	ResultReadError byte = 0x41
)

func (o Opcode) String() string {
	switch o {
	case OpStatus:
		return "STATUS"
	case OpI2CReadData:
		return "I2C_READ_DATA"
	case OpGPIOSet:
		return "GPIO_SET"
	case OpGPIOGet:
		return "GPIO_GET"
	case OpSRAMSet:
		return "SRAM_SET"
	case OpSRAMGet:
		return "SRAM_GET"
	case OpReset:
		return "RESET"
	case OpI2CWrite:
		return "I2C_WRITE"
	case OpI2CRead:
		return "I2C_READ"
	case OpI2CWriteRestart:
		return "I2C_WRITE_RESTART"
	case OpI2CReadRestart:
		return "I2C_READ_RESTART"
	case OpI2CWriteNoStop:
		return "I2C_WRITE_NOSTOP"
	case OpFlashRead:
		return "FLASH_READ"
	case OpFlashWrite:
		return "FLASH_WRITE"
	case OpFlashPassword:
		return "FLASH_PASSWORD"
	default:
		return fmt.Sprintf("OPCODE(%#02x)", byte(o))
	}
}

// HasResponse reports whether the chip answers the command. Only reset does not.
func (o Opcode) HasResponse() bool {
	return o != OpReset
}

// Idempotent reports whether the command may be re-issued until the chip
// answers with ResultOK. Commands with side effects (flash, GPIO output, SRAM,
// reset and all I2C engine commands) hand any response back to the caller.
func (o Opcode) Idempotent() bool {
	switch o {
	case OpStatus, OpGPIOGet:
		return true
	default:
		return false
	}
}

// NewFrame returns a zeroed command frame for op.
func NewFrame(op Opcode) Frame {
	var f Frame
	f[0] = byte(op)
	return f
}

// Opcode returns byte 0 of the frame.
func (f Frame) Opcode() Opcode {
	return Opcode(f[0])
}

// Result returns the result code (byte 1) of a response frame.
func (f Frame) Result() byte {
	return f[1]
}

// OK reports whether the response carries ResultOK.
func (f Frame) OK() bool {
	return f[1] == ResultOK
}
