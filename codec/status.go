package codec

import (
	"encoding/binary"
	"fmt"
)

// EngineState is the raw internal state byte of the chip's I2C master engine.
// Only part of these values are documented; the names below come from
// observing the engine on MCP2221 and MCP2221A silicon.
type EngineState byte

const (
	StateIdle             EngineState = 0x00
	StateStart            EngineState = 0x10
	StateStartAck         EngineState = 0x11
	StateStartTimeout     EngineState = 0x12
	StateRestart          EngineState = 0x15
	StateRestartAck       EngineState = 0x16
	StateRestartTimeout   EngineState = 0x17
	StateAddrSend         EngineState = 0x20
	StateAddrWaitSend     EngineState = 0x21
	StateAddrAck          EngineState = 0x22
	StateAddrTimeout      EngineState = 0x23
	StateAddrNACKStopWait EngineState = 0x24
	StateAddrNACK         EngineState = 0x25
	StateAddrHighTimeout  EngineState = 0x33
	StateWriteData        EngineState = 0x40
	StateWriteDataWait    EngineState = 0x41
	StateWriteDataAck     EngineState = 0x42
	StateWriteDataTimeout EngineState = 0x44
	StateWriteEndNoStop   EngineState = 0x45
	StateReadData         EngineState = 0x50
	StateReadDataRecv     EngineState = 0x51
	StateReadDataTimeout  EngineState = 0x52
	StateReadDataAck      EngineState = 0x53
	StateReadPartial      EngineState = 0x54
	StateReadComplete     EngineState = 0x55
	StateStop             EngineState = 0x60
	StateStopWait         EngineState = 0x61
	StateStopTimeout      EngineState = 0x62
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStart, StateStartAck:
		return "start"
	case StateStartTimeout:
		return "start timeout"
	case StateRestart, StateRestartAck:
		return "restart"
	case StateRestartTimeout:
		return "restart timeout"
	case StateAddrSend, StateAddrWaitSend, StateAddrAck:
		return "sending address"
	case StateAddrTimeout, StateAddrHighTimeout:
		return "address timeout"
	case StateAddrNACKStopWait, StateAddrNACK:
		return "address not acknowledged"
	case StateWriteData, StateWriteDataWait, StateWriteDataAck:
		return "writing data"
	case StateWriteDataTimeout:
		return "write timeout"
	case StateWriteEndNoStop:
		return "write ended without stop"
	case StateReadData, StateReadDataRecv, StateReadDataAck:
		return "reading data"
	case StateReadDataTimeout:
		return "read timeout"
	case StateReadPartial:
		return "read data buffered"
	case StateReadComplete:
		return "read complete"
	case StateStop, StateStopWait:
		return "stop"
	case StateStopTimeout:
		return "stop timeout"
	default:
		return fmt.Sprintf("unknown(%#02x)", byte(s))
	}
}

// Busy reports whether the engine is still moving bytes on the bus and the
// host should keep waiting.
func (s EngineState) Busy() bool {
	switch s {
	case StateStart, StateStartAck, StateRestart, StateRestartAck,
		StateAddrSend, StateAddrWaitSend, StateAddrAck,
		StateWriteData, StateWriteDataWait, StateWriteDataAck,
		StateStop, StateStopWait:
		return true
	}
	return false
}

// Filling reports whether a read is in progress and the engine buffer does
// not yet hold data for the host.
func (s EngineState) Filling() bool {
	switch s {
	case StateReadData, StateReadDataRecv, StateReadDataAck,
		StateStart, StateStartAck, StateRestart, StateRestartAck,
		StateAddrSend, StateAddrWaitSend, StateAddrAck:
		return true
	}
	return false
}

// TimedOut reports whether the engine gave up on a bus phase.
func (s EngineState) TimedOut() bool {
	switch s {
	case StateStartTimeout, StateRestartTimeout, StateAddrTimeout, StateAddrHighTimeout,
		StateWriteDataTimeout, StateReadDataTimeout, StateStopTimeout:
		return true
	}
	return false
}

// NACK reports whether the addressed target did not acknowledge.
func (s EngineState) NACK() bool {
	return s == StateAddrNACK || s == StateAddrNACKStopWait
}

// I2CStatus is the decoded I2C part of a status response.
type I2CStatus struct {
	RequestedLength   uint16      `yaml:"requested_length"`
	TransferredLength uint16      `yaml:"transferred_length"`
	BufferCounter     byte        `yaml:"buffer_counter"`
	SpeedDivider      byte        `yaml:"speed_divider"`
	Timeout           byte        `yaml:"timeout"`
	Address           uint16      `yaml:"address"`
	ACK               bool        `yaml:"ack"`
	State             EngineState `yaml:"state"`
	SCL               bool        `yaml:"scl"`
	SDA               bool        `yaml:"sda"`
	ReadPending       byte        `yaml:"read_pending"`
	// Confused is set when undocumented byte 18 is non-zero. The engine sets it
	// after observing SDA activity while idle, i.e. somebody else drove the
	// bus. Byte 18 is also non-zero right after a NoStop write, which is
	// legitimate, so that state is excluded. Observed on MCP2221A rev A.6
	// firmware 1.2; other revisions are untested.
	Confused bool `yaml:"confused"`
	// Initialized is set when undocumented byte 21 is non-zero. It stays zero
	// until the engine performs its first transfer after a hard reset. A
	// cancel issued on a never-used engine wedges it until the next reset.
	Initialized bool `yaml:"initialized"`
}

// Idle reports whether the engine is idle with both bus lines released.
func (s I2CStatus) Idle() bool {
	return s.State == StateIdle && s.SCL && s.SDA
}

// Status response layout (OpStatus).
const (
	statusCancel      = 2
	statusSpeedChange = 3
	statusNewDivider  = 4
	statusState       = 8
	statusReqLen      = 9
	statusTxLen       = 11
	statusBufCounter  = 13
	statusDivider     = 14
	statusTimeout     = 15
	statusAddr        = 16
	statusConfused    = 18 // undocumented
	statusACK         = 20
	statusInitialized = 21 // undocumented
	statusSCL         = 22
	statusSDA         = 23
	statusInterrupt   = 24
	statusReadPending = 25
	statusHWRev       = 46
	statusFWRev       = 48
	statusADC         = 50

	ackNotReceived = 0x40 // bit 6 of byte 20
)

// Set-parameters request layout (OpStatus).
const (
	CancelTransfer   byte = 0x10 // byte 2
	SetSpeed         byte = 0x20 // byte 3
	SpeedAccepted    byte = 0x20 // response byte 3
	SpeedNotAccepted byte = 0x21 // response byte 3, transfer in progress
	CancelMarked     byte = 0x10 // response byte 2
	CancelIdle       byte = 0x11 // response byte 2, nothing to cancel
)

// Status is the full decoded status response.
type Status struct {
	I2C              I2CStatus `yaml:"i2c"`
	CancelResult     byte      `yaml:"cancel_result"`
	SpeedResult      byte      `yaml:"speed_result"`
	Interrupt        bool      `yaml:"interrupt"`
	HardwareRevision string    `yaml:"hardware_revision"`
	FirmwareRevision string    `yaml:"firmware_revision"`
	ADC              [3]uint16 `yaml:"adc"`
}

// DecodeI2CStatus extracts the I2C engine snapshot from a status response.
func DecodeI2CStatus(f Frame) I2CStatus {
	st := I2CStatus{
		RequestedLength:   binary.LittleEndian.Uint16(f[statusReqLen : statusReqLen+2]),
		TransferredLength: binary.LittleEndian.Uint16(f[statusTxLen : statusTxLen+2]),
		BufferCounter:     f[statusBufCounter],
		SpeedDivider:      f[statusDivider],
		Timeout:           f[statusTimeout],
		Address:           binary.LittleEndian.Uint16(f[statusAddr : statusAddr+2]),
		ACK:               f[statusACK]&ackNotReceived == 0,
		State:             EngineState(f[statusState]),
		SCL:               f[statusSCL] != 0,
		SDA:               f[statusSDA] != 0,
		ReadPending:       f[statusReadPending],
		Initialized:       f[statusInitialized] != 0,
	}
	st.Confused = f[statusConfused] != 0 && st.State != StateWriteEndNoStop
	return st
}

// DecodeStatus decodes a complete status response.
func DecodeStatus(f Frame) Status {
	s := Status{
		I2C:              DecodeI2CStatus(f),
		CancelResult:     f[statusCancel],
		SpeedResult:      f[statusSpeedChange],
		Interrupt:        f[statusInterrupt] != 0,
		HardwareRevision: revision(f[statusHWRev], f[statusHWRev+1]),
		FirmwareRevision: revision(f[statusFWRev], f[statusFWRev+1]),
	}
	for i := range s.ADC {
		off := statusADC + 2*i
		s.ADC[i] = binary.LittleEndian.Uint16(f[off : off+2])
	}
	return s
}

func revision(major, minor byte) string {
	if major == 0 && minor == 0 {
		return ""
	}
	return fmt.Sprintf("%c.%c", major, minor)
}

// EncodeStatus builds a plain status poll.
func EncodeStatus() Frame {
	return NewFrame(OpStatus)
}

// EncodeCancel builds a status request that also cancels the current transfer.
func EncodeCancel() Frame {
	f := NewFrame(OpStatus)
	f[statusCancel] = CancelTransfer
	return f
}

// EncodeSetSpeed builds a status request that loads a new speed divider.
func EncodeSetSpeed(divider byte) Frame {
	f := NewFrame(OpStatus)
	f[statusSpeedChange] = SetSpeed
	f[statusNewDivider] = divider
	return f
}

// MarshalYAML renders the state with its name for human output.
func (s EngineState) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%#02x (%s)", byte(s), s), nil
}
