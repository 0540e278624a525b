package adapter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/mklimuk/mcp2221/codec"
	"github.com/mklimuk/mcp2221/transport"
)

// fakeEngine scripts the chip's I2C engine well enough to drive the state
// machine: targets echo the last payload written to them, missing targets
// NACK, lines held low time out every request.
type fakeEngine struct {
	mx sync.Mutex

	state       codec.EngineState
	scl, sda    bool
	initialized bool
	confused    byte
	divider     byte

	targets map[byte][]byte

	// write in progress
	wlen  int
	waddr byte
	wbuf  []byte
	wop   codec.Opcode
	wdone int

	// read in progress
	rbuf      []byte
	fillPolls int

	// knobs
	busyChunks  int
	refuseSpeed int
	emptyPolls  int
	// stuck engines ignore cancel
	stuck bool
	// one-shot unknown states reported for the next write chunk or read fetch
	chunkState codec.EngineState
	dataState  codec.EngineState
	// onWrite may fail a request before the engine sees it
	onWrite func(req codec.Frame) error

	ops     []codec.Frame
	cancels int
	closed  bool

	res     codec.Frame
	pending bool

	gpio   codec.GPIOValues
	sram   codec.Frame
	sets   []codec.Frame
	flash  map[codec.FlashSection]codec.Frame
	resets int

	// flash protection, empty means unprotected
	password string
	unlocked bool
}

func newFakeEngine(targets ...byte) *fakeEngine {
	f := &fakeEngine{
		scl:     true,
		sda:     true,
		divider: 118,
		targets: make(map[byte][]byte),
		sram:    codec.NewFrame(codec.OpSRAMGet),
		flash:   make(map[codec.FlashSection]codec.Frame),
	}
	for _, t := range targets {
		f.targets[t] = nil
	}
	return f
}

var errNoResponse = errors.New("no response pending")

func (f *fakeEngine) Write(b []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	var req codec.Frame
	copy(req[:], b)
	if f.onWrite != nil {
		if err := f.onWrite(req); err != nil {
			return 0, err
		}
	}
	f.ops = append(f.ops, req)
	res := codec.NewFrame(req.Opcode())
	f.pending = true
	switch op := req.Opcode(); op {
	case codec.OpStatus:
		f.status(req, &res)
	case codec.OpI2CWrite, codec.OpI2CWriteRestart, codec.OpI2CWriteNoStop:
		f.write(req, &res)
	case codec.OpI2CRead, codec.OpI2CReadRestart:
		f.readRequest(req, &res)
	case codec.OpI2CReadData:
		f.readData(&res)
	case codec.OpGPIOGet:
		for i, p := range f.gpio {
			if p.Mode == codec.GPIOModeNoOperation {
				res[2+2*i], res[3+2*i] = 0xEE, 0xEE
				continue
			}
			res[2+2*i] = p.Value
			res[3+2*i] = byte(p.Mode) >> 3
		}
	case codec.OpGPIOSet:
		for i := range f.gpio {
			off := 2 + 4*i
			if req[off] == 0xFF {
				f.gpio[i].Value = req[off+1]
			}
			if req[off+2] == 0xFF {
				f.gpio[i].Mode = codec.GPIOMode(req[off+3] << 3)
			}
		}
	case codec.OpSRAMGet:
		res = f.sram
	case codec.OpSRAMSet:
		f.sets = append(f.sets, req)
	case codec.OpFlashRead:
		if stored, ok := f.flash[codec.FlashSection(req[1])]; ok {
			res = stored
		} else {
			res[1] = 0x01
		}
		res[0] = byte(codec.OpFlashRead)
	case codec.OpFlashPassword:
		var want [codec.MaxPassword]byte
		copy(want[:], f.password)
		if f.password == "" || !bytes.Equal(want[:], req[2:2+codec.MaxPassword]) {
			res[1] = codec.ResultNotAllowed
			break
		}
		f.unlocked = true
	case codec.OpFlashWrite:
		if f.password != "" && !f.unlocked {
			res[1] = codec.ResultNotAllowed
			break
		}
		stored := req
		stored[0] = byte(codec.OpFlashRead)
		stored[1] = 0
		f.flash[codec.FlashSection(req[1])] = stored
	case codec.OpReset:
		f.resets++
		f.pending = false
	}
	f.res = res
	return len(b), nil
}

func (f *fakeEngine) Read(b []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if !f.pending {
		return 0, errNoResponse
	}
	f.pending = false
	return copy(b, f.res[:]), nil
}

func (f *fakeEngine) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) status(req codec.Frame, res *codec.Frame) {
	if req[2] == codec.CancelTransfer {
		f.cancels++
		res[2] = codec.CancelMarked
		if f.initialized && !f.stuck {
			f.state = codec.StateIdle
			f.confused = 0
			f.wbuf, f.rbuf = nil, nil
		}
	}
	if req[3] == codec.SetSpeed {
		if f.refuseSpeed > 0 || f.state != codec.StateIdle {
			if f.refuseSpeed > 0 {
				f.refuseSpeed--
			}
			res[3] = codec.SpeedNotAccepted
		} else {
			f.divider = req[4]
			res[3] = codec.SpeedAccepted
		}
	}
	res[8] = byte(f.state)
	binary.LittleEndian.PutUint16(res[9:11], uint16(f.wlen))
	binary.LittleEndian.PutUint16(res[11:13], uint16(f.wdone))
	res[14] = f.divider
	res[18] = f.confused
	if f.initialized {
		res[21] = 1
	}
	if f.scl {
		res[22] = 1
	}
	if f.sda {
		res[23] = 1
	}
}

func (f *fakeEngine) refuse(res *codec.Frame, st codec.EngineState) {
	res[1] = codec.ResultBusy
	res[2] = byte(st)
}

func (f *fakeEngine) linesLow(res *codec.Frame) bool {
	if f.scl && f.sda {
		return false
	}
	f.state = codec.StateStartTimeout
	f.refuse(res, f.state)
	return true
}

func (f *fakeEngine) write(req codec.Frame, res *codec.Frame) {
	f.initialized = true
	op := req.Opcode()
	if f.linesLow(res) {
		return
	}
	if f.state == codec.StateWriteEndNoStop && op != codec.OpI2CWriteRestart {
		f.refuse(res, f.state)
		return
	}
	if f.state.NACK() {
		f.refuse(res, f.state)
		return
	}
	if f.chunkState != 0 {
		f.refuse(res, f.chunkState)
		f.chunkState = 0
		return
	}
	if f.busyChunks > 0 {
		f.busyChunks--
		f.refuse(res, codec.StateWriteDataWait)
		return
	}
	if f.wbuf == nil {
		f.wlen = int(binary.LittleEndian.Uint16(req[1:3]))
		f.waddr = req[3] >> 1
		f.wop = op
		f.wbuf = make([]byte, 0, f.wlen)
		f.wdone = 0
		f.confused = 0
		if _, ok := f.targets[f.waddr]; !ok {
			f.state = codec.StateAddrNACK
			f.wbuf = nil
			return
		}
	}
	n := min(codec.ChunkSize, f.wlen-len(f.wbuf))
	f.wbuf = append(f.wbuf, req[4:4+n]...)
	f.wdone = len(f.wbuf)
	if len(f.wbuf) < f.wlen {
		f.state = codec.StateWriteDataWait
		return
	}
	f.targets[f.waddr] = f.wbuf
	f.wbuf = nil
	if f.wop == codec.OpI2CWriteNoStop {
		f.state = codec.StateWriteEndNoStop
		// the chip leaves byte 18 set after a write without STOP
		f.confused = 0x01
		return
	}
	f.state = codec.StateIdle
}

func (f *fakeEngine) readRequest(req codec.Frame, res *codec.Frame) {
	f.initialized = true
	op := req.Opcode()
	if f.linesLow(res) {
		return
	}
	if f.state == codec.StateWriteEndNoStop && op != codec.OpI2CReadRestart {
		f.refuse(res, f.state)
		return
	}
	f.confused = 0
	size := int(binary.LittleEndian.Uint16(req[1:3]))
	addr := req[3] >> 1
	mem, ok := f.targets[addr]
	if !ok {
		f.state = codec.StateAddrNACK
		return
	}
	f.rbuf = make([]byte, size)
	if len(mem) > 0 {
		for i := range f.rbuf {
			f.rbuf[i] = mem[i%len(mem)]
		}
	}
	f.fillPolls = f.emptyPolls
	f.state = codec.StateReadData
}

func (f *fakeEngine) readData(res *codec.Frame) {
	res[3] = 0x7F
	switch {
	case f.state.NACK():
		res[1] = codec.ResultReadError
		res[2] = byte(f.state)
	case f.dataState != 0:
		res[1] = codec.ResultReadError
		res[2] = byte(f.dataState)
		f.dataState = 0
	case f.fillPolls > 0:
		f.fillPolls--
		res[1] = codec.ResultReadError
		res[2] = byte(codec.StateReadData)
	case len(f.rbuf) == 0:
		res[1] = codec.ResultReadError
		res[2] = byte(f.state)
	default:
		n := min(codec.ChunkSize, len(f.rbuf))
		copy(res[4:], f.rbuf[:n])
		f.rbuf = f.rbuf[n:]
		res[3] = byte(n)
		if len(f.rbuf) > 0 {
			res[2] = byte(codec.StateReadPartial)
			return
		}
		res[2] = byte(codec.StateReadComplete)
		f.state = codec.StateIdle
	}
}

// count returns how many frames with op were sent.
func (f *fakeEngine) count(op codec.Opcode) int {
	f.mx.Lock()
	defer f.mx.Unlock()
	n := 0
	for _, r := range f.ops {
		if r.Opcode() == op {
			n++
		}
	}
	return n
}

func (f *fakeEngine) reset() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.ops = nil
	f.cancels = 0
}

// fakeOpener hands out fake engines by path.
type fakeOpener struct {
	mx      sync.Mutex
	infos   []transport.DeviceInfo
	engines map[string]*fakeEngine
	opened  int
	hidden  int
}

func newFakeOpener(infos ...transport.DeviceInfo) *fakeOpener {
	o := &fakeOpener{engines: make(map[string]*fakeEngine)}
	for _, info := range infos {
		if info.VendorID == 0 {
			info.VendorID, info.ProductID = VendorID, ProductID
		}
		o.infos = append(o.infos, info)
		o.engines[info.Path] = newFakeEngine(0x50)
	}
	return o
}

func (o *fakeOpener) Enumerate(vid, pid uint16) ([]transport.DeviceInfo, error) {
	o.mx.Lock()
	defer o.mx.Unlock()
	if o.hidden > 0 {
		o.hidden--
		return nil, nil
	}
	var out []transport.DeviceInfo
	for _, info := range o.infos {
		if info.VendorID == vid && info.ProductID == pid {
			out = append(out, info)
		}
	}
	return out, nil
}

func (o *fakeOpener) Open(info transport.DeviceInfo) (transport.Device, error) {
	o.mx.Lock()
	defer o.mx.Unlock()
	e, ok := o.engines[info.Path]
	if !ok {
		return nil, transport.ErrDeviceNotFound
	}
	o.opened++
	e.closed = false
	return e, nil
}
