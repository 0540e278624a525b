package adapter

import (
	"context"
	"encoding/binary"
	"fmt"

	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/mcp2221/codec"
)

var (
	_ gobot.Adaptor = &GobotAdaptor{}
	_ i2c.Connector = &GobotAdaptor{}
	_ i2c.Connection = &gobotConnection{}
)

// GobotAdaptor lets gobot I2C drivers talk to targets behind a bridge. The
// bridge has a single bus, number 0.
type GobotAdaptor struct {
	dev   *MCP2221
	name  string
	close func() error
}

// NewGobotAdaptor wraps dev. closeFn runs on Finalize; nil closes dev.
func NewGobotAdaptor(dev *MCP2221, name string, closeFn func() error) *GobotAdaptor {
	if closeFn == nil {
		closeFn = dev.Close
	}
	return &GobotAdaptor{dev: dev, name: name, close: closeFn}
}

func (a *GobotAdaptor) Name() string {
	return a.name
}

func (a *GobotAdaptor) SetName(name string) {
	a.name = name
}

// Connect is a no-op; the bridge is open once the adaptor exists.
func (a *GobotAdaptor) Connect() error {
	return nil
}

func (a *GobotAdaptor) Finalize() error {
	return a.close()
}

func (a *GobotAdaptor) DefaultI2cBus() int {
	return 0
}

func (a *GobotAdaptor) GetI2cConnection(address int, busNr int) (i2c.Connection, error) {
	if busNr != 0 {
		return nil, invalid("bus %d, the bridge only has bus 0", busNr)
	}
	if address < 0 || address > codec.MaxAddress {
		return nil, invalid("address %#x is not a 7-bit address", address)
	}
	return &gobotConnection{dev: a.dev, addr: byte(address)}, nil
}

// gobotConnection maps the SMBus style calls of gobot drivers onto plain
// and repeated START transfers. Register reads use a write without STOP
// followed by a restart read.
type gobotConnection struct {
	dev  *MCP2221
	addr byte
}

func (c *gobotConnection) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	data, err := c.dev.Read(context.Background(), c.addr, len(b), codec.Regular, 0)
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (c *gobotConnection) Write(b []byte) (int, error) {
	if err := c.WriteBytes(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *gobotConnection) Close() error {
	return nil
}

func (c *gobotConnection) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := c.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *gobotConnection) ReadByteData(reg uint8) (uint8, error) {
	data, err := c.dev.ReadRegister(context.Background(), c.addr, []byte{reg}, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// ReadWordData reads a little-endian word, low byte first as SMBus sends it.
func (c *gobotConnection) ReadWordData(reg uint8) (uint16, error) {
	data, err := c.dev.ReadRegister(context.Background(), c.addr, []byte{reg}, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// ReadBlockData fills b starting at reg. Like an I2C block read it carries
// no count byte.
func (c *gobotConnection) ReadBlockData(reg uint8, b []byte) error {
	if len(b) == 0 {
		return invalid("empty block read")
	}
	data, err := c.dev.ReadRegister(context.Background(), c.addr, []byte{reg}, len(b))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (c *gobotConnection) WriteByte(val byte) error {
	return c.WriteBytes([]byte{val})
}

func (c *gobotConnection) WriteByteData(reg uint8, val uint8) error {
	return c.WriteBytes([]byte{reg, val})
}

func (c *gobotConnection) WriteWordData(reg uint8, val uint16) error {
	return c.WriteBytes([]byte{reg, byte(val), byte(val >> 8)})
}

func (c *gobotConnection) WriteBlockData(reg uint8, b []byte) error {
	return c.WriteBytes(append([]byte{reg}, b...))
}

func (c *gobotConnection) WriteBytes(data []byte) error {
	if err := c.dev.Write(context.Background(), c.addr, data, codec.Regular, 0); err != nil {
		return fmt.Errorf("gobot write to %#02x: %w", c.addr, err)
	}
	return nil
}
