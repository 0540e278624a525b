// Package adapter drives the MCP2221 USB to I2C/GPIO bridge: the I2C transfer
// state machine, bus health checks and recovery, and the chip's GPIO, analog,
// SRAM and flash commands.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/mcp2221"
	"github.com/mklimuk/mcp2221/codec"
	"github.com/mklimuk/mcp2221/transport"
)

const (
	VendorID  = transport.VendorID
	ProductID = transport.ProductID
)

// Defaults. DefaultWatchdog is about twice the time one 60-byte chunk takes
// at the slowest speed the divider allows.
const (
	DefaultWatchdog       = 20 * time.Millisecond
	DefaultRetries        = transport.DefaultRetries
	DefaultCancelAttempts = 3
	DefaultRecoveryDelay  = 10 * time.Millisecond
	DefaultSpeed          = 100_000
)

var _ mcp2221.Transactor = &MCP2221{}

type Opts struct {
	Retries        int
	ResponseWait   time.Duration
	Watchdog       time.Duration
	CancelAttempts int
	RecoveryDelay  time.Duration
	// Speed is applied when the device is opened by identity. Zero keeps the
	// speed the chip runs at.
	Speed uint32
}

type Opt func(*Opts)

func WithRetries(n int) Opt {
	return func(o *Opts) {
		o.Retries = n
	}
}

func WithResponseWait(d time.Duration) Opt {
	return func(o *Opts) {
		o.ResponseWait = d
	}
}

func WithWatchdog(d time.Duration) Opt {
	return func(o *Opts) {
		if d > 0 {
			o.Watchdog = d
		}
	}
}

func WithCancelAttempts(n int) Opt {
	return func(o *Opts) {
		if n > 0 {
			o.CancelAttempts = n
		}
	}
}

func WithRecoveryDelay(d time.Duration) Opt {
	return func(o *Opts) {
		o.RecoveryDelay = d
	}
}

func WithSpeed(hz uint32) Opt {
	return func(o *Opts) {
		o.Speed = hz
	}
}

func defaultOpts(opts []Opt) Opts {
	o := Opts{
		Retries:        DefaultRetries,
		Watchdog:       DefaultWatchdog,
		CancelAttempts: DefaultCancelAttempts,
		RecoveryDelay:  DefaultRecoveryDelay,
		Speed:          DefaultSpeed,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Opts) transportOpts() []transport.Opt {
	return []transport.Opt{transport.WithRetries(o.Retries), transport.WithResponseWait(o.ResponseWait)}
}

// Identity selects one attached chip. Zero IDs mean the Microchip defaults;
// Path is only used when the chip has no serial number.
type Identity struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Serial    string `yaml:"serial,omitempty"`
	Path      string `yaml:"path,omitempty"`
}

func (id Identity) withDefaults() Identity {
	if id.VendorID == 0 {
		id.VendorID = VendorID
	}
	if id.ProductID == 0 {
		id.ProductID = ProductID
	}
	return id
}

func (id Identity) String() string {
	switch {
	case id.Serial != "":
		return fmt.Sprintf("%04x:%04x/%s", id.VendorID, id.ProductID, id.Serial)
	case id.Path != "":
		return fmt.Sprintf("%04x:%04x@%s", id.VendorID, id.ProductID, id.Path)
	}
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

// MCP2221 is one open bridge. All methods are safe for concurrent use; every
// public call holds the device lock for its whole frame sequence.
type MCP2221 struct {
	mx      sync.Mutex
	tr      *transport.Transport
	opts    Opts
	opener  transport.Opener
	info    transport.DeviceInfo
	session session
}

// New wraps an already open HID device. No frame is exchanged.
func New(dev transport.Device, opts ...Opt) *MCP2221 {
	o := defaultOpts(opts)
	return &MCP2221{
		tr:   transport.New(dev, o.transportOpts()...),
		opts: o,
	}
}

// Open finds the chip matching id, opens it and applies the configured speed.
func Open(ctx context.Context, opener transport.Opener, id Identity, opts ...Opt) (*MCP2221, error) {
	info, err := find(opener, id)
	if err != nil {
		return nil, err
	}
	dev, err := opener.Open(info)
	if err != nil {
		return nil, err
	}
	d := New(dev, opts...)
	d.opener = opener
	d.info = info
	if d.opts.Speed != 0 {
		if err := d.SetSpeed(ctx, d.opts.Speed); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("could not set initial speed: %w", err)
		}
	}
	slog.Debug("mcp2221 opened", "path", info.Path, "serial", info.Serial, "release", info.Release)
	return d, nil
}

func find(opener transport.Opener, id Identity) (transport.DeviceInfo, error) {
	id = id.withDefaults()
	if id.Serial == "" && id.Path != "" {
		infos, err := opener.Enumerate(id.VendorID, id.ProductID)
		if err != nil {
			return transport.DeviceInfo{}, err
		}
		for _, info := range infos {
			if info.Path == id.Path {
				return info, nil
			}
		}
		return transport.DeviceInfo{}, fmt.Errorf("%w: %s", transport.ErrDeviceNotFound, id)
	}
	return transport.Find(opener, id.VendorID, id.ProductID, id.Serial)
}

// Info describes the USB device, empty when built with New.
func (d *MCP2221) Info() transport.DeviceInfo {
	return d.info
}

func (d *MCP2221) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.tr.Close()
}

func (d *MCP2221) exchange(ctx context.Context, f codec.Frame) (codec.Frame, error) {
	return d.tr.Exchange(ctx, f)
}

// command exchanges a configuration frame and maps a non-OK result to
// ErrCommandFailed.
func (d *MCP2221) command(ctx context.Context, what string, f codec.Frame) (codec.Frame, error) {
	res, err := d.exchange(ctx, f)
	if err != nil {
		return res, fmt.Errorf("%s: %w", what, err)
	}
	if !res.OK() {
		return res, fmt.Errorf("%s: %w (result %#02x)", what, ErrCommandFailed, res.Result())
	}
	return res, nil
}
