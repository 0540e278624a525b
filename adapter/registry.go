package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/mcp2221/transport"
)

// Registry hands out shared connections so one physical chip is never driven
// through two handles with separate session state.
type Registry struct {
	mx     sync.Mutex
	opener transport.Opener
	open   map[Identity]*entry
}

type entry struct {
	dev  *MCP2221
	refs int
}

// DefaultRegistry opens chips through the system HID API.
var DefaultRegistry = NewRegistry(transport.HIDOpener{})

func NewRegistry(opener transport.Opener) *Registry {
	return &Registry{
		opener: opener,
		open:   make(map[Identity]*entry),
	}
}

// Handle is a counted reference to a shared connection.
type Handle struct {
	*MCP2221
	id   Identity
	reg  *Registry
	once sync.Once
}

// Identity is the resolved identity the handle is registered under.
func (h *Handle) Identity() Identity {
	return h.id
}

// Close releases the reference; the device is closed with the last one.
func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		err = h.reg.release(h.id)
	})
	return err
}

// Attached lists the chips currently visible on the USB bus.
func (r *Registry) Attached(vid, pid uint16) ([]transport.DeviceInfo, error) {
	id := Identity{VendorID: vid, ProductID: pid}.withDefaults()
	return r.opener.Enumerate(id.VendorID, id.ProductID)
}

// Acquire returns a handle to the chip matching id, opening it on first use.
// opts only apply when the device is opened.
func (r *Registry) Acquire(ctx context.Context, id Identity, opts ...Opt) (*Handle, error) {
	info, err := find(r.opener, id)
	if err != nil {
		return nil, err
	}
	key := Identity{VendorID: info.VendorID, ProductID: info.ProductID, Serial: info.Serial}
	if key.Serial == "" {
		key.Path = info.Path
	}
	r.mx.Lock()
	defer r.mx.Unlock()
	e, ok := r.open[key]
	if !ok {
		dev, err := Open(ctx, r.opener, key, opts...)
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w", key, err)
		}
		e = &entry{dev: dev}
		r.open[key] = e
	}
	e.refs++
	return &Handle{MCP2221: e.dev, id: key, reg: r}, nil
}

func (r *Registry) release(id Identity) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	e, ok := r.open[id]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	delete(r.open, id)
	return e.dev.Close()
}

// Refs returns the number of live handles for id.
func (r *Registry) Refs(id Identity) int {
	r.mx.Lock()
	defer r.mx.Unlock()
	if e, ok := r.open[id]; ok {
		return e.refs
	}
	return 0
}
