package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/mklimuk/mcp2221/adapter"
)

// BridgePrefix starts the i2creg name of every registered bridge.
const BridgePrefix = "MCP2221-"

// RegisterBridges registers every attached bridge in i2creg as
// MCP2221-<serial> with the alias mcp2221-<index>. Opening a registered bus
// acquires a shared connection from reg; closing the bus releases it.
// Bridges registered by an earlier call are skipped. It returns the names
// registered by this call.
func RegisterBridges(reg *adapter.Registry, opts ...adapter.Opt) ([]string, error) {
	infos, err := reg.Attached(0, 0)
	if err != nil {
		return nil, fmt.Errorf("could not list bridges: %w", err)
	}
	known := make(map[string]bool)
	for _, ref := range i2creg.All() {
		known[ref.Name] = true
	}
	var names []string
	for i, info := range infos {
		id := adapter.Identity{VendorID: info.VendorID, ProductID: info.ProductID, Serial: info.Serial}
		name := BridgePrefix + sanitize(info.Serial)
		if info.Serial == "" {
			id.Path = info.Path
			name = fmt.Sprintf("%susb%d", BridgePrefix, i)
		}
		if known[name] {
			continue
		}
		alias := fmt.Sprintf("mcp2221-%d", i)
		if err := i2creg.Register(name, []string{alias}, -1, opener(reg, id, name, opts)); err != nil {
			return names, fmt.Errorf("could not register %s: %w", name, err)
		}
		slog.Debug("bridge registered", "name", name, "alias", alias, "path", info.Path)
		names = append(names, name)
	}
	return names, nil
}

// UnregisterBridges removes buses added by RegisterBridges.
func UnregisterBridges(names []string) error {
	for _, name := range names {
		if err := i2creg.Unregister(name); err != nil {
			return err
		}
	}
	return nil
}

func opener(reg *adapter.Registry, id adapter.Identity, name string, opts []adapter.Opt) i2creg.Opener {
	return func() (i2c.BusCloser, error) {
		h, err := reg.Acquire(context.Background(), id, opts...)
		if err != nil {
			return nil, err
		}
		return adapter.NewPeriphBus(h.MCP2221, name, h.Close), nil
	}
}

// sanitize drops the characters i2creg rejects in bus names.
func sanitize(serial string) string {
	return strings.ReplaceAll(serial, ":", "_")
}
