package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/mcp2221/codec"
	"github.com/mklimuk/mcp2221/transport"
)

const reopenInterval = 100 * time.Millisecond

// Reset reboots the chip and reopens it once it enumerates again, waiting at
// most timeout. Session state starts over; the configured speed is applied
// again.
func (d *MCP2221) Reset(ctx context.Context, timeout time.Duration) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.opener == nil {
		return ErrNotReopenable
	}
	if _, err := d.exchange(ctx, codec.EncodeReset()); err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	if err := d.tr.Close(); err != nil {
		slog.Debug("closing device after reset", "error", err)
	}
	d.session = session{}
	id := Identity{VendorID: d.info.VendorID, ProductID: d.info.ProductID, Serial: d.info.Serial}
	if id.Serial == "" {
		id.Path = d.info.Path
	}
	deadline := time.Now().Add(timeout)
	for {
		// the chip drops off the bus for a moment after the reset command
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reopenInterval):
		}
		info, err := find(d.opener, id)
		if err == nil {
			var dev transport.Device
			dev, err = d.opener.Open(info)
			if err == nil {
				d.tr = transport.New(dev, d.opts.transportOpts()...)
				d.info = info
				break
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("device %s did not come back after reset: %w", id, err)
		}
		slog.Debug("waiting for device after reset", "id", id, "error", err)
	}
	if d.opts.Speed == 0 {
		return nil
	}
	div, err := codec.SpeedDivider(d.opts.Speed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	res, err := d.exchange(ctx, codec.EncodeSetSpeed(div))
	if err != nil {
		return fmt.Errorf("speed request failed: %w", err)
	}
	if codec.DecodeStatus(res).SpeedResult == codec.SpeedAccepted {
		d.session.speed = d.opts.Speed
		d.session.divider = div
	}
	return nil
}
