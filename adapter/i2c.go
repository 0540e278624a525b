package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/mcp2221"
	"github.com/mklimuk/mcp2221/codec"
)

// Write sends data to address with the given framing. A zero timeout uses the
// configured watchdog, which restarts whenever the engine makes progress.
func (d *MCP2221) Write(ctx context.Context, address byte, data []byte, kind codec.TransferKind, timeout time.Duration) error {
	if err := validate(address, len(data)); err != nil {
		return err
	}
	op, err := kind.WriteOpcode()
	if err != nil {
		return invalid("%v", err)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, op, address, data, kind, d.watchdog(timeout))
}

// Read reads size bytes from address. kind must be Regular or Restart.
func (d *MCP2221) Read(ctx context.Context, address byte, size int, kind codec.TransferKind, timeout time.Duration) ([]byte, error) {
	if err := validate(address, size); err != nil {
		return nil, err
	}
	op, err := kind.ReadOpcode()
	if err != nil {
		return nil, invalid("%v", err)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, op, address, size, d.watchdog(timeout))
}

// SetSpeed sets the bus clock. The chip refuses while a transfer is in
// progress; the driver then recovers the bus and tries once more.
func (d *MCP2221) SetSpeed(ctx context.Context, hz uint32) error {
	div, err := codec.SpeedDivider(hz)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	var st codec.Status
	for attempt := 0; attempt < 2; attempt++ {
		res, err := d.exchange(ctx, codec.EncodeSetSpeed(div))
		if err != nil {
			return fmt.Errorf("speed request failed: %w", err)
		}
		st = codec.DecodeStatus(res)
		if st.SpeedResult == codec.SpeedAccepted {
			d.session.speed = hz
			d.session.divider = div
			return nil
		}
		if attempt == 0 {
			slog.Debug("speed change refused, recovering bus", "state", st.I2C.State)
			if err := d.recover(ctx); err != nil {
				return err
			}
		}
	}
	return &EngineError{Op: "set speed", Code: st.I2C.State, Err: mcp2221.ErrBusBusy}
}

// WriteToAddr writes buffer with a regular transfer.
func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := d.Write(ctx, address, buffer, codec.Regular, 0)
	if err != nil {
		return fmt.Errorf("bus write to %#02x failed: %w", address, err)
	}
	return nil
}

// ReadFromAddr fills buffer with a regular transfer.
func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	data, err := d.Read(ctx, address, len(buffer), codec.Regular, 0)
	if err != nil {
		return fmt.Errorf("bus read from %#02x failed: %w", address, err)
	}
	copy(buffer, data)
	return nil
}

// ReadRegister writes reg without STOP and reads size bytes after a repeated
// START, holding the device for both.
func (d *MCP2221) ReadRegister(ctx context.Context, address byte, reg []byte, size int) ([]byte, error) {
	if err := validate(address, len(reg)); err != nil {
		return nil, err
	}
	if err := validate(address, size); err != nil {
		return nil, err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.write(ctx, codec.OpI2CWriteNoStop, address, reg, codec.NoStop, d.opts.Watchdog); err != nil {
		return nil, err
	}
	return d.read(ctx, codec.OpI2CReadRestart, address, size, d.opts.Watchdog)
}

// Scan probes every address in [start, stop] with a one byte read and returns
// those that answered.
func (d *MCP2221) Scan(ctx context.Context, start, stop byte) ([]byte, error) {
	if start > stop || stop > codec.MaxAddress {
		return nil, invalid("scan range %#02x-%#02x", start, stop)
	}
	var found []byte
	for a := int(start); a <= int(stop); a++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		_, err := d.Read(ctx, byte(a), 1, codec.Regular, 0)
		switch {
		case err == nil:
			found = append(found, byte(a))
		case IsExpected(err):
			slog.Debug("no answer", "address", fmt.Sprintf("%#02x", a), "error", err)
		default:
			return found, fmt.Errorf("scan stopped at %#02x: %w", a, err)
		}
	}
	return found, nil
}

func validate(address byte, size int) error {
	if address > codec.MaxAddress {
		return invalid("address %#02x is not a 7-bit address", address)
	}
	if size < 1 || size > codec.MaxTransfer {
		return invalid("transfer size %d out of range 1-%d", size, codec.MaxTransfer)
	}
	return nil
}

func (d *MCP2221) watchdog(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return d.opts.Watchdog
	}
	return timeout
}

func (d *MCP2221) write(ctx context.Context, op codec.Opcode, address byte, data []byte, kind codec.TransferKind, timeout time.Duration) error {
	if err := d.prepare(ctx); err != nil {
		return err
	}
	if err := d.sendChunks(ctx, op, address, data, timeout); err != nil {
		return d.fail(ctx, err)
	}
	if err := d.awaitWrite(ctx, kind, timeout); err != nil {
		return d.fail(ctx, err)
	}
	return nil
}

// sendChunks pushes data to the engine one chunk at a time. Every chunk
// carries the total transfer length. A chunk refused while the engine is
// still busy is sent again until the watchdog elapses.
func (d *MCP2221) sendChunks(ctx context.Context, op codec.Opcode, address byte, data []byte, timeout time.Duration) error {
	total := uint16(len(data))
	for off := 0; off < len(data); off += codec.ChunkSize {
		end := min(off+codec.ChunkSize, len(data))
		f := codec.EncodeWrite(op, total, address, data[off:end])
		deadline := time.Now().Add(timeout)
		for {
			res, err := d.exchange(ctx, f)
			if err != nil {
				return err
			}
			if res.OK() {
				break
			}
			st := codec.WriteState(res)
			if !st.Busy() {
				return classify(fmt.Sprintf("write to %#02x", address), st)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("write to %#02x: %w at offset %d (state %s)", address, ErrTimeout, off, st)
			}
		}
	}
	return nil
}

// awaitWrite polls the status until the engine finished the write. The
// watchdog restarts whenever the transferred byte count grows.
func (d *MCP2221) awaitWrite(ctx context.Context, kind codec.TransferKind, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var transferred uint16
	for {
		st, err := d.poll(ctx)
		if err != nil {
			return err
		}
		switch {
		case st.State == codec.StateIdle:
			return nil
		case st.State == codec.StateWriteEndNoStop && kind == codec.NoStop:
			return nil
		case st.State.Busy():
			if st.TransferredLength != transferred {
				transferred = st.TransferredLength
				deadline = time.Now().Add(timeout)
			}
		default:
			return classify("write", st.State)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("write: %w waiting for completion (state %s)", ErrTimeout, st.State)
		}
	}
}

func (d *MCP2221) read(ctx context.Context, op codec.Opcode, address byte, size int, timeout time.Duration) ([]byte, error) {
	if err := d.prepare(ctx); err != nil {
		return nil, err
	}
	data, err := d.fetch(ctx, op, address, size, timeout)
	if err != nil {
		return nil, d.fail(ctx, err)
	}
	return data, nil
}

// fetch issues the read request and collects the buffered chunks. The
// watchdog restarts only when new data arrives.
func (d *MCP2221) fetch(ctx context.Context, op codec.Opcode, address byte, size int, timeout time.Duration) ([]byte, error) {
	name := fmt.Sprintf("read from %#02x", address)
	res, err := d.exchange(ctx, codec.EncodeRead(op, uint16(size), address))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, classify(name, codec.WriteState(res))
	}
	out := make([]byte, 0, size)
	deadline := time.Now().Add(timeout)
	for {
		res, err := d.exchange(ctx, codec.EncodeReadData())
		if err != nil {
			return nil, err
		}
		c := codec.DecodeReadData(res)
		switch {
		case c.State.NACK(), c.State.TimedOut(), c.State == codec.StateWriteEndNoStop:
			return nil, classify(name, c.State)
		case c.Result == codec.ResultOK && c.Valid && len(c.Data) > 0:
			out = append(out, c.Data...)
			deadline = time.Now().Add(timeout)
			if len(out) >= size {
				return out[:size], nil
			}
		case c.State.Filling(), c.State.Busy(), c.State == codec.StateIdle,
			c.State == codec.StateReadPartial, c.State == codec.StateReadComplete:
			// still filling
		default:
			return nil, classify(name, c.State)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w after %d of %d bytes (state %s)", name, ErrTimeout, len(out), size, c.State)
		}
	}
}
