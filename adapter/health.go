package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/mcp2221/codec"
)

// Health polls the engine. Confused and Initialized are always read fresh
// from the chip.
func (d *MCP2221) Health(ctx context.Context) (codec.I2CStatus, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.poll(ctx)
}

// Status returns the complete status report, including ADC readings and
// revisions.
func (d *MCP2221) Status(ctx context.Context) (codec.Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	res, err := d.exchange(ctx, codec.EncodeStatus())
	if err != nil {
		return codec.Status{}, fmt.Errorf("status request failed: %w", err)
	}
	return codec.DecodeStatus(res), nil
}

// Recover cancels whatever the engine is doing and checks that the bus lines
// are released.
func (d *MCP2221) Recover(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.recover(ctx)
}

// Release frees the bus after a failed or abandoned transfer.
func (d *MCP2221) Release(ctx context.Context) error {
	return d.Recover(ctx)
}

func (d *MCP2221) poll(ctx context.Context) (codec.I2CStatus, error) {
	res, err := d.exchange(ctx, codec.EncodeStatus())
	if err != nil {
		return codec.I2CStatus{}, fmt.Errorf("status request failed: %w", err)
	}
	return codec.DecodeI2CStatus(res), nil
}

// prepare runs recovery before a transfer when the previous one left the bus
// dirty or the engine saw foreign activity on it.
func (d *MCP2221) prepare(ctx context.Context) error {
	if d.session.dirty {
		slog.Debug("bus marked dirty, recovering before transfer")
		return d.recover(ctx)
	}
	st, err := d.poll(ctx)
	if err != nil {
		return err
	}
	if st.Confused {
		slog.Debug("i2c engine confused, recovering before transfer", "state", st.State)
		return d.recover(ctx)
	}
	return nil
}

// recover brings the engine back to idle. Cancel is only sent to an engine
// that has run a transfer since its last hard reset; cancelling a fresh
// engine wedges it until the next reset.
func (d *MCP2221) recover(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	st, err := d.poll(ctx)
	if err != nil {
		d.session.dirty = true
		return err
	}
	if st.Initialized {
		for i := 0; i < d.opts.CancelAttempts; i++ {
			if _, err := d.exchange(ctx, codec.EncodeCancel()); err != nil {
				d.session.dirty = true
				return fmt.Errorf("cancel request failed: %w", err)
			}
			time.Sleep(d.opts.RecoveryDelay)
			st, err = d.poll(ctx)
			if err != nil {
				d.session.dirty = true
				return err
			}
			if st.Idle() && !st.Confused {
				break
			}
			slog.Debug("i2c engine still busy after cancel", "attempt", i+1, "state", st.State, "scl", st.SCL, "sda", st.SDA)
		}
	} else {
		slog.Debug("i2c engine not initialized, skipping cancel")
	}
	st, err = d.poll(ctx)
	if err != nil {
		d.session.dirty = true
		return err
	}
	switch {
	case st.Idle():
		d.session.dirty = false
		return nil
	case !st.SCL:
		d.session.dirty = true
		return ErrSCLHeld
	case !st.SDA:
		d.session.dirty = true
		return ErrSDAHeld
	default:
		d.session.dirty = true
		return fmt.Errorf("%w: engine state %#02x (%s)", ErrRecoveryFailed, byte(st.State), st.State)
	}
}

// fail recovers the bus after a failed transfer and returns the error the
// caller should see. A recovery failure outranks the original error.
func (d *MCP2221) fail(ctx context.Context, err error) error {
	if IsFatal(err) {
		d.session.dirty = true
		return err
	}
	if rerr := d.recover(ctx); rerr != nil {
		return fmt.Errorf("%w (recovering from: %v)", rerr, err)
	}
	return err
}

// ReadADC returns the three ADC channels (GP1..GP3) from the status report.
// Channels not designated as ADC inputs read as noise.
func (d *MCP2221) ReadADC(ctx context.Context) ([3]uint16, error) {
	st, err := d.Status(ctx)
	if err != nil {
		return [3]uint16{}, err
	}
	return st.ADC, nil
}
