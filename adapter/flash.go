package adapter

import (
	"context"
	"fmt"

	"github.com/mklimuk/mcp2221/codec"
)

func (d *MCP2221) readFlash(ctx context.Context, section codec.FlashSection) (codec.Frame, error) {
	res, err := d.exchange(ctx, codec.EncodeFlashRead(section))
	if err != nil {
		return res, fmt.Errorf("read flash %s: %w", section, err)
	}
	if !res.OK() {
		return res, fmt.Errorf("read flash %s: %w", section, ErrCommandUnsupported)
	}
	return res, nil
}

// writeFlash sends a flash write. A protected flash answers
// ResultNotAllowed until UnlockFlash succeeds.
func (d *MCP2221) writeFlash(ctx context.Context, what string, f codec.Frame) error {
	res, err := d.exchange(ctx, f)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	switch res.Result() {
	case codec.ResultOK:
		return nil
	case codec.ResultNotAllowed:
		return fmt.Errorf("%s: %w", what, ErrAccessDenied)
	default:
		return fmt.Errorf("%s: %w (result %#02x)", what, ErrCommandFailed, res.Result())
	}
}

// UnlockFlash sends the access password of a password protected flash. The
// chip locks itself permanently after too many wrong attempts.
func (d *MCP2221) UnlockFlash(ctx context.Context, password string) error {
	f, err := codec.EncodeAccessPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeFlash(ctx, "send flash password", f)
}

// ReadChipSettings returns the power-up chip settings stored in flash.
func (d *MCP2221) ReadChipSettings(ctx context.Context) (codec.ChipConfig, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	res, err := d.readFlash(ctx, codec.FlashChipSettings)
	if err != nil {
		return codec.ChipConfig{}, err
	}
	return codec.DecodeChipSettings(res), nil
}

// ReadGPSettings returns the power-up pin designations stored in flash.
func (d *MCP2221) ReadGPSettings(ctx context.Context) ([codec.PinCount]codec.GPSetting, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	res, err := d.readFlash(ctx, codec.FlashGPSettings)
	if err != nil {
		return [codec.PinCount]codec.GPSetting{}, err
	}
	return codec.DecodeGPSettings(res), nil
}

// WriteGPSettings stores power-up pin designations in flash. They take effect
// after the next reset.
func (d *MCP2221) WriteGPSettings(ctx context.Context, gp [codec.PinCount]codec.GPSetting) error {
	for i, s := range gp {
		if !s.ValidFor(i) {
			return invalid("designation %d is not defined for GP%d", s.Designation, i)
		}
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeFlash(ctx, "write flash gp settings", codec.EncodeFlashGPSettings(gp))
}

// ReadFlashString returns one of the USB descriptor strings or the factory
// serial number.
func (d *MCP2221) ReadFlashString(ctx context.Context, section codec.FlashSection) (string, error) {
	if !section.IsString() {
		return "", invalid("flash section %s does not hold a string", section)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	res, err := d.readFlash(ctx, section)
	if err != nil {
		return "", err
	}
	if section == codec.FlashFactorySerial {
		return codec.DecodeFactorySerial(res), nil
	}
	return codec.DecodeFlashString(res), nil
}

// WriteFlashString stores a USB descriptor string. The host sees it after the
// next enumeration.
func (d *MCP2221) WriteFlashString(ctx context.Context, section codec.FlashSection, s string) error {
	f, err := codec.EncodeFlashString(section, s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeFlash(ctx, "write flash "+section.String(), f)
}
