// Package transport exchanges fixed-size frames with an MCP2221 over USB HID.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/mcp2221/codec"
	"github.com/mklimuk/mcp2221/mcpctx"
)

// Device is the raw HID channel. Every call moves exactly one frame.
type Device interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

const DefaultRetries = 5

var (
	ErrTransport    = errors.New("transport failure")
	ErrShortWrite   = errors.New("short write")
	ErrShortRead    = errors.New("short read")
	ErrEchoMismatch = errors.New("response does not echo the command")
	ErrNotOK        = errors.New("command not accepted")
	ErrClosed       = errors.New("transport closed")
)

// Error is returned once the retry budget of an exchange is spent.
type Error struct {
	Op       codec.Opcode
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s exchange failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

type Opts struct {
	Retries int
	// ResponseWait is slept between the write and the read of an exchange.
	// Some hubs drop the answer when it is read back too early.
	ResponseWait time.Duration
}

type Opt func(*Opts)

func WithRetries(n int) Opt {
	return func(o *Opts) {
		if n > 0 {
			o.Retries = n
		}
	}
}

func WithResponseWait(d time.Duration) Opt {
	return func(o *Opts) {
		o.ResponseWait = d
	}
}

// Transport sends a command frame and returns the response, retrying I/O
// failures. It is safe for concurrent use but callers driving multi-frame
// sequences must serialize them themselves.
type Transport struct {
	mx   sync.Mutex
	dev  Device
	opts Opts
	req  []byte
	res  []byte
}

func New(dev Device, opts ...Opt) *Transport {
	o := Opts{Retries: DefaultRetries}
	for _, opt := range opts {
		opt(&o)
	}
	return &Transport{
		dev:  dev,
		opts: o,
		req:  make([]byte, codec.FrameSize),
		res:  make([]byte, codec.FrameSize),
	}
}

// Exchange sends cmd and returns the response.
//
// I/O failures, short frames and responses that do not echo the opcode are
// retried up to the configured budget. Idempotent commands are also retried
// while the chip answers with a non-OK result. Other commands get the first
// complete response back whatever its result, so the caller can classify it.
// Reset has no response and returns a zero frame once written.
func (t *Transport) Exchange(ctx context.Context, cmd codec.Frame) (codec.Frame, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.dev == nil {
		return codec.Frame{}, ErrClosed
	}
	op := cmd.Opcode()
	var last error
	attempt := 0
	for attempt < t.opts.Retries {
		attempt++
		if err := ctx.Err(); err != nil {
			return codec.Frame{}, err
		}
		res, err := t.roundTrip(ctx, cmd)
		if err != nil {
			last = err
			slog.Debug("frame exchange failed", "op", op, "attempt", attempt, "error", err)
			continue
		}
		if !op.HasResponse() || res.OK() || !op.Idempotent() {
			return res, nil
		}
		last = fmt.Errorf("%w: result %#02x", ErrNotOK, res.Result())
	}
	return codec.Frame{}, &Error{Op: op, Attempts: attempt, Err: last}
}

func (t *Transport) roundTrip(ctx context.Context, cmd codec.Frame) (codec.Frame, error) {
	copy(t.req, cmd[:])
	verbose := mcpctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending frame", "op", cmd.Opcode(), "caller", mcpctx.Caller(ctx), "dump", "\n"+hex.Dump(t.req))
	}
	n, err := t.dev.Write(t.req)
	if err != nil {
		return codec.Frame{}, fmt.Errorf("could not write request: %w", err)
	}
	if n != codec.FrameSize {
		return codec.Frame{}, fmt.Errorf("%w: %d", ErrShortWrite, n)
	}
	if !cmd.Opcode().HasResponse() {
		return codec.Frame{}, nil
	}
	if t.opts.ResponseWait > 0 {
		time.Sleep(t.opts.ResponseWait)
	}
	clear(t.res)
	n, err = t.dev.Read(t.res)
	if err != nil {
		return codec.Frame{}, fmt.Errorf("could not read response: %w", err)
	}
	if n != codec.FrameSize {
		return codec.Frame{}, fmt.Errorf("%w: %d", ErrShortRead, n)
	}
	if verbose {
		slog.Debug("received frame", "op", cmd.Opcode(), "caller", mcpctx.Caller(ctx), "dump", "\n"+hex.Dump(t.res))
	}
	var res codec.Frame
	copy(res[:], t.res)
	if res.Opcode() != cmd.Opcode() {
		return codec.Frame{}, fmt.Errorf("%w: sent %s, got %#02x", ErrEchoMismatch, cmd.Opcode(), res[0])
	}
	return res, nil
}

// Close closes the underlying device. Further exchanges fail with ErrClosed.
func (t *Transport) Close() error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.dev == nil {
		return nil
	}
	err := t.dev.Close()
	t.dev = nil
	return err
}
