package adapter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mklimuk/mcp2221/codec"
	"github.com/mklimuk/mcp2221/transport"
)

var (
	ErrCommandUnsupported = errors.New("unsupported command")
	ErrCommandFailed      = errors.New("command failed")
	ErrInvalidArgument    = errors.New("invalid argument")
	// ErrTimeout is returned when the watchdog elapses before the engine
	// reaches a terminal state.
	ErrTimeout = errors.New("i2c transfer timed out")
	// ErrEngineTimeout is returned when the engine itself gave up on a bus
	// phase, typically because a target stretched the clock for too long.
	ErrEngineTimeout   = errors.New("i2c engine timeout")
	ErrNotAcknowledged = errors.New("target did not acknowledge")
	ErrProtocolMisuse  = errors.New("transfer after a nostop write must use restart")
	ErrEngine          = errors.New("i2c engine error")
	ErrElectricalFault = errors.New("electrical fault")
	ErrRecoveryFailed  = errors.New("could not return i2c engine to idle")
	ErrNotReopenable   = errors.New("device was not opened by identity")
	// ErrAccessDenied is returned when a protected flash refuses a write or
	// the access password.
	ErrAccessDenied = errors.New("flash access denied")
)

// ElectricalFault reports a bus line held low. No software action on the
// bridge can release it.
type ElectricalFault struct {
	Line string
	Hint string
}

func (e *ElectricalFault) Error() string {
	return fmt.Sprintf("%s held low (%s)", e.Line, e.Hint)
}

func (e *ElectricalFault) Is(target error) bool {
	return target == ErrElectricalFault
}

var (
	ErrSCLHeld error = &ElectricalFault{Line: "SCL", Hint: "missing pull-up, clock stretching target or bus contention"}
	ErrSDAHeld error = &ElectricalFault{Line: "SDA", Hint: "a target still drives the bus after an abandoned read; toggle SCL or power-cycle it"}
)

// EngineError carries an engine state the driver does not classify.
type EngineError struct {
	Op   string
	Code codec.EngineState
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: engine state %#02x (%s): %v", e.Op, byte(e.Code), e.Code, e.Err)
	}
	return fmt.Sprintf("%s: engine state %#02x (%s)", e.Op, byte(e.Code), e.Code)
}

func (e *EngineError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEngine}
	}
	return []error{ErrEngine, e.Err}
}

// IsExpected reports whether err is a routine bus condition, such as a probe of
// an empty address, that callers may ignore.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotAcknowledged) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrEngineTimeout)
}

// IsFatal reports whether err needs physical intervention or a reconnect.
func IsFatal(err error) bool {
	return errors.Is(err, ErrElectricalFault) || errors.Is(err, ErrRecoveryFailed) || errors.Is(err, transport.ErrTransport)
}

// classify maps a terminal engine state onto an error.
func classify(op string, st codec.EngineState) error {
	switch {
	case st.TimedOut():
		return fmt.Errorf("%s: %w (%s)", op, ErrEngineTimeout, st)
	case st.NACK():
		return fmt.Errorf("%s: %w", op, ErrNotAcknowledged)
	case st == codec.StateWriteEndNoStop:
		return fmt.Errorf("%s: %w", op, ErrProtocolMisuse)
	}
	slog.Warn("unclassified i2c engine state", "op", op, "code", fmt.Sprintf("%#02x", byte(st)))
	return &EngineError{Op: op, Code: st}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
