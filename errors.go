package mcp2517fd

import (
	"errors"

	"github.com/soypat/mcp2517fd/sfr"
)

// Phase is the stage of a register operation that failed.
type Phase uint8

const (
	// PhaseRead marks a bus fault while clocking out a register read.
	// The value of the register is unknown.
	PhaseRead Phase = iota + 1
	// PhaseWrite marks a bus fault while clocking in a register write or
	// the reset command. The value of the register after the write is unknown.
	PhaseWrite
	// PhaseTimeout marks a poll that did not converge within its budget.
	PhaseTimeout
)

func (p Phase) String() string {
	switch p {
	case PhaseRead:
		return "read"
	case PhaseWrite:
		return "write"
	case PhaseTimeout:
		return "timeout"
	}
	return "unknown"
}

var (
	ErrTimeout         = errors.New("mcp2517fd: timeout")
	ErrInvalidSettings = errors.New("mcp2517fd: invalid settings")
	ErrFIFOIndex       = errors.New("mcp2517fd: FIFO index out of range")
	errShortFrame      = errors.New("mcp2517fd: frame shorter than header")
)

// Error is returned by every Controller operation that touches the bus.
// It records the failed phase, the register involved and the underlying cause,
// which is the bus error for PhaseRead and PhaseWrite and wraps ErrTimeout
// (and possibly a context error) for PhaseTimeout.
type Error struct {
	Phase Phase
	Addr  sfr.Address
	// Op names the step that failed, i.e: "reset", "osc-ready", "mode-confirm".
	Op  string
	Err error
}

func (e *Error) Error() string {
	msg := "mcp2517fd: " + e.Phase.String()
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Op != "reset" {
		msg += " " + e.Addr.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func readErr(addr sfr.Address, err error) error {
	return &Error{Phase: PhaseRead, Addr: addr, Err: err}
}

func writeErr(addr sfr.Address, err error) error {
	return &Error{Phase: PhaseWrite, Addr: addr, Err: err}
}

func timeoutErr(op string, addr sfr.Address, cause error) error {
	err := ErrTimeout
	if cause != nil {
		err = errors.Join(ErrTimeout, cause)
	}
	return &Error{Phase: PhaseTimeout, Addr: addr, Op: op, Err: err}
}

// withOp annotates a controller error with the bring-up step it failed in.
func withOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		e.Op = op
	}
	return err
}

// ErrorPhase returns the Phase of err if it is or wraps an *Error.
func ErrorPhase(err error) (Phase, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Phase, true
}

// IsReadError reports whether err is a read phase bus failure.
func IsReadError(err error) bool {
	p, _ := ErrorPhase(err)
	return p == PhaseRead
}

// IsWriteError reports whether err is a write phase bus failure.
func IsWriteError(err error) bool {
	p, _ := ErrorPhase(err)
	return p == PhaseWrite
}

// IsTimeout reports whether err is a poll that never converged.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
