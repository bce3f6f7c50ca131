package decompiler

import (
	"errors"
	"fmt"
)

var (
	// ErrStackUnderflow is a pop from an empty operand stack.
	ErrStackUnderflow = errors.New("operand stack underflow")
	// ErrUnsupportedOpcode is a decoded instruction with no handler.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	// ErrBlockMismatch is a cleanup instruction that found the wrong block.
	ErrBlockMismatch = errors.New("block mismatch")
	// ErrUnexpectedNode is a handler that needed a specific node shape.
	ErrUnexpectedNode = errors.New("unexpected node")
	// ErrInternal is a runtime panic inside the engine.
	ErrInternal = errors.New("internal error")
)

// engineError is raised inside handlers and recovered once per code
// object by the driver, which turns it into an unclean result.
type engineError struct {
	offset int
	err    error
}

func (e *engineError) Error() string {
	return fmt.Sprintf("offset %d: %v", e.offset, e.err)
}

func (e *engineError) Unwrap() error { return e.err }

// fail aborts the current pass.
func (p *pass) fail(err error, format string, args ...any) {
	panic(&engineError{offset: p.offset(), err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))})
}
