package bytecode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode means the opcode byte has no entry in the version's table.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrOperandRange means an operand index falls outside its table.
	ErrOperandRange = errors.New("operand out of range")

	// ErrTruncated means the buffer ends inside an instruction or varint.
	ErrTruncated = errors.New("truncated bytecode")

	// ErrUnsupportedVersion means no opcode table exists for the revision.
	ErrUnsupportedVersion = errors.New("unsupported version")
)

// DecodeError reports where decoding failed.
type DecodeError struct {
	Offset int
	Opcode byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at offset %d (opcode %d): %v", e.Offset, e.Opcode, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
