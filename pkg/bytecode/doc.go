// Package bytecode models compiled code objects of a stack-based dynamic
// language VM and decodes their instruction buffers across roughly
// twenty-five instruction-set revisions.
//
// The format changed in several incompatible ways over time:
//
//   - Variable-width instructions (1 byte, or 3 with a little-endian
//     16-bit operand) up to 3.5; fixed two-byte "wordcode" from 3.6.
//   - Jump operands count bytes before 3.10 and two-byte code units after.
//   - From 3.11 instructions are followed by inline cache entries and
//     exception handlers move out of the instruction stream into a side
//     table.
//
// # Architecture Overview
//
//   - Op: a version-independent mnemonic space. The decompiler dispatches
//     only on Op, never on numeric opcodes.
//
//   - OpTable: per-revision mapping of numeric opcode to Op plus operand
//     kind, jump direction and inline cache count. Tables are built from a
//     family base with per-version deltas.
//
//   - Version: identifies a revision and answers the encoding questions
//     (word size, jump units, EXTENDED_ARG shift, exception tables).
//
//   - CodeObject and Constant: the decoded object graph the decompiler
//     consumes. Reading the on-disk marshal format is out of scope; code
//     objects arrive through the dump package or the Assembler.
//
//   - Decode: buffer plus Version to []Instruction with resolved operands
//     and absolute jump targets.
//
//   - Disassemble: a human-readable listing for diagnostics.
//
//   - Assembler: label-based builder used by fixtures and tests.
package bytecode
