package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// handlerFunc interprets one instruction against the pass state.
type handlerFunc func(p *pass, in *bytecode.Instruction)

// Registry maps every mnemonic to the handler that interprets it. A
// Registry is immutable after construction and safe to share between
// concurrent decompilations.
type Registry struct {
	handlers [bytecode.NumOps]handlerFunc
}

// NewRegistry returns the registry covering every supported revision.
func NewRegistry() *Registry {
	r := &Registry{}
	registerStackOps(r)
	registerLoadStore(r)
	registerOperators(r)
	registerCollections(r)
	registerCalls(r)
	registerFlow(r)
	registerExceptions(r)
	registerGenerators(r)
	registerMatch(r)
	registerLegacy(r)
	return r
}

func (r *Registry) add(h handlerFunc, ops ...bytecode.Op) {
	for _, op := range ops {
		r.handlers[op] = h
	}
}

func (r *Registry) lookup(op bytecode.Op) handlerFunc {
	if int(op) >= len(r.handlers) {
		return nil
	}
	return r.handlers[op]
}

// Supports reports whether op has a handler.
func (r *Registry) Supports(op bytecode.Op) bool { return r.lookup(op) != nil }

// Missing lists the opcodes of v's table that have no handler.
func (r *Registry) Missing(v *bytecode.Version) []bytecode.Op {
	var out []bytecode.Op
	for _, op := range v.Table().Ops() {
		if !r.Supports(op) {
			out = append(out, op)
		}
	}
	return out
}

// Without returns a copy of r with the handlers for ops removed. It is
// used to exercise the unsupported-opcode path.
func (r *Registry) Without(ops ...bytecode.Op) *Registry {
	c := *r
	for _, op := range ops {
		c.handlers[op] = nil
	}
	return &c
}

// ignore is the handler for instructions with no source-level effect.
func ignore(*pass, *bytecode.Instruction) {}
