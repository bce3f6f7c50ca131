package decompiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// Decompiler rebuilds source trees from code objects. The registry it
// holds is read-only, so one Decompiler serves concurrent calls.
type Decompiler struct {
	reg *Registry
	log commonlog.Logger
}

// New returns a decompiler dispatching through reg, or through the full
// registry when reg is nil.
func New(reg *Registry) *Decompiler {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Decompiler{reg: reg, log: commonlog.GetLogger("depyo.decompiler")}
}

// Result is the decompiled tree of one top-level code object.
type Result struct {
	Root     *ast.Module
	Clean    bool
	Warnings []string
	Version  *bytecode.Version
	Blocks   []BlockSpan
}

// Source renders the module under the depyo header. Incomplete results
// carry a warning line so they are never mistaken for faithful output.
func (r *Result) Source() string {
	var sb strings.Builder
	sb.WriteString("# Decompiled by depyo\n")
	if r.Version != nil {
		fmt.Fprintf(&sb, "# Bytecode version: %s\n", r.Version)
	}
	if !r.Clean {
		sb.WriteString("# WARNING: Decompyle incomplete\n")
	}
	if body := ast.Render(r.Root); body != "" {
		sb.WriteString(body)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// output is what one pass produces for its code object.
type output struct {
	body     []ast.Stmt
	clean    bool
	warnings []string
	blocks   []BlockSpan
}

// Decompile rebuilds the module whose code object is code. Decoding
// errors of the top-level object are returned; every later failure only
// makes the result unclean.
func (d *Decompiler) Decompile(code *bytecode.CodeObject, v *bytecode.Version) (*Result, error) {
	if code == nil {
		return nil, errors.New("decompile: nil code object")
	}
	if v == nil {
		return nil, fmt.Errorf("decompile %s: %w", code.Name, bytecode.ErrUnsupportedVersion)
	}
	instrs, err := bytecode.Decode(code, v)
	if err != nil {
		return nil, fmt.Errorf("decompile %s: %w", code.Name, err)
	}
	out := d.runPass(code, v, kindModule, 0, instrs)
	d.log.Debugf("%s: %d instructions, clean=%t, %d warnings", code.Name, len(instrs), out.clean, len(out.warnings))
	return &Result{
		Root:     &ast.Module{Body: out.body},
		Clean:    out.clean,
		Warnings: out.warnings,
		Version:  v,
		Blocks:   out.blocks,
	}, nil
}

// decompileCode runs an independent pass over a nested code object.
func (d *Decompiler) decompileCode(code *bytecode.CodeObject, v *bytecode.Version, kind codeKind, depth int) *output {
	instrs, err := bytecode.Decode(code, v)
	if err != nil {
		msg := fmt.Sprintf("%s: %v", code.Name, err)
		d.log.Warningf("%s", msg)
		return &output{body: []ast.Stmt{}, warnings: []string{msg}}
	}
	return d.runPass(code, v, kind, depth, instrs)
}

func (d *Decompiler) runPass(code *bytecode.CodeObject, v *bytecode.Version, kind codeKind, depth int, instrs []bytecode.Instruction) *output {
	p := newPass(d, code, v, kind, depth)
	p.instrs = instrs
	p.index = make(map[int]int, len(instrs))
	for i := range instrs {
		p.index[instrs[i].Offset] = i
	}
	p.loopHeads = findLoopHeads(instrs, p.index)
	if v.HasExceptionTable() {
		p.regions = analyzeRegions(instrs, p.index, code.ExceptionTable, p.skips)
	}
	if err := p.interpret(); err != nil {
		p.unclean("%v", err)
		p.salvage()
	} else if n := p.leftover(); n > 0 {
		p.unclean("%d values left on the operand stack", n)
	}
	body := p.blocks.Main().Nodes
	body = p.recoverMatches(body)
	body = p.finalize(body)
	if body == nil {
		body = []ast.Stmt{}
	}
	return &output{body: body, clean: p.clean, warnings: p.warnings, blocks: p.blocks.closed}
}

// interpret runs the pass and converts a failure raised by a handler into
// an error. A runtime panic is reported the same way so that one bad code
// object cannot take down its siblings.
func (p *pass) interpret() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*engineError); ok {
				err = e
				return
			}
			p.d.log.Errorf("%s: panic at offset %d: %v", p.code.Name, p.offset(), r)
			err = fmt.Errorf("%w: %v at offset %d", ErrInternal, r, p.offset())
		}
	}()
	p.run()
	p.finish()
	return nil
}

// leftover counts the values a finished pass left on the operand stack.
// NULL slots and markers carry no source and are not counted.
func (p *pass) leftover() int {
	n := 0
	for _, e := range p.stack.items {
		if e == nil {
			continue
		}
		if _, ok := e.(*ast.Marker); ok {
			continue
		}
		n++
	}
	return n
}
