// Package dump stores code objects outside the interpreter's marshal
// format: CBOR for compact, canonical files and YAML for fixtures a
// person can read and edit. Both carry the bytecode version alongside the
// top-level code object.
package dump

import (
	"encoding/hex"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// Format identifies a depyo dump; Schema is bumped on incompatible
// layout changes.
const (
	Format = "depyo-dump"
	Schema = 1
)

// ErrFormat is returned for input that is not a depyo dump of a known
// schema.
var ErrFormat = errors.New("not a depyo dump")

// File is the serialized document.
type File struct {
	Format  string `cbor:"format" yaml:"format"`
	Schema  int    `cbor:"schema" yaml:"schema"`
	Version string `cbor:"version" yaml:"version"`
	Code    *Code  `cbor:"code" yaml:"code"`
}

// Code mirrors bytecode.CodeObject.
type Code struct {
	Name            string   `cbor:"name" yaml:"name"`
	QualName        string   `cbor:"qualname,omitempty" yaml:"qualname,omitempty"`
	Filename        string   `cbor:"filename,omitempty" yaml:"filename,omitempty"`
	FirstLine       int      `cbor:"firstline,omitempty" yaml:"firstline,omitempty"`
	ArgCount        int      `cbor:"argcount,omitempty" yaml:"argcount,omitempty"`
	PosOnlyArgCount int      `cbor:"posonlyargcount,omitempty" yaml:"posonlyargcount,omitempty"`
	KwOnlyArgCount  int      `cbor:"kwonlyargcount,omitempty" yaml:"kwonlyargcount,omitempty"`
	NumLocals       int      `cbor:"nlocals,omitempty" yaml:"nlocals,omitempty"`
	StackSize       int      `cbor:"stacksize,omitempty" yaml:"stacksize,omitempty"`
	Flags           uint32   `cbor:"flags,omitempty" yaml:"flags,omitempty"`
	Bytecode        Hex      `cbor:"code" yaml:"code"`
	Consts          []Const  `cbor:"consts,omitempty" yaml:"consts,omitempty"`
	Names           []string `cbor:"names,omitempty" yaml:"names,omitempty,flow"`
	VarNames        []string `cbor:"varnames,omitempty" yaml:"varnames,omitempty,flow"`
	CellVars        []string `cbor:"cellvars,omitempty" yaml:"cellvars,omitempty,flow"`
	FreeVars        []string `cbor:"freevars,omitempty" yaml:"freevars,omitempty,flow"`
	Lines           [][2]int `cbor:"lines,omitempty" yaml:"lines,omitempty"`
	ExceptionTable  []Entry  `cbor:"exceptiontable,omitempty" yaml:"exceptiontable,omitempty"`
}

// Const mirrors bytecode.Constant; Kind is the constant kind's name.
type Const struct {
	Kind    string  `cbor:"kind" yaml:"kind"`
	Bool    bool    `cbor:"bool,omitempty" yaml:"bool,omitempty"`
	Int     int64   `cbor:"int,omitempty" yaml:"int,omitempty"`
	BigInt  string  `cbor:"bigint,omitempty" yaml:"bigint,omitempty"`
	Float   float64 `cbor:"float,omitempty" yaml:"float,omitempty"`
	Imag    float64 `cbor:"imag,omitempty" yaml:"imag,omitempty"`
	Str     string  `cbor:"str,omitempty" yaml:"str,omitempty"`
	Unicode bool    `cbor:"unicode,omitempty" yaml:"unicode,omitempty"`
	Bytes   Hex     `cbor:"bytes,omitempty" yaml:"bytes,omitempty"`
	Items   []Const `cbor:"items,omitempty" yaml:"items,omitempty"`
	Values  []Const `cbor:"values,omitempty" yaml:"values,omitempty"`
	Code    *Code   `cbor:"codeobj,omitempty" yaml:"codeobj,omitempty"`
}

// Entry is one exception-table row.
type Entry struct {
	Start  int  `cbor:"start" yaml:"start"`
	End    int  `cbor:"end" yaml:"end"`
	Target int  `cbor:"target" yaml:"target"`
	Depth  int  `cbor:"depth" yaml:"depth"`
	Lasti  bool `cbor:"lasti,omitempty" yaml:"lasti,omitempty"`
}

// Hex is raw bytes. CBOR stores it as a byte string, YAML as a hex
// string.
type Hex []byte

// MarshalYAML implements yaml.Marshaler.
func (h Hex) MarshalYAML() (interface{}, error) {
	return hex.EncodeToString(h), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *Hex) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*h = b
	return nil
}

// New wraps a code object and its version in a document.
func New(code *bytecode.CodeObject, v *bytecode.Version) *File {
	return &File{Format: Format, Schema: Schema, Version: v.String(), Code: fromCode(code)}
}

// Resolve checks the document header and rebuilds the code object.
func (f *File) Resolve() (*bytecode.CodeObject, *bytecode.Version, error) {
	if f.Format != Format {
		return nil, nil, fmt.Errorf("%w: format %q", ErrFormat, f.Format)
	}
	if f.Schema != Schema {
		return nil, nil, fmt.Errorf("%w: schema %d", ErrFormat, f.Schema)
	}
	if f.Code == nil {
		return nil, nil, fmt.Errorf("%w: no code object", ErrFormat)
	}
	v, err := bytecode.ParseVersion(f.Version)
	if err != nil {
		return nil, nil, err
	}
	code, err := toCode(f.Code)
	if err != nil {
		return nil, nil, err
	}
	return code, v, nil
}

func fromCode(c *bytecode.CodeObject) *Code {
	out := &Code{
		Name:            c.Name,
		QualName:        c.QualName,
		Filename:        c.Filename,
		FirstLine:       c.FirstLine,
		ArgCount:        c.ArgCount,
		PosOnlyArgCount: c.PosOnlyArgCount,
		KwOnlyArgCount:  c.KwOnlyArgCount,
		NumLocals:       c.NumLocals,
		StackSize:       c.StackSize,
		Flags:           uint32(c.Flags),
		Bytecode:        Hex(c.Code),
		Names:           c.Names,
		VarNames:        c.VarNames,
		CellVars:        c.CellVars,
		FreeVars:        c.FreeVars,
	}
	for _, k := range c.Consts {
		out.Consts = append(out.Consts, fromConst(k))
	}
	for _, l := range c.Lines {
		out.Lines = append(out.Lines, [2]int{l.Offset, l.Line})
	}
	for _, e := range c.ExceptionTable {
		out.ExceptionTable = append(out.ExceptionTable, Entry{Start: e.Start, End: e.End, Target: e.Target, Depth: e.Depth, Lasti: e.Lasti})
	}
	return out
}

func fromConst(k bytecode.Constant) Const {
	out := Const{
		Kind:    k.Kind.String(),
		Bool:    k.Bool,
		Int:     k.Int,
		BigInt:  k.BigInt,
		Float:   k.Float,
		Imag:    k.Imag,
		Str:     k.Str,
		Unicode: k.Unicode,
		Bytes:   Hex(k.Bytes),
	}
	for _, it := range k.Items {
		out.Items = append(out.Items, fromConst(it))
	}
	for _, it := range k.Values {
		out.Values = append(out.Values, fromConst(it))
	}
	if k.Code != nil {
		out.Code = fromCode(k.Code)
	}
	return out
}

func toCode(c *Code) (*bytecode.CodeObject, error) {
	out := &bytecode.CodeObject{
		Name:            c.Name,
		QualName:        c.QualName,
		Filename:        c.Filename,
		FirstLine:       c.FirstLine,
		ArgCount:        c.ArgCount,
		PosOnlyArgCount: c.PosOnlyArgCount,
		KwOnlyArgCount:  c.KwOnlyArgCount,
		NumLocals:       c.NumLocals,
		StackSize:       c.StackSize,
		Flags:           bytecode.CodeFlags(c.Flags),
		Code:            []byte(c.Bytecode),
		Names:           c.Names,
		VarNames:        c.VarNames,
		CellVars:        c.CellVars,
		FreeVars:        c.FreeVars,
	}
	for i, k := range c.Consts {
		v, err := toConst(k)
		if err != nil {
			return nil, fmt.Errorf("%s: const %d: %w", c.Name, i, err)
		}
		out.Consts = append(out.Consts, v)
	}
	for _, l := range c.Lines {
		out.Lines = append(out.Lines, bytecode.LineEntry{Offset: l[0], Line: l[1]})
	}
	for _, e := range c.ExceptionTable {
		out.ExceptionTable = append(out.ExceptionTable, bytecode.ExceptionEntry{Start: e.Start, End: e.End, Target: e.Target, Depth: e.Depth, Lasti: e.Lasti})
	}
	return out, nil
}

func toConst(k Const) (bytecode.Constant, error) {
	kind, ok := bytecode.ParseConstKind(k.Kind)
	if !ok {
		return bytecode.Constant{}, fmt.Errorf("%w: constant kind %q", ErrFormat, k.Kind)
	}
	out := bytecode.Constant{
		Kind:    kind,
		Bool:    k.Bool,
		Int:     k.Int,
		BigInt:  k.BigInt,
		Float:   k.Float,
		Imag:    k.Imag,
		Str:     k.Str,
		Unicode: k.Unicode,
		Bytes:   []byte(k.Bytes),
	}
	for _, it := range k.Items {
		v, err := toConst(it)
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, v)
	}
	for _, it := range k.Values {
		v, err := toConst(it)
		if err != nil {
			return out, err
		}
		out.Values = append(out.Values, v)
	}
	if kind == bytecode.ConstCode {
		if k.Code == nil {
			return out, fmt.Errorf("%w: code constant without a code object", ErrFormat)
		}
		code, err := toCode(k.Code)
		if err != nil {
			return out, err
		}
		out.Code = code
	}
	return out, nil
}
