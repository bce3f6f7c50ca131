package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

var unaryOps = map[bytecode.Op]string{
	bytecode.OpUnaryPositive: "+",
	bytecode.OpUnaryNegative: "-",
	bytecode.OpUnaryNot:      "not",
	bytecode.OpUnaryInvert:   "~",
	bytecode.OpUnaryConvert:  "`",
}

var binaryOps = map[bytecode.Op]string{
	bytecode.OpBinaryPower:          "**",
	bytecode.OpBinaryMultiply:       "*",
	bytecode.OpBinaryMatrixMultiply: "@",
	bytecode.OpBinaryDivide:         "/",
	bytecode.OpBinaryModulo:         "%",
	bytecode.OpBinaryAdd:            "+",
	bytecode.OpBinarySubtract:       "-",
	bytecode.OpBinaryFloorDivide:    "//",
	bytecode.OpBinaryTrueDivide:     "/",
	bytecode.OpBinaryLshift:         "<<",
	bytecode.OpBinaryRshift:         ">>",
	bytecode.OpBinaryAnd:            "&",
	bytecode.OpBinaryXor:            "^",
	bytecode.OpBinaryOr:             "|",

	bytecode.OpInplacePower:          "**=",
	bytecode.OpInplaceMultiply:       "*=",
	bytecode.OpInplaceMatrixMultiply: "@=",
	bytecode.OpInplaceDivide:         "/=",
	bytecode.OpInplaceModulo:         "%=",
	bytecode.OpInplaceAdd:            "+=",
	bytecode.OpInplaceSubtract:       "-=",
	bytecode.OpInplaceFloorDivide:    "//=",
	bytecode.OpInplaceTrueDivide:     "/=",
	bytecode.OpInplaceLshift:         "<<=",
	bytecode.OpInplaceRshift:         ">>=",
	bytecode.OpInplaceAnd:            "&=",
	bytecode.OpInplaceXor:            "^=",
	bytecode.OpInplaceOr:             "|=",
}

func registerOperators(r *Registry) {
	for op := range unaryOps {
		r.add(opUnary, op)
	}
	for op := range binaryOps {
		r.add(opBinary, op)
	}
	r.add(opBinary, bytecode.OpBinaryOp)
	r.add(func(p *pass, in *bytecode.Instruction) {
		idx := p.pop()
		p.push(&ast.Subscript{SpanVal: p.span(), X: p.pop(), Index: idx})
	}, bytecode.OpBinarySubscr)
	r.add(opBuildSlice, bytecode.OpBuildSlice)
	r.add(func(p *pass, in *bytecode.Instruction) {
		upper := p.pop()
		lower := p.pop()
		p.push(&ast.Subscript{SpanVal: p.span(), X: p.pop(), Index: sliceOf(lower, upper, nil)})
	}, bytecode.OpBinarySlice)
	r.add(opCompare, bytecode.OpCompareOp, bytecode.OpIsOp, bytecode.OpContainsOp)
	r.add(opCheckExcMatch, bytecode.OpCheckExcMatch, bytecode.OpCheckEgMatch)
	r.add(opFormatValue, bytecode.OpFormatValue)
	r.add(opFormat, bytecode.OpFormatSimple, bytecode.OpFormatWithSpec)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.push(&ast.FormattedValue{SpanVal: p.span(), Value: p.pop(), Conversion: conversions[in.Arg&3]})
	}, bytecode.OpConvertValue)
	r.add(opBuildString, bytecode.OpBuildString)
	r.add(opIntrinsic1, bytecode.OpCallIntrinsic1)
	r.add(opIntrinsic2, bytecode.OpCallIntrinsic2)
}

func opUnary(p *pass, in *bytecode.Instruction) {
	p.push(&ast.Unary{SpanVal: p.span(), Op: unaryOps[in.Op], X: p.pop()})
}

func opBinary(p *pass, in *bytecode.Instruction) {
	y := p.pop()
	x := p.pop()
	op := binaryOps[in.Op]
	if in.Op == bytecode.OpBinaryOp {
		op = in.Operator
	}
	p.push(&ast.Binary{SpanVal: p.span(), Op: op, X: x, Y: y})
}

func opBuildSlice(p *pass, in *bytecode.Instruction) {
	var step ast.Expr
	if in.Arg == 3 {
		step = p.pop()
	}
	upper := p.pop()
	lower := p.pop()
	p.push(sliceOf(lower, upper, step))
}

func opCompare(p *pass, in *bytecode.Instruction) {
	right := p.pop()
	left := p.pop()
	op := in.Operator
	switch in.Op {
	case bytecode.OpIsOp:
		op = "is"
		if in.Arg == 1 {
			op = "is not"
		}
	case bytecode.OpContainsOp:
		op = "in"
		if in.Arg == 1 {
			op = "not in"
		}
	}
	p.push(&ast.Compare{SpanVal: p.span(), Left: left, Ops: []string{op}, Comparators: []ast.Expr{right}})
}

const (
	excMatch      = "exception match"
	excGroupMatch = "exception group match"
)

// opCheckExcMatch tests the exception under the type on top. The
// exception stays on the stack for the handler to bind or discard.
func opCheckExcMatch(p *pass, in *bytecode.Instruction) {
	typ := p.pop()
	exc := p.peek(0)
	op := excMatch
	if in.Op == bytecode.OpCheckEgMatch {
		op = excGroupMatch
	}
	p.push(&ast.Compare{SpanVal: p.span(), Left: exc, Ops: []string{op}, Comparators: []ast.Expr{typ}})
}

func isExcMatch(e ast.Expr) (*ast.Compare, bool) {
	c, ok := e.(*ast.Compare)
	if !ok || len(c.Ops) != 1 {
		return nil, false
	}
	return c, c.Ops[0] == excMatch || c.Ops[0] == excGroupMatch
}

var conversions = [...]byte{0, 's', 'r', 'a'}

func opFormatValue(p *pass, in *bytecode.Instruction) {
	var spec ast.Expr
	if in.Arg&4 != 0 {
		spec = p.pop()
	}
	v := p.pop()
	p.push(&ast.FormattedValue{SpanVal: p.span(), Value: v, Conversion: conversions[in.Arg&3], Spec: spec})
}

// opFormat handles the 3.13 split of FORMAT_VALUE. A conversion was
// already applied by CONVERT_VALUE, which left a FormattedValue behind.
func opFormat(p *pass, in *bytecode.Instruction) {
	var spec ast.Expr
	if in.Op == bytecode.OpFormatWithSpec {
		spec = p.pop()
	}
	v := p.pop()
	if fv, ok := v.(*ast.FormattedValue); ok && fv.Conversion != 0 && fv.Spec == nil {
		fv.Spec = spec
		p.push(fv)
		return
	}
	p.push(&ast.FormattedValue{SpanVal: p.span(), Value: v, Spec: spec})
}

func opBuildString(p *pass, in *bytecode.Instruction) {
	parts := p.popN(in.Arg)
	var values []ast.Expr
	for _, e := range parts {
		if j, ok := e.(*ast.JoinedStr); ok {
			values = append(values, j.Values...)
			continue
		}
		values = append(values, e)
	}
	p.push(&ast.JoinedStr{SpanVal: p.span(), Values: values})
}

// CALL_INTRINSIC_1 operands.
const (
	intrinsicPrint          = 1
	intrinsicImportStar     = 2
	intrinsicStopIteration  = 3
	intrinsicAsyncGenWrap   = 4
	intrinsicUnaryPositive  = 5
	intrinsicListToTuple    = 6
	intrinsicPrepReraiseStr = 1 // CALL_INTRINSIC_2
)

func opIntrinsic1(p *pass, in *bytecode.Instruction) {
	switch in.Arg {
	case intrinsicPrint:
		p.push(&ast.Call{SpanVal: p.span(), Func: &ast.Name{Id: "print"}, Args: []ast.Expr{p.pop()}})
	case intrinsicImportStar:
		p.importStar(p.pop())
		p.push(&ast.Marker{Label: markSaved})
	case intrinsicStopIteration, intrinsicAsyncGenWrap:
	case intrinsicUnaryPositive:
		p.push(&ast.Unary{SpanVal: p.span(), Op: "+", X: p.pop()})
	case intrinsicListToTuple:
		p.push(listToTuple(p.pop()))
	default:
		p.unclean("intrinsic %d is not supported", in.Arg)
	}
}

func opIntrinsic2(p *pass, in *bytecode.Instruction) {
	p.pop()
	first := p.pop()
	if in.Arg != intrinsicPrepReraiseStr {
		p.unclean("intrinsic %d with two operands is not supported", in.Arg)
	}
	p.push(first)
}

func listToTuple(e ast.Expr) ast.Expr {
	if l, ok := e.(*ast.List); ok {
		return &ast.Tuple{SpanVal: l.SpanVal, Elts: l.Elts}
	}
	return &ast.Call{Func: &ast.Name{Id: "tuple"}, Args: []ast.Expr{e}}
}

func registerCollections(r *Registry) {
	r.add(opBuildSeq, bytecode.OpBuildTuple, bytecode.OpBuildList, bytecode.OpBuildSet)
	r.add(opBuildMap, bytecode.OpBuildMap)
	r.add(opBuildConstKeyMap, bytecode.OpBuildConstKeyMap)
	r.add(func(p *pass, in *bytecode.Instruction) {
		key := p.pop()
		value := p.pop()
		d, ok := p.peek(0).(*ast.Dict)
		if !ok {
			p.fail(ErrUnexpectedNode, "STORE_MAP into %T", p.peek(0))
		}
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, value)
	}, bytecode.OpStoreMap)
	r.add(opAccumulate, bytecode.OpListAppend, bytecode.OpSetAdd, bytecode.OpMapAdd)
	r.add(opExtend, bytecode.OpListExtend, bytecode.OpSetUpdate, bytecode.OpDictUpdate, bytecode.OpDictMerge)
	r.add(func(p *pass, in *bytecode.Instruction) { p.push(listToTuple(p.pop())) }, bytecode.OpListToTuple)
	r.add(opBuildUnpack,
		bytecode.OpBuildTupleUnpack, bytecode.OpBuildTupleUnpackWithCall, bytecode.OpBuildListUnpack,
		bytecode.OpBuildSetUnpack, bytecode.OpBuildMapUnpack, bytecode.OpBuildMapUnpackWithCall)
}

func opBuildSeq(p *pass, in *bytecode.Instruction) {
	elts := p.popN(in.Arg)
	switch in.Op {
	case bytecode.OpBuildTuple:
		p.push(&ast.Tuple{SpanVal: p.span(), Elts: elts})
	case bytecode.OpBuildList:
		p.push(&ast.List{SpanVal: p.span(), Elts: elts})
	default:
		p.push(&ast.Set{SpanVal: p.span(), Elts: elts})
	}
}

func opBuildMap(p *pass, in *bytecode.Instruction) {
	d := &ast.Dict{SpanVal: p.span()}
	if p.v.AtLeast(3, 5) {
		items := p.popN(2 * in.Arg)
		for i := 0; i < len(items); i += 2 {
			d.Keys = append(d.Keys, items[i])
			d.Values = append(d.Values, items[i+1])
		}
	}
	p.push(d)
}

func opBuildConstKeyMap(p *pass, in *bytecode.Instruction) {
	keys := p.pop()
	values := p.popN(in.Arg)
	d := &ast.Dict{SpanVal: p.span(), Values: values}
	c, ok := keys.(*ast.Const)
	if !ok || len(c.Value.Items) != in.Arg {
		p.fail(ErrUnexpectedNode, "BUILD_CONST_KEY_MAP keys %T", keys)
	}
	for _, k := range c.Value.Items {
		d.Keys = append(d.Keys, &ast.Const{Value: k})
	}
	p.push(d)
}

// opAccumulate is the body of a comprehension: the value joins the
// accumulator sitting in.Arg entries down the stack.
func opAccumulate(p *pass, in *bytecode.Instruction) {
	label := markAppend
	var args []ast.Expr
	switch in.Op {
	case bytecode.OpListAppend, bytecode.OpSetAdd:
		if in.Op == bytecode.OpSetAdd {
			label = markAdd
		}
		v := p.pop()
		args = []ast.Expr{p.peek(in.Arg - 1), v}
	case bytecode.OpMapAdd:
		label = markMap
		key, value := p.pop(), p.pop()
		if p.v.AtLeast(3, 8) {
			key, value = value, key
		}
		args = []ast.Expr{p.peek(in.Arg - 1), key, value}
	}
	call := &ast.Call{SpanVal: p.span(), Func: &ast.Marker{Label: label}, Args: args}
	p.emit(&ast.ExprStmt{SpanVal: p.span(), X: call})
}

// opExtend splices an iterable or mapping into the display under it.
func opExtend(p *pass, in *bytecode.Instruction) {
	v := p.pop()
	target := p.peek(in.Arg - 1)
	switch t := target.(type) {
	case *ast.List:
		t.Elts = spliceElts(t.Elts, v)
	case *ast.Set:
		t.Elts = spliceElts(t.Elts, v)
	case *ast.Dict:
		if d, ok := v.(*ast.Dict); ok {
			t.Keys = append(t.Keys, d.Keys...)
			t.Values = append(t.Values, d.Values...)
			return
		}
		t.Keys = append(t.Keys, nil)
		t.Values = append(t.Values, v)
	default:
		p.fail(ErrUnexpectedNode, "%s into %T", in.Op, target)
	}
}

// spliceElts appends the items of a constant or display, or a starred
// reference to anything else.
func spliceElts(elts []ast.Expr, v ast.Expr) []ast.Expr {
	switch x := v.(type) {
	case *ast.Const:
		switch x.Value.Kind {
		case bytecode.ConstTuple, bytecode.ConstFrozenSet, bytecode.ConstList, bytecode.ConstSet:
			for _, k := range x.Value.Items {
				elts = append(elts, &ast.Const{Value: k})
			}
			return elts
		}
	case *ast.Tuple:
		return append(elts, x.Elts...)
	case *ast.List:
		return append(elts, x.Elts...)
	}
	return append(elts, &ast.Starred{X: v})
}

func opBuildUnpack(p *pass, in *bytecode.Instruction) {
	items := p.popN(in.Arg)
	switch in.Op {
	case bytecode.OpBuildMapUnpack, bytecode.OpBuildMapUnpackWithCall:
		d := &ast.Dict{SpanVal: p.span()}
		for _, it := range items {
			if x, ok := it.(*ast.Dict); ok {
				d.Keys = append(d.Keys, x.Keys...)
				d.Values = append(d.Values, x.Values...)
				continue
			}
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, it)
		}
		p.push(d)
		return
	}
	var elts []ast.Expr
	for _, it := range items {
		elts = spliceElts(elts, it)
	}
	switch in.Op {
	case bytecode.OpBuildListUnpack:
		p.push(&ast.List{SpanVal: p.span(), Elts: elts})
	case bytecode.OpBuildSetUnpack:
		p.push(&ast.Set{SpanVal: p.span(), Elts: elts})
	default:
		p.push(&ast.Tuple{SpanVal: p.span(), Elts: elts})
	}
}
