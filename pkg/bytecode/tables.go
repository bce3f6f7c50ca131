package bytecode

// ArgKind describes how an instruction's operand is resolved.
type ArgKind uint8

const (
	ArgNone      ArgKind = iota // no operand
	ArgPlain                    // raw integer (counts, flags)
	ArgConst                    // index into the constant pool
	ArgName                     // index into the name table
	ArgLocal                    // index into the local-variable table
	ArgFree                     // index into cell + free variables
	ArgCompare                  // comparison operator index
	ArgJumpRel                  // jump relative to the next instruction
	ArgJumpAbs                  // absolute jump target
	ArgBinaryOp                 // BINARY_OP operator index
	ArgIntrinsic                // CALL_INTRINSIC_* function id
	ArgLocalPair                // two local indexes packed in 4-bit halves
)

// OpInfo is the metadata of one numeric opcode in one revision.
type OpInfo struct {
	Op       Op
	Arg      ArgKind
	Backward bool // relative jump counts towards lower offsets
	Caches   int  // inline cache entries (code units) following the instruction
}

// HasArg reports whether the opcode carries an operand.
func (i OpInfo) HasArg() bool { return i.Arg != ArgNone }

// IsJump reports whether the operand is a jump target.
func (i OpInfo) IsJump() bool { return i.Arg == ArgJumpRel || i.Arg == ArgJumpAbs }

// OpTable maps the numeric opcodes of one revision onto mnemonics.
type OpTable struct {
	entries [256]OpInfo
	codes   map[Op]byte
}

// Lookup returns the metadata for a numeric opcode.
func (t *OpTable) Lookup(code byte) (OpInfo, bool) {
	info := t.entries[code]
	return info, info.Op != OpInvalid
}

// Code returns the numeric opcode assigned to op in this revision.
func (t *OpTable) Code(op Op) (byte, bool) {
	c, ok := t.codes[op]
	return c, ok
}

// Ops returns every mnemonic present in the table.
func (t *OpTable) Ops() []Op {
	ops := make([]Op, 0, len(t.codes))
	for i := 0; i < 256; i++ {
		if t.entries[i].Op != OpInvalid {
			ops = append(ops, t.entries[i].Op)
		}
	}
	return ops
}

func (t *OpTable) clone() *OpTable {
	n := &OpTable{entries: t.entries, codes: make(map[Op]byte, len(t.codes))}
	for op, c := range t.codes {
		n.codes[op] = c
	}
	return n
}

func (t *OpTable) set(code byte, op Op, kind ArgKind) *OpTable {
	return t.setInfo(code, OpInfo{Op: op, Arg: kind})
}

func (t *OpTable) back(code byte, op Op) *OpTable {
	return t.setInfo(code, OpInfo{Op: op, Arg: ArgJumpRel, Backward: true})
}

func (t *OpTable) cached(code byte, op Op, kind ArgKind, caches int) *OpTable {
	return t.setInfo(code, OpInfo{Op: op, Arg: kind, Caches: caches})
}

func (t *OpTable) setInfo(code byte, info OpInfo) *OpTable {
	if old := t.entries[code]; old.Op != OpInvalid && t.codes[old.Op] == code {
		delete(t.codes, old.Op)
	}
	if oldCode, ok := t.codes[info.Op]; ok && t.entries[oldCode].Op == info.Op {
		t.entries[oldCode] = OpInfo{}
	}
	t.entries[code] = info
	t.codes[info.Op] = code
	return t
}

func (t *OpTable) remove(ops ...Op) *OpTable {
	for _, op := range ops {
		if c, ok := t.codes[op]; ok {
			t.entries[c] = OpInfo{}
			delete(t.codes, op)
		}
	}
	return t
}

func newTable() *OpTable {
	return &OpTable{codes: make(map[Op]byte)}
}

// ---------------------------------------------------------------------------
// Python 2.7
// ---------------------------------------------------------------------------

func table27() *OpTable {
	t := newTable()
	t.set(0, OpStopCode, ArgNone).
		set(1, OpPopTop, ArgNone).
		set(2, OpRotTwo, ArgNone).
		set(3, OpRotThree, ArgNone).
		set(4, OpDupTop, ArgNone).
		set(5, OpRotFour, ArgNone).
		set(9, OpNop, ArgNone).
		set(10, OpUnaryPositive, ArgNone).
		set(11, OpUnaryNegative, ArgNone).
		set(12, OpUnaryNot, ArgNone).
		set(13, OpUnaryConvert, ArgNone).
		set(15, OpUnaryInvert, ArgNone).
		set(19, OpBinaryPower, ArgNone).
		set(20, OpBinaryMultiply, ArgNone).
		set(21, OpBinaryDivide, ArgNone).
		set(22, OpBinaryModulo, ArgNone).
		set(23, OpBinaryAdd, ArgNone).
		set(24, OpBinarySubtract, ArgNone).
		set(25, OpBinarySubscr, ArgNone).
		set(26, OpBinaryFloorDivide, ArgNone).
		set(27, OpBinaryTrueDivide, ArgNone).
		set(28, OpInplaceFloorDivide, ArgNone).
		set(29, OpInplaceTrueDivide, ArgNone).
		set(30, OpSlice0, ArgNone).
		set(31, OpSlice1, ArgNone).
		set(32, OpSlice2, ArgNone).
		set(33, OpSlice3, ArgNone).
		set(40, OpStoreSlice0, ArgNone).
		set(41, OpStoreSlice1, ArgNone).
		set(42, OpStoreSlice2, ArgNone).
		set(43, OpStoreSlice3, ArgNone).
		set(50, OpDeleteSlice0, ArgNone).
		set(51, OpDeleteSlice1, ArgNone).
		set(52, OpDeleteSlice2, ArgNone).
		set(53, OpDeleteSlice3, ArgNone).
		set(54, OpStoreMap, ArgNone).
		set(55, OpInplaceAdd, ArgNone).
		set(56, OpInplaceSubtract, ArgNone).
		set(57, OpInplaceMultiply, ArgNone).
		set(58, OpInplaceDivide, ArgNone).
		set(59, OpInplaceModulo, ArgNone).
		set(60, OpStoreSubscr, ArgNone).
		set(61, OpDeleteSubscr, ArgNone).
		set(62, OpBinaryLshift, ArgNone).
		set(63, OpBinaryRshift, ArgNone).
		set(64, OpBinaryAnd, ArgNone).
		set(65, OpBinaryXor, ArgNone).
		set(66, OpBinaryOr, ArgNone).
		set(67, OpInplacePower, ArgNone).
		set(68, OpGetIter, ArgNone).
		set(70, OpPrintExpr, ArgNone).
		set(71, OpPrintItem, ArgNone).
		set(72, OpPrintNewline, ArgNone).
		set(73, OpPrintItemTo, ArgNone).
		set(74, OpPrintNewlineTo, ArgNone).
		set(75, OpInplaceLshift, ArgNone).
		set(76, OpInplaceRshift, ArgNone).
		set(77, OpInplaceAnd, ArgNone).
		set(78, OpInplaceXor, ArgNone).
		set(79, OpInplaceOr, ArgNone).
		set(80, OpBreakLoop, ArgNone).
		set(81, OpWithCleanup, ArgNone).
		set(82, OpLoadLocals, ArgNone).
		set(83, OpReturnValue, ArgNone).
		set(84, OpImportStar, ArgNone).
		set(85, OpExecStmt, ArgNone).
		set(86, OpYieldValue, ArgNone).
		set(87, OpPopBlock, ArgNone).
		set(88, OpEndFinally, ArgNone).
		set(89, OpBuildClass, ArgNone).
		set(90, OpStoreName, ArgName).
		set(91, OpDeleteName, ArgName).
		set(92, OpUnpackSequence, ArgPlain).
		set(93, OpForIter, ArgJumpRel).
		set(94, OpListAppend, ArgPlain).
		set(95, OpStoreAttr, ArgName).
		set(96, OpDeleteAttr, ArgName).
		set(97, OpStoreGlobal, ArgName).
		set(98, OpDeleteGlobal, ArgName).
		set(99, OpDupTopX, ArgPlain).
		set(100, OpLoadConst, ArgConst).
		set(101, OpLoadName, ArgName).
		set(102, OpBuildTuple, ArgPlain).
		set(103, OpBuildList, ArgPlain).
		set(104, OpBuildSet, ArgPlain).
		set(105, OpBuildMap, ArgPlain).
		set(106, OpLoadAttr, ArgName).
		set(107, OpCompareOp, ArgCompare).
		set(108, OpImportName, ArgName).
		set(109, OpImportFrom, ArgName).
		set(110, OpJumpForward, ArgJumpRel).
		set(111, OpJumpIfFalseOrPop, ArgJumpAbs).
		set(112, OpJumpIfTrueOrPop, ArgJumpAbs).
		set(113, OpJumpAbsolute, ArgJumpAbs).
		set(114, OpPopJumpIfFalse, ArgJumpAbs).
		set(115, OpPopJumpIfTrue, ArgJumpAbs).
		set(116, OpLoadGlobal, ArgName).
		set(119, OpContinueLoop, ArgJumpAbs).
		set(120, OpSetupLoop, ArgJumpRel).
		set(121, OpSetupExcept, ArgJumpRel).
		set(122, OpSetupFinally, ArgJumpRel).
		set(124, OpLoadFast, ArgLocal).
		set(125, OpStoreFast, ArgLocal).
		set(126, OpDeleteFast, ArgLocal).
		set(130, OpRaiseVarargs, ArgPlain).
		set(131, OpCallFunction, ArgPlain).
		set(132, OpMakeFunction, ArgPlain).
		set(133, OpBuildSlice, ArgPlain).
		set(134, OpMakeClosure, ArgPlain).
		set(135, OpLoadClosure, ArgFree).
		set(136, OpLoadDeref, ArgFree).
		set(137, OpStoreDeref, ArgFree).
		set(140, OpCallFunctionVar, ArgPlain).
		set(141, OpCallFunctionKw, ArgPlain).
		set(142, OpCallFunctionVarKw, ArgPlain).
		set(143, OpSetupWith, ArgJumpRel).
		set(145, OpExtendedArg, ArgPlain).
		set(146, OpSetAdd, ArgPlain).
		set(147, OpMapAdd, ArgPlain)
	return t
}

// table26 covers 1.x through 2.6: non-popping conditional jumps and no
// set/dict comprehension opcodes.
func table26() *OpTable {
	t := table27().clone()
	t.remove(OpPopJumpIfFalse, OpPopJumpIfTrue, OpSetupWith, OpBuildSet, OpSetAdd, OpMapAdd, OpListAppend)
	t.set(111, OpJumpIfFalse, ArgJumpRel).
		set(112, OpJumpIfTrue, ArgJumpRel).
		set(18, OpListAppend, ArgNone).
		set(143, OpExtendedArg, ArgPlain)
	return t
}

// ---------------------------------------------------------------------------
// Python 3.0 - 3.5 (variable-width instructions)
// ---------------------------------------------------------------------------

func table35() *OpTable {
	t := table27().clone()
	t.remove(OpStopCode, OpRotFour, OpUnaryConvert, OpBinaryDivide, OpInplaceDivide,
		OpSlice0, OpSlice1, OpSlice2, OpSlice3,
		OpStoreSlice0, OpStoreSlice1, OpStoreSlice2, OpStoreSlice3,
		OpDeleteSlice0, OpDeleteSlice1, OpDeleteSlice2, OpDeleteSlice3,
		OpStoreMap, OpPrintItem, OpPrintNewline, OpPrintItemTo, OpPrintNewlineTo,
		OpWithCleanup, OpLoadLocals, OpExecStmt, OpBuildClass, OpDupTopX)
	t.set(5, OpDupTopTwo, ArgNone).
		set(16, OpBinaryMatrixMultiply, ArgNone).
		set(17, OpInplaceMatrixMultiply, ArgNone).
		set(50, OpGetAiter, ArgNone).
		set(51, OpGetAnext, ArgNone).
		set(52, OpBeforeAsyncWith, ArgNone).
		set(69, OpGetYieldFromIter, ArgNone).
		set(71, OpLoadBuildClass, ArgNone).
		set(72, OpYieldFrom, ArgNone).
		set(73, OpGetAwaitable, ArgNone).
		set(81, OpWithCleanupStart, ArgNone).
		set(82, OpWithCleanupFinish, ArgNone).
		set(89, OpPopExcept, ArgNone).
		set(94, OpUnpackEx, ArgPlain).
		set(138, OpDeleteDeref, ArgFree).
		set(144, OpExtendedArg, ArgPlain).
		set(145, OpListAppend, ArgPlain).
		set(146, OpSetAdd, ArgPlain).
		set(147, OpMapAdd, ArgPlain).
		set(148, OpLoadClassDeref, ArgFree).
		set(149, OpBuildListUnpack, ArgPlain).
		set(150, OpBuildMapUnpack, ArgPlain).
		set(151, OpBuildMapUnpackWithCall, ArgPlain).
		set(152, OpBuildTupleUnpack, ArgPlain).
		set(153, OpBuildSetUnpack, ArgPlain).
		set(154, OpSetupAsyncWith, ArgJumpRel)
	return t
}

// table34 covers 3.0 - 3.4.
func table34(minor int) *OpTable {
	t := table35().clone()
	t.remove(OpBinaryMatrixMultiply, OpInplaceMatrixMultiply, OpGetAiter, OpGetAnext,
		OpBeforeAsyncWith, OpGetYieldFromIter, OpGetAwaitable, OpWithCleanupFinish,
		OpBuildListUnpack, OpBuildMapUnpack, OpBuildMapUnpackWithCall,
		OpBuildTupleUnpack, OpBuildSetUnpack, OpSetupAsyncWith)
	t.set(54, OpStoreMap, ArgNone).
		set(81, OpWithCleanup, ArgNone)
	if minor < 4 {
		t.set(82, OpLoadLocals, ArgNone)
		t.remove(OpLoadClassDeref)
	}
	if minor < 3 {
		t.remove(OpYieldFrom)
	}
	if minor < 2 {
		t.remove(OpSetupWith, OpDeleteDeref)
		t.set(143, OpExtendedArg, ArgPlain)
	}
	if minor < 1 {
		t.remove(OpPopJumpIfFalse, OpPopJumpIfTrue, OpJumpIfFalseOrPop, OpJumpIfTrueOrPop)
		t.set(111, OpJumpIfFalse, ArgJumpRel).
			set(112, OpJumpIfTrue, ArgJumpRel)
	}
	return t
}

// ---------------------------------------------------------------------------
// Python 3.6 - 3.10 (wordcode)
// ---------------------------------------------------------------------------

func table36() *OpTable {
	t := table35().clone()
	t.remove(OpCallFunctionVar, OpCallFunctionVarKw, OpMakeClosure)
	t.set(85, OpSetupAnnotations, ArgNone).
		set(127, OpStoreAnnotation, ArgName).
		set(142, OpCallFunctionEx, ArgPlain).
		set(155, OpFormatValue, ArgPlain).
		set(156, OpBuildConstKeyMap, ArgPlain).
		set(157, OpBuildString, ArgPlain).
		set(158, OpBuildTupleUnpackWithCall, ArgPlain)
	return t
}

func table37() *OpTable {
	t := table36().clone()
	t.remove(OpStoreAnnotation)
	t.set(160, OpLoadMethod, ArgName).
		set(161, OpCallMethod, ArgPlain)
	return t
}

func table38() *OpTable {
	t := table37().clone()
	t.remove(OpBreakLoop, OpContinueLoop, OpSetupLoop, OpSetupExcept)
	t.set(6, OpRotFour, ArgNone).
		set(53, OpBeginFinally, ArgNone).
		set(54, OpEndAsyncFor, ArgNone).
		set(162, OpCallFinally, ArgJumpRel).
		set(163, OpPopFinally, ArgPlain)
	return t
}

func table39() *OpTable {
	t := table38().clone()
	t.remove(OpBeginFinally, OpCallFinally, OpPopFinally, OpWithCleanupStart, OpWithCleanupFinish,
		OpEndFinally, OpBuildListUnpack, OpBuildMapUnpack, OpBuildMapUnpackWithCall,
		OpBuildTupleUnpack, OpBuildSetUnpack, OpBuildTupleUnpackWithCall)
	t.set(48, OpReraise, ArgNone).
		set(49, OpWithExceptStart, ArgNone).
		set(74, OpLoadAssertionError, ArgNone).
		set(82, OpListToTuple, ArgNone).
		set(117, OpIsOp, ArgPlain).
		set(118, OpContainsOp, ArgPlain).
		set(121, OpJumpIfNotExcMatch, ArgJumpAbs).
		set(162, OpListExtend, ArgPlain).
		set(163, OpSetUpdate, ArgPlain).
		set(164, OpDictMerge, ArgPlain).
		set(165, OpDictUpdate, ArgPlain)
	return t
}

func table310() *OpTable {
	t := table39().clone()
	t.set(30, OpGetLen, ArgNone).
		set(31, OpMatchMapping, ArgNone).
		set(32, OpMatchSequence, ArgNone).
		set(33, OpMatchKeys, ArgNone).
		set(34, OpCopyDictWithoutKeys, ArgNone).
		set(99, OpRotN, ArgPlain).
		set(119, OpReraise, ArgPlain).
		set(129, OpGenStart, ArgPlain).
		set(152, OpMatchClass, ArgPlain)
	return t
}

// ---------------------------------------------------------------------------
// Python 3.11 - 3.12 (inline caches, exception tables)
// ---------------------------------------------------------------------------

func table311() *OpTable {
	t := newTable()
	t.set(0, OpCache, ArgNone).
		set(1, OpPopTop, ArgNone).
		set(2, OpPushNull, ArgNone).
		set(9, OpNop, ArgNone).
		set(10, OpUnaryPositive, ArgNone).
		set(11, OpUnaryNegative, ArgNone).
		set(12, OpUnaryNot, ArgNone).
		set(15, OpUnaryInvert, ArgNone).
		cached(25, OpBinarySubscr, ArgNone, 4).
		set(30, OpGetLen, ArgNone).
		set(31, OpMatchMapping, ArgNone).
		set(32, OpMatchSequence, ArgNone).
		set(33, OpMatchKeys, ArgNone).
		set(35, OpPushExcInfo, ArgNone).
		set(36, OpCheckExcMatch, ArgNone).
		set(37, OpCheckEgMatch, ArgNone).
		set(49, OpWithExceptStart, ArgNone).
		set(50, OpGetAiter, ArgNone).
		set(51, OpGetAnext, ArgNone).
		set(52, OpBeforeAsyncWith, ArgNone).
		set(53, OpBeforeWith, ArgNone).
		set(54, OpEndAsyncFor, ArgNone).
		cached(60, OpStoreSubscr, ArgNone, 1).
		set(61, OpDeleteSubscr, ArgNone).
		set(68, OpGetIter, ArgNone).
		set(69, OpGetYieldFromIter, ArgNone).
		set(70, OpPrintExpr, ArgNone).
		set(71, OpLoadBuildClass, ArgNone).
		set(74, OpLoadAssertionError, ArgNone).
		set(75, OpReturnGenerator, ArgNone).
		set(82, OpListToTuple, ArgNone).
		set(83, OpReturnValue, ArgNone).
		set(84, OpImportStar, ArgNone).
		set(85, OpSetupAnnotations, ArgNone).
		set(86, OpYieldValue, ArgNone).
		set(87, OpAsyncGenWrap, ArgNone).
		set(88, OpPrepReraiseStar, ArgNone).
		set(89, OpPopExcept, ArgNone).
		set(90, OpStoreName, ArgName).
		set(91, OpDeleteName, ArgName).
		cached(92, OpUnpackSequence, ArgPlain, 1).
		set(93, OpForIter, ArgJumpRel).
		set(94, OpUnpackEx, ArgPlain).
		cached(95, OpStoreAttr, ArgName, 4).
		set(96, OpDeleteAttr, ArgName).
		set(97, OpStoreGlobal, ArgName).
		set(98, OpDeleteGlobal, ArgName).
		set(99, OpSwap, ArgPlain).
		set(100, OpLoadConst, ArgConst).
		set(101, OpLoadName, ArgName).
		set(102, OpBuildTuple, ArgPlain).
		set(103, OpBuildList, ArgPlain).
		set(104, OpBuildSet, ArgPlain).
		set(105, OpBuildMap, ArgPlain).
		cached(106, OpLoadAttr, ArgName, 4).
		cached(107, OpCompareOp, ArgCompare, 2).
		set(108, OpImportName, ArgName).
		set(109, OpImportFrom, ArgName).
		set(110, OpJumpForward, ArgJumpRel).
		set(111, OpJumpIfFalseOrPop, ArgJumpRel).
		set(112, OpJumpIfTrueOrPop, ArgJumpRel).
		set(114, OpPopJumpForwardIfFalse, ArgJumpRel).
		set(115, OpPopJumpForwardIfTrue, ArgJumpRel).
		cached(116, OpLoadGlobal, ArgName, 5).
		set(117, OpIsOp, ArgPlain).
		set(118, OpContainsOp, ArgPlain).
		set(119, OpReraise, ArgPlain).
		set(120, OpCopy, ArgPlain).
		cached(122, OpBinaryOp, ArgBinaryOp, 1).
		set(123, OpSend, ArgJumpRel).
		set(124, OpLoadFast, ArgLocal).
		set(125, OpStoreFast, ArgLocal).
		set(126, OpDeleteFast, ArgLocal).
		set(128, OpPopJumpForwardIfNotNone, ArgJumpRel).
		set(129, OpPopJumpForwardIfNone, ArgJumpRel).
		set(130, OpRaiseVarargs, ArgPlain).
		set(131, OpGetAwaitable, ArgPlain).
		set(132, OpMakeFunction, ArgPlain).
		set(133, OpBuildSlice, ArgPlain).
		back(134, OpJumpBackwardNoInterrupt).
		set(135, OpMakeCell, ArgFree).
		set(136, OpLoadClosure, ArgFree).
		set(137, OpLoadDeref, ArgFree).
		set(138, OpStoreDeref, ArgFree).
		set(139, OpDeleteDeref, ArgFree).
		back(140, OpJumpBackward).
		set(142, OpCallFunctionEx, ArgPlain).
		set(144, OpExtendedArg, ArgPlain).
		set(145, OpListAppend, ArgPlain).
		set(146, OpSetAdd, ArgPlain).
		set(147, OpMapAdd, ArgPlain).
		set(148, OpLoadClassDeref, ArgFree).
		set(149, OpCopyFreeVars, ArgPlain).
		set(151, OpResume, ArgPlain).
		set(152, OpMatchClass, ArgPlain).
		set(155, OpFormatValue, ArgPlain).
		set(156, OpBuildConstKeyMap, ArgPlain).
		set(157, OpBuildString, ArgPlain).
		cached(160, OpLoadMethod, ArgName, 10).
		set(162, OpListExtend, ArgPlain).
		set(163, OpSetUpdate, ArgPlain).
		set(164, OpDictMerge, ArgPlain).
		set(165, OpDictUpdate, ArgPlain).
		cached(166, OpPrecall, ArgPlain, 1).
		cached(171, OpCall, ArgPlain, 4).
		set(172, OpKwNames, ArgConst).
		back(173, OpPopJumpBackwardIfNotNone).
		back(174, OpPopJumpBackwardIfNone).
		back(175, OpPopJumpBackwardIfFalse).
		back(176, OpPopJumpBackwardIfTrue)
	return t
}

func table312() *OpTable {
	t := table311().clone()
	t.remove(OpUnaryPositive, OpPrintExpr, OpAsyncGenWrap, OpPrepReraiseStar,
		OpJumpIfFalseOrPop, OpJumpIfTrueOrPop, OpLoadMethod, OpPrecall, OpKwNames,
		OpPopJumpForwardIfFalse, OpPopJumpForwardIfTrue, OpPopJumpForwardIfNone, OpPopJumpForwardIfNotNone,
		OpPopJumpBackwardIfFalse, OpPopJumpBackwardIfTrue, OpPopJumpBackwardIfNone, OpPopJumpBackwardIfNotNone,
		OpYieldValue, OpLoadClassDeref, OpImportStar, OpListToTuple)
	t.set(3, OpInterpreterExit, ArgNone).
		set(4, OpEndFor, ArgNone).
		set(5, OpEndSend, ArgNone).
		set(17, OpReserved, ArgNone).
		cached(25, OpBinarySubscr, ArgNone, 1).
		set(26, OpBinarySlice, ArgNone).
		set(27, OpStoreSlice, ArgNone).
		set(55, OpCleanupThrow, ArgNone).
		set(87, OpLoadLocals, ArgNone).
		cached(93, OpForIter, ArgJumpRel, 1).
		cached(106, OpLoadAttr, ArgName, 9).
		cached(107, OpCompareOp, ArgCompare, 1).
		set(114, OpPopJumpIfFalse, ArgJumpRel).
		set(115, OpPopJumpIfTrue, ArgJumpRel).
		cached(116, OpLoadGlobal, ArgName, 4).
		set(121, OpReturnConst, ArgConst).
		cached(123, OpSend, ArgJumpRel, 1).
		set(127, OpLoadFastCheck, ArgLocal).
		set(128, OpPopJumpIfNotNone, ArgJumpRel).
		set(129, OpPopJumpIfNone, ArgJumpRel).
		cached(141, OpLoadSuperAttr, ArgName, 1).
		set(143, OpLoadFastAndClear, ArgLocal).
		set(150, OpYieldValue, ArgPlain).
		cached(171, OpCall, ArgPlain, 3).
		set(173, OpCallIntrinsic1, ArgIntrinsic).
		set(174, OpCallIntrinsic2, ArgIntrinsic).
		set(175, OpLoadFromDictOrGlobals, ArgName).
		set(176, OpLoadFromDictOrDeref, ArgFree)
	return t
}

// table313 is a fresh numbering: 3.13 sorted the opcodes by name.
func table313() *OpTable {
	t := newTable()
	t.set(0, OpCache, ArgNone).
		set(1, OpBeforeAsyncWith, ArgNone).
		set(2, OpBeforeWith, ArgNone).
		set(4, OpBinarySlice, ArgNone).
		cached(5, OpBinarySubscr, ArgNone, 1).
		set(6, OpCheckEgMatch, ArgNone).
		set(7, OpCheckExcMatch, ArgNone).
		set(8, OpCleanupThrow, ArgNone).
		set(9, OpDeleteSubscr, ArgNone).
		set(10, OpEndAsyncFor, ArgNone).
		set(11, OpEndFor, ArgNone).
		set(12, OpEndSend, ArgNone).
		set(13, OpExitInitCheck, ArgNone).
		set(14, OpFormatSimple, ArgNone).
		set(15, OpFormatWithSpec, ArgNone).
		set(16, OpGetAiter, ArgNone).
		set(17, OpReserved, ArgNone).
		set(18, OpGetAnext, ArgNone).
		set(19, OpGetIter, ArgNone).
		set(20, OpGetLen, ArgNone).
		set(21, OpGetYieldFromIter, ArgNone).
		set(22, OpInterpreterExit, ArgNone).
		set(23, OpLoadAssertionError, ArgNone).
		set(24, OpLoadBuildClass, ArgNone).
		set(25, OpLoadLocals, ArgNone).
		set(26, OpMakeFunction, ArgNone).
		set(27, OpMatchKeys, ArgNone).
		set(28, OpMatchMapping, ArgNone).
		set(29, OpMatchSequence, ArgNone).
		set(30, OpNop, ArgNone).
		set(31, OpPopExcept, ArgNone).
		set(32, OpPopTop, ArgNone).
		set(33, OpPushExcInfo, ArgNone).
		set(34, OpPushNull, ArgNone).
		set(35, OpReturnGenerator, ArgNone).
		set(36, OpReturnValue, ArgNone).
		set(37, OpSetupAnnotations, ArgNone).
		set(38, OpStoreSlice, ArgNone).
		cached(39, OpStoreSubscr, ArgNone, 1).
		cached(40, OpToBool, ArgNone, 3).
		set(41, OpUnaryInvert, ArgNone).
		set(42, OpUnaryNegative, ArgNone).
		set(43, OpUnaryNot, ArgNone).
		set(44, OpWithExceptStart, ArgNone).
		cached(45, OpBinaryOp, ArgBinaryOp, 1).
		set(46, OpBuildConstKeyMap, ArgPlain).
		set(47, OpBuildList, ArgPlain).
		set(48, OpBuildMap, ArgPlain).
		set(49, OpBuildSet, ArgPlain).
		set(50, OpBuildSlice, ArgPlain).
		set(51, OpBuildString, ArgPlain).
		set(52, OpBuildTuple, ArgPlain).
		cached(53, OpCall, ArgPlain, 3).
		set(54, OpCallFunctionEx, ArgPlain).
		set(55, OpCallIntrinsic1, ArgIntrinsic).
		set(56, OpCallIntrinsic2, ArgIntrinsic).
		set(57, OpCallKw, ArgPlain).
		cached(58, OpCompareOp, ArgCompare, 1).
		cached(59, OpContainsOp, ArgPlain, 1).
		set(60, OpConvertValue, ArgPlain).
		set(61, OpCopy, ArgPlain).
		set(62, OpCopyFreeVars, ArgPlain).
		set(63, OpDeleteAttr, ArgName).
		set(64, OpDeleteDeref, ArgFree).
		set(65, OpDeleteFast, ArgLocal).
		set(66, OpDeleteGlobal, ArgName).
		set(67, OpDeleteName, ArgName).
		set(68, OpDictMerge, ArgPlain).
		set(69, OpDictUpdate, ArgPlain).
		set(70, OpEnterExecutor, ArgPlain).
		set(71, OpExtendedArg, ArgPlain).
		cached(72, OpForIter, ArgJumpRel, 1).
		set(73, OpGetAwaitable, ArgPlain).
		set(74, OpImportFrom, ArgName).
		set(75, OpImportName, ArgName).
		set(76, OpIsOp, ArgPlain).
		setInfo(77, OpInfo{Op: OpJumpBackward, Arg: ArgJumpRel, Backward: true, Caches: 1}).
		back(78, OpJumpBackwardNoInterrupt).
		set(79, OpJumpForward, ArgJumpRel).
		set(80, OpListAppend, ArgPlain).
		set(81, OpListExtend, ArgPlain).
		cached(82, OpLoadAttr, ArgName, 9).
		set(83, OpLoadConst, ArgConst).
		set(84, OpLoadDeref, ArgFree).
		set(85, OpLoadFast, ArgLocal).
		set(86, OpLoadFastAndClear, ArgLocal).
		set(87, OpLoadFastCheck, ArgLocal).
		set(88, OpLoadFastLoadFast, ArgLocalPair).
		set(89, OpLoadFromDictOrDeref, ArgFree).
		set(90, OpLoadFromDictOrGlobals, ArgName).
		cached(91, OpLoadGlobal, ArgName, 4).
		set(92, OpLoadName, ArgName).
		cached(93, OpLoadSuperAttr, ArgName, 1).
		set(94, OpMakeCell, ArgFree).
		set(95, OpMapAdd, ArgPlain).
		set(96, OpMatchClass, ArgPlain).
		cached(97, OpPopJumpIfFalse, ArgJumpRel, 1).
		cached(98, OpPopJumpIfNone, ArgJumpRel, 1).
		cached(99, OpPopJumpIfNotNone, ArgJumpRel, 1).
		cached(100, OpPopJumpIfTrue, ArgJumpRel, 1).
		set(101, OpRaiseVarargs, ArgPlain).
		set(102, OpReraise, ArgPlain).
		set(103, OpReturnConst, ArgConst).
		cached(104, OpSend, ArgJumpRel, 1).
		set(105, OpSetAdd, ArgPlain).
		set(106, OpSetFunctionAttribute, ArgPlain).
		set(107, OpSetUpdate, ArgPlain).
		cached(108, OpStoreAttr, ArgName, 4).
		set(109, OpStoreDeref, ArgFree).
		set(110, OpStoreFast, ArgLocal).
		set(111, OpStoreFastLoadFast, ArgLocalPair).
		set(112, OpStoreFastStoreFast, ArgLocalPair).
		set(113, OpStoreGlobal, ArgName).
		set(114, OpStoreName, ArgName).
		set(115, OpSwap, ArgPlain).
		set(116, OpUnpackEx, ArgPlain).
		cached(117, OpUnpackSequence, ArgPlain, 1).
		set(118, OpYieldValue, ArgPlain).
		set(149, OpResume, ArgPlain)
	return t
}
