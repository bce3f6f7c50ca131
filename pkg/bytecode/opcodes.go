package bytecode

import "fmt"

// Op is a version-independent instruction mnemonic.
// Each instruction-set revision maps its numeric opcodes onto this space
// through an OpTable; the decompiler only ever dispatches on Op.
type Op uint16

const (
	OpInvalid Op = iota

	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OpStopCode
	OpPopTop
	OpRotTwo
	OpRotThree
	OpRotFour
	OpRotN
	OpDupTop
	OpDupTopTwo
	OpDupTopX
	OpNop
	OpCache
	OpPushNull
	OpSwap
	OpCopy
	OpExtendedArg
	OpResume
	OpReserved
	OpInterpreterExit

	// ========================================================================
	// Unary and binary operators
	// ========================================================================

	OpUnaryPositive
	OpUnaryNegative
	OpUnaryNot
	OpUnaryConvert
	OpUnaryInvert
	OpToBool
	OpBinaryPower
	OpBinaryMultiply
	OpBinaryMatrixMultiply
	OpBinaryDivide
	OpBinaryModulo
	OpBinaryAdd
	OpBinarySubtract
	OpBinaryFloorDivide
	OpBinaryTrueDivide
	OpBinaryLshift
	OpBinaryRshift
	OpBinaryAnd
	OpBinaryXor
	OpBinaryOr
	OpInplacePower
	OpInplaceMultiply
	OpInplaceMatrixMultiply
	OpInplaceDivide
	OpInplaceModulo
	OpInplaceAdd
	OpInplaceSubtract
	OpInplaceFloorDivide
	OpInplaceTrueDivide
	OpInplaceLshift
	OpInplaceRshift
	OpInplaceAnd
	OpInplaceXor
	OpInplaceOr
	OpBinaryOp

	// ========================================================================
	// Subscripts and slices
	// ========================================================================

	OpBinarySubscr
	OpStoreSubscr
	OpDeleteSubscr
	OpSlice0
	OpSlice1
	OpSlice2
	OpSlice3
	OpStoreSlice0
	OpStoreSlice1
	OpStoreSlice2
	OpStoreSlice3
	OpDeleteSlice0
	OpDeleteSlice1
	OpDeleteSlice2
	OpDeleteSlice3
	OpBuildSlice
	OpBinarySlice
	OpStoreSlice

	// ========================================================================
	// Comparisons
	// ========================================================================

	OpCompareOp
	OpIsOp
	OpContainsOp
	OpCheckExcMatch
	OpCheckEgMatch
	OpJumpIfNotExcMatch

	// ========================================================================
	// Loads and stores
	// ========================================================================

	OpLoadConst
	OpReturnConst
	OpLoadName
	OpStoreName
	OpDeleteName
	OpLoadGlobal
	OpStoreGlobal
	OpDeleteGlobal
	OpLoadFast
	OpLoadFastCheck
	OpLoadFastAndClear
	OpStoreFast
	OpDeleteFast
	OpLoadAttr
	OpStoreAttr
	OpDeleteAttr
	OpLoadMethod
	OpLoadSuperAttr
	OpLoadClosure
	OpLoadDeref
	OpLoadClassDeref
	OpStoreDeref
	OpDeleteDeref
	OpMakeCell
	OpCopyFreeVars
	OpLoadLocals
	OpLoadFromDictOrGlobals
	OpLoadFromDictOrDeref
	OpLoadFastLoadFast
	OpStoreFastLoadFast
	OpStoreFastStoreFast
	OpLoadAssertionError
	OpLoadBuildClass
	OpStoreAnnotation
	OpSetupAnnotations

	// ========================================================================
	// Calls, functions and classes
	// ========================================================================

	OpCallFunction
	OpCallFunctionVar
	OpCallFunctionKw
	OpCallFunctionVarKw
	OpCallFunctionEx
	OpCallMethod
	OpPrecall
	OpCall
	OpKwNames
	OpCallIntrinsic1
	OpCallIntrinsic2
	OpMakeFunction
	OpMakeClosure
	OpBuildClass
	OpCallKw
	OpSetFunctionAttribute
	OpExitInitCheck

	// ========================================================================
	// Collections
	// ========================================================================

	OpBuildTuple
	OpBuildList
	OpBuildSet
	OpBuildMap
	OpBuildConstKeyMap
	OpBuildString
	OpStoreMap
	OpListAppend
	OpSetAdd
	OpMapAdd
	OpListExtend
	OpSetUpdate
	OpDictMerge
	OpDictUpdate
	OpListToTuple
	OpBuildTupleUnpack
	OpBuildTupleUnpackWithCall
	OpBuildListUnpack
	OpBuildSetUnpack
	OpBuildMapUnpack
	OpBuildMapUnpackWithCall
	OpFormatValue
	OpFormatSimple
	OpFormatWithSpec
	OpConvertValue

	// ========================================================================
	// Unpacking
	// ========================================================================

	OpUnpackSequence
	OpUnpackEx

	// ========================================================================
	// Control flow
	// ========================================================================

	OpJumpForward
	OpJumpAbsolute
	OpJumpBackward
	OpJumpBackwardNoInterrupt
	OpJumpIfFalse
	OpJumpIfTrue
	OpJumpIfFalseOrPop
	OpJumpIfTrueOrPop
	OpPopJumpIfFalse
	OpPopJumpIfTrue
	OpPopJumpIfNone
	OpPopJumpIfNotNone
	OpPopJumpForwardIfFalse
	OpPopJumpForwardIfTrue
	OpPopJumpForwardIfNone
	OpPopJumpForwardIfNotNone
	OpPopJumpBackwardIfFalse
	OpPopJumpBackwardIfTrue
	OpPopJumpBackwardIfNone
	OpPopJumpBackwardIfNotNone
	OpGetIter
	OpForIter
	OpEndFor
	OpBreakLoop
	OpContinueLoop
	OpReturnValue

	// ========================================================================
	// Block setup and exception handling
	// ========================================================================

	OpSetupLoop
	OpSetupExcept
	OpSetupFinally
	OpSetupWith
	OpSetupAsyncWith
	OpPopBlock
	OpPopExcept
	OpEndFinally
	OpBeginFinally
	OpCallFinally
	OpPopFinally
	OpRaiseVarargs
	OpReraise
	OpPushExcInfo
	OpPrepReraiseStar
	OpWithCleanup
	OpWithCleanupStart
	OpWithCleanupFinish
	OpWithExceptStart
	OpBeforeWith
	OpBeforeAsyncWith
	OpCleanupThrow

	// ========================================================================
	// Generators and coroutines
	// ========================================================================

	OpYieldValue
	OpYieldFrom
	OpGetYieldFromIter
	OpGetAwaitable
	OpGetAiter
	OpGetAnext
	OpEndAsyncFor
	OpSend
	OpEndSend
	OpReturnGenerator
	OpGenStart
	OpAsyncGenWrap

	// ========================================================================
	// Pattern matching
	// ========================================================================

	OpGetLen
	OpMatchMapping
	OpMatchSequence
	OpMatchKeys
	OpMatchClass
	OpCopyDictWithoutKeys

	// ========================================================================
	// Imports and legacy statements
	// ========================================================================

	OpImportName
	OpImportFrom
	OpImportStar
	OpPrintExpr
	OpPrintItem
	OpPrintNewline
	OpPrintItemTo
	OpPrintNewlineTo
	OpExecStmt
	OpSetLineno
	OpEnterExecutor

	numOps
)

// NumOps is the size of the mnemonic space, used to size dispatch tables.
const NumOps = int(numOps)

var opNames = [numOps]string{
	OpInvalid:         "INVALID",
	OpStopCode:        "STOP_CODE",
	OpPopTop:          "POP_TOP",
	OpRotTwo:          "ROT_TWO",
	OpRotThree:        "ROT_THREE",
	OpRotFour:         "ROT_FOUR",
	OpRotN:            "ROT_N",
	OpDupTop:          "DUP_TOP",
	OpDupTopTwo:       "DUP_TOP_TWO",
	OpDupTopX:         "DUP_TOPX",
	OpNop:             "NOP",
	OpCache:           "CACHE",
	OpPushNull:        "PUSH_NULL",
	OpSwap:            "SWAP",
	OpCopy:            "COPY",
	OpExtendedArg:     "EXTENDED_ARG",
	OpResume:          "RESUME",
	OpReserved:        "RESERVED",
	OpInterpreterExit: "INTERPRETER_EXIT",

	OpUnaryPositive:         "UNARY_POSITIVE",
	OpUnaryNegative:         "UNARY_NEGATIVE",
	OpUnaryNot:              "UNARY_NOT",
	OpUnaryConvert:          "UNARY_CONVERT",
	OpUnaryInvert:           "UNARY_INVERT",
	OpToBool:                "TO_BOOL",
	OpBinaryPower:           "BINARY_POWER",
	OpBinaryMultiply:        "BINARY_MULTIPLY",
	OpBinaryMatrixMultiply:  "BINARY_MATRIX_MULTIPLY",
	OpBinaryDivide:          "BINARY_DIVIDE",
	OpBinaryModulo:          "BINARY_MODULO",
	OpBinaryAdd:             "BINARY_ADD",
	OpBinarySubtract:        "BINARY_SUBTRACT",
	OpBinaryFloorDivide:     "BINARY_FLOOR_DIVIDE",
	OpBinaryTrueDivide:      "BINARY_TRUE_DIVIDE",
	OpBinaryLshift:          "BINARY_LSHIFT",
	OpBinaryRshift:          "BINARY_RSHIFT",
	OpBinaryAnd:             "BINARY_AND",
	OpBinaryXor:             "BINARY_XOR",
	OpBinaryOr:              "BINARY_OR",
	OpInplacePower:          "INPLACE_POWER",
	OpInplaceMultiply:       "INPLACE_MULTIPLY",
	OpInplaceMatrixMultiply: "INPLACE_MATRIX_MULTIPLY",
	OpInplaceDivide:         "INPLACE_DIVIDE",
	OpInplaceModulo:         "INPLACE_MODULO",
	OpInplaceAdd:            "INPLACE_ADD",
	OpInplaceSubtract:       "INPLACE_SUBTRACT",
	OpInplaceFloorDivide:    "INPLACE_FLOOR_DIVIDE",
	OpInplaceTrueDivide:     "INPLACE_TRUE_DIVIDE",
	OpInplaceLshift:         "INPLACE_LSHIFT",
	OpInplaceRshift:         "INPLACE_RSHIFT",
	OpInplaceAnd:            "INPLACE_AND",
	OpInplaceXor:            "INPLACE_XOR",
	OpInplaceOr:             "INPLACE_OR",
	OpBinaryOp:              "BINARY_OP",

	OpBinarySubscr: "BINARY_SUBSCR",
	OpStoreSubscr:  "STORE_SUBSCR",
	OpDeleteSubscr: "DELETE_SUBSCR",
	OpSlice0:       "SLICE+0",
	OpSlice1:       "SLICE+1",
	OpSlice2:       "SLICE+2",
	OpSlice3:       "SLICE+3",
	OpStoreSlice0:  "STORE_SLICE+0",
	OpStoreSlice1:  "STORE_SLICE+1",
	OpStoreSlice2:  "STORE_SLICE+2",
	OpStoreSlice3:  "STORE_SLICE+3",
	OpDeleteSlice0: "DELETE_SLICE+0",
	OpDeleteSlice1: "DELETE_SLICE+1",
	OpDeleteSlice2: "DELETE_SLICE+2",
	OpDeleteSlice3: "DELETE_SLICE+3",
	OpBuildSlice:   "BUILD_SLICE",
	OpBinarySlice:  "BINARY_SLICE",
	OpStoreSlice:   "STORE_SLICE",

	OpCompareOp:         "COMPARE_OP",
	OpIsOp:              "IS_OP",
	OpContainsOp:        "CONTAINS_OP",
	OpCheckExcMatch:     "CHECK_EXC_MATCH",
	OpCheckEgMatch:      "CHECK_EG_MATCH",
	OpJumpIfNotExcMatch: "JUMP_IF_NOT_EXC_MATCH",

	OpLoadConst:             "LOAD_CONST",
	OpReturnConst:           "RETURN_CONST",
	OpLoadName:              "LOAD_NAME",
	OpStoreName:             "STORE_NAME",
	OpDeleteName:            "DELETE_NAME",
	OpLoadGlobal:            "LOAD_GLOBAL",
	OpStoreGlobal:           "STORE_GLOBAL",
	OpDeleteGlobal:          "DELETE_GLOBAL",
	OpLoadFast:              "LOAD_FAST",
	OpLoadFastCheck:         "LOAD_FAST_CHECK",
	OpLoadFastAndClear:      "LOAD_FAST_AND_CLEAR",
	OpStoreFast:             "STORE_FAST",
	OpDeleteFast:            "DELETE_FAST",
	OpLoadAttr:              "LOAD_ATTR",
	OpStoreAttr:             "STORE_ATTR",
	OpDeleteAttr:            "DELETE_ATTR",
	OpLoadMethod:            "LOAD_METHOD",
	OpLoadSuperAttr:         "LOAD_SUPER_ATTR",
	OpLoadClosure:           "LOAD_CLOSURE",
	OpLoadDeref:             "LOAD_DEREF",
	OpLoadClassDeref:        "LOAD_CLASSDEREF",
	OpStoreDeref:            "STORE_DEREF",
	OpDeleteDeref:           "DELETE_DEREF",
	OpMakeCell:              "MAKE_CELL",
	OpCopyFreeVars:          "COPY_FREE_VARS",
	OpLoadLocals:            "LOAD_LOCALS",
	OpLoadFromDictOrGlobals: "LOAD_FROM_DICT_OR_GLOBALS",
	OpLoadFromDictOrDeref:   "LOAD_FROM_DICT_OR_DEREF",
	OpLoadFastLoadFast:      "LOAD_FAST_LOAD_FAST",
	OpStoreFastLoadFast:     "STORE_FAST_LOAD_FAST",
	OpStoreFastStoreFast:    "STORE_FAST_STORE_FAST",
	OpLoadAssertionError:    "LOAD_ASSERTION_ERROR",
	OpLoadBuildClass:        "LOAD_BUILD_CLASS",
	OpStoreAnnotation:       "STORE_ANNOTATION",
	OpSetupAnnotations:      "SETUP_ANNOTATIONS",

	OpCallFunction:         "CALL_FUNCTION",
	OpCallFunctionVar:      "CALL_FUNCTION_VAR",
	OpCallFunctionKw:       "CALL_FUNCTION_KW",
	OpCallFunctionVarKw:    "CALL_FUNCTION_VAR_KW",
	OpCallFunctionEx:       "CALL_FUNCTION_EX",
	OpCallMethod:           "CALL_METHOD",
	OpPrecall:              "PRECALL",
	OpCall:                 "CALL",
	OpKwNames:              "KW_NAMES",
	OpCallIntrinsic1:       "CALL_INTRINSIC_1",
	OpCallIntrinsic2:       "CALL_INTRINSIC_2",
	OpMakeFunction:         "MAKE_FUNCTION",
	OpMakeClosure:          "MAKE_CLOSURE",
	OpBuildClass:           "BUILD_CLASS",
	OpCallKw:               "CALL_KW",
	OpSetFunctionAttribute: "SET_FUNCTION_ATTRIBUTE",
	OpExitInitCheck:        "EXIT_INIT_CHECK",

	OpBuildTuple:               "BUILD_TUPLE",
	OpBuildList:                "BUILD_LIST",
	OpBuildSet:                 "BUILD_SET",
	OpBuildMap:                 "BUILD_MAP",
	OpBuildConstKeyMap:         "BUILD_CONST_KEY_MAP",
	OpBuildString:              "BUILD_STRING",
	OpStoreMap:                 "STORE_MAP",
	OpListAppend:               "LIST_APPEND",
	OpSetAdd:                   "SET_ADD",
	OpMapAdd:                   "MAP_ADD",
	OpListExtend:               "LIST_EXTEND",
	OpSetUpdate:                "SET_UPDATE",
	OpDictMerge:                "DICT_MERGE",
	OpDictUpdate:               "DICT_UPDATE",
	OpListToTuple:              "LIST_TO_TUPLE",
	OpBuildTupleUnpack:         "BUILD_TUPLE_UNPACK",
	OpBuildTupleUnpackWithCall: "BUILD_TUPLE_UNPACK_WITH_CALL",
	OpBuildListUnpack:          "BUILD_LIST_UNPACK",
	OpBuildSetUnpack:           "BUILD_SET_UNPACK",
	OpBuildMapUnpack:           "BUILD_MAP_UNPACK",
	OpBuildMapUnpackWithCall:   "BUILD_MAP_UNPACK_WITH_CALL",
	OpFormatValue:              "FORMAT_VALUE",
	OpFormatSimple:             "FORMAT_SIMPLE",
	OpFormatWithSpec:           "FORMAT_WITH_SPEC",
	OpConvertValue:             "CONVERT_VALUE",

	OpUnpackSequence: "UNPACK_SEQUENCE",
	OpUnpackEx:       "UNPACK_EX",

	OpJumpForward:              "JUMP_FORWARD",
	OpJumpAbsolute:             "JUMP_ABSOLUTE",
	OpJumpBackward:             "JUMP_BACKWARD",
	OpJumpBackwardNoInterrupt:  "JUMP_BACKWARD_NO_INTERRUPT",
	OpJumpIfFalse:              "JUMP_IF_FALSE",
	OpJumpIfTrue:               "JUMP_IF_TRUE",
	OpJumpIfFalseOrPop:         "JUMP_IF_FALSE_OR_POP",
	OpJumpIfTrueOrPop:          "JUMP_IF_TRUE_OR_POP",
	OpPopJumpIfFalse:           "POP_JUMP_IF_FALSE",
	OpPopJumpIfTrue:            "POP_JUMP_IF_TRUE",
	OpPopJumpIfNone:            "POP_JUMP_IF_NONE",
	OpPopJumpIfNotNone:         "POP_JUMP_IF_NOT_NONE",
	OpPopJumpForwardIfFalse:    "POP_JUMP_FORWARD_IF_FALSE",
	OpPopJumpForwardIfTrue:     "POP_JUMP_FORWARD_IF_TRUE",
	OpPopJumpForwardIfNone:     "POP_JUMP_FORWARD_IF_NONE",
	OpPopJumpForwardIfNotNone:  "POP_JUMP_FORWARD_IF_NOT_NONE",
	OpPopJumpBackwardIfFalse:   "POP_JUMP_BACKWARD_IF_FALSE",
	OpPopJumpBackwardIfTrue:    "POP_JUMP_BACKWARD_IF_TRUE",
	OpPopJumpBackwardIfNone:    "POP_JUMP_BACKWARD_IF_NONE",
	OpPopJumpBackwardIfNotNone: "POP_JUMP_BACKWARD_IF_NOT_NONE",
	OpGetIter:                  "GET_ITER",
	OpForIter:                  "FOR_ITER",
	OpEndFor:                   "END_FOR",
	OpBreakLoop:                "BREAK_LOOP",
	OpContinueLoop:             "CONTINUE_LOOP",
	OpReturnValue:              "RETURN_VALUE",

	OpSetupLoop:         "SETUP_LOOP",
	OpSetupExcept:       "SETUP_EXCEPT",
	OpSetupFinally:      "SETUP_FINALLY",
	OpSetupWith:         "SETUP_WITH",
	OpSetupAsyncWith:    "SETUP_ASYNC_WITH",
	OpPopBlock:          "POP_BLOCK",
	OpPopExcept:         "POP_EXCEPT",
	OpEndFinally:        "END_FINALLY",
	OpBeginFinally:      "BEGIN_FINALLY",
	OpCallFinally:       "CALL_FINALLY",
	OpPopFinally:        "POP_FINALLY",
	OpRaiseVarargs:      "RAISE_VARARGS",
	OpReraise:           "RERAISE",
	OpPushExcInfo:       "PUSH_EXC_INFO",
	OpPrepReraiseStar:   "PREP_RERAISE_STAR",
	OpWithCleanup:       "WITH_CLEANUP",
	OpWithCleanupStart:  "WITH_CLEANUP_START",
	OpWithCleanupFinish: "WITH_CLEANUP_FINISH",
	OpWithExceptStart:   "WITH_EXCEPT_START",
	OpBeforeWith:        "BEFORE_WITH",
	OpBeforeAsyncWith:   "BEFORE_ASYNC_WITH",
	OpCleanupThrow:      "CLEANUP_THROW",

	OpYieldValue:       "YIELD_VALUE",
	OpYieldFrom:        "YIELD_FROM",
	OpGetYieldFromIter: "GET_YIELD_FROM_ITER",
	OpGetAwaitable:     "GET_AWAITABLE",
	OpGetAiter:         "GET_AITER",
	OpGetAnext:         "GET_ANEXT",
	OpEndAsyncFor:      "END_ASYNC_FOR",
	OpSend:             "SEND",
	OpEndSend:          "END_SEND",
	OpReturnGenerator:  "RETURN_GENERATOR",
	OpGenStart:         "GEN_START",
	OpAsyncGenWrap:     "ASYNC_GEN_WRAP",

	OpGetLen:              "GET_LEN",
	OpMatchMapping:        "MATCH_MAPPING",
	OpMatchSequence:       "MATCH_SEQUENCE",
	OpMatchKeys:           "MATCH_KEYS",
	OpMatchClass:          "MATCH_CLASS",
	OpCopyDictWithoutKeys: "COPY_DICT_WITHOUT_KEYS",

	OpImportName:     "IMPORT_NAME",
	OpImportFrom:     "IMPORT_FROM",
	OpImportStar:     "IMPORT_STAR",
	OpPrintExpr:      "PRINT_EXPR",
	OpPrintItem:      "PRINT_ITEM",
	OpPrintNewline:   "PRINT_NEWLINE",
	OpPrintItemTo:    "PRINT_ITEM_TO",
	OpPrintNewlineTo: "PRINT_NEWLINE_TO",
	OpExecStmt:       "EXEC_STMT",
	OpSetLineno:      "SET_LINENO",
	OpEnterExecutor:  "ENTER_EXECUTOR",
}

// String returns the mnemonic of an op.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint16(op))
}

// OpByName returns the op for a mnemonic.
func OpByName(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for i, n := range opNames {
		if n != "" {
			m[n] = Op(i)
		}
	}
	return m
}()

// IsConditionalJump reports whether the op branches on a popped or
// inspected condition.
func (op Op) IsConditionalJump() bool {
	switch op {
	case OpJumpIfFalse, OpJumpIfTrue, OpJumpIfFalseOrPop, OpJumpIfTrueOrPop,
		OpPopJumpIfFalse, OpPopJumpIfTrue, OpPopJumpIfNone, OpPopJumpIfNotNone,
		OpPopJumpForwardIfFalse, OpPopJumpForwardIfTrue, OpPopJumpForwardIfNone, OpPopJumpForwardIfNotNone,
		OpPopJumpBackwardIfFalse, OpPopJumpBackwardIfTrue, OpPopJumpBackwardIfNone, OpPopJumpBackwardIfNotNone,
		OpJumpIfNotExcMatch:
		return true
	}
	return false
}

// IsUnconditionalJump reports whether the op always transfers control.
func (op Op) IsUnconditionalJump() bool {
	switch op {
	case OpJumpForward, OpJumpAbsolute, OpJumpBackward, OpJumpBackwardNoInterrupt, OpContinueLoop:
		return true
	}
	return false
}

// IsStore reports whether the op pops a value into a name, attribute or
// subscript target.
func (op Op) IsStore() bool {
	switch op {
	case OpStoreName, OpStoreGlobal, OpStoreFast, OpStoreDeref, OpStoreAttr, OpStoreSubscr, OpStoreFastStoreFast,
		OpStoreSlice0, OpStoreSlice1, OpStoreSlice2, OpStoreSlice3, OpStoreSlice:
		return true
	}
	return false
}

// IsReturn reports whether the op leaves the code object.
func (op Op) IsReturn() bool {
	return op == OpReturnValue || op == OpReturnConst
}
