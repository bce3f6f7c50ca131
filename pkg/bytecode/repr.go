package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Repr renders a constant the way the source language's repr() would.
func (c Constant) Repr() string {
	switch c.Kind {
	case ConstNone:
		return "None"
	case ConstEllipsis:
		return "Ellipsis"
	case ConstBool:
		if c.Bool {
			return "True"
		}
		return "False"
	case ConstInt:
		if c.BigInt != "" {
			return c.BigInt
		}
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return FloatRepr(c.Float)
	case ConstComplex:
		imag := strings.TrimSuffix(FloatRepr(c.Imag), ".0") + "j"
		if c.Float == 0 && !math.Signbit(c.Float) {
			return imag
		}
		real := strings.TrimSuffix(FloatRepr(c.Float), ".0")
		if !strings.HasPrefix(imag, "-") {
			imag = "+" + imag
		}
		return "(" + real + imag + ")"
	case ConstString:
		s := StringRepr(c.Str)
		if c.Unicode {
			return "u" + s
		}
		return s
	case ConstBytes:
		return BytesRepr(c.Bytes)
	case ConstTuple:
		if len(c.Items) == 1 {
			return "(" + c.Items[0].Repr() + ",)"
		}
		return "(" + joinRepr(c.Items) + ")"
	case ConstList:
		return "[" + joinRepr(c.Items) + "]"
	case ConstSet:
		if len(c.Items) == 0 {
			return "set()"
		}
		return "{" + joinRepr(c.Items) + "}"
	case ConstFrozenSet:
		if len(c.Items) == 0 {
			return "frozenset()"
		}
		return "frozenset({" + joinRepr(c.Items) + "})"
	case ConstDict:
		parts := make([]string, len(c.Items))
		for i := range c.Items {
			v := "None"
			if i < len(c.Values) {
				v = c.Values[i].Repr()
			}
			parts[i] = c.Items[i].Repr() + ": " + v
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ConstCode:
		if c.Code == nil {
			return "<code object>"
		}
		return fmt.Sprintf("<code object %s>", c.Code.Name)
	}
	return fmt.Sprintf("<%s>", c.Kind)
}

func joinRepr(items []Constant) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Repr()
	}
	return strings.Join(parts, ", ")
}

// FloatRepr formats f as the shortest round-tripping literal, switching to
// exponent form outside [1e-4, 1e16).
func FloatRepr(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.IndexByte(e, 'e')
	exp, _ := strconv.Atoi(e[i+1:])
	if f != 0 && (exp < -4 || exp >= 16) {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// StringRepr quotes s with single quotes unless it contains a single
// quote and no double quote.
func StringRepr(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		case r < 0x80 || unicode.IsPrint(r):
			sb.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(&sb, `\x%02x`, r)
		case r < 0x10000:
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			fmt.Fprintf(&sb, `\U%08x`, r)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// BytesRepr renders b as a bytes literal.
func BytesRepr(b []byte) string {
	quote := byte('\'')
	if strings.IndexByte(string(b), '\'') >= 0 && strings.IndexByte(string(b), '"') < 0 {
		quote = '"'
	}
	var sb strings.Builder
	sb.WriteString("b")
	sb.WriteByte(quote)
	for _, c := range b {
		switch {
		case c == quote || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}
