package bytecode

import "fmt"

// Exception tables are a sequence of entries, each four varints: start,
// length, target (all in code units) and depth<<1|lasti. A varint is a
// run of 6-bit chunks, most significant first; bit 6 marks continuation
// and bit 7 marks the first byte of an entry.

const (
	varintContinue = 0x40
	entryStart     = 0x80
)

// ParseExceptionTable decodes a raw exception table into byte-offset entries.
func ParseExceptionTable(raw []byte) ([]ExceptionEntry, error) {
	var out []ExceptionEntry
	pos := 0
	next := func() (int, error) {
		if pos >= len(raw) {
			return 0, fmt.Errorf("exception table at %d: %w", pos, ErrTruncated)
		}
		b := raw[pos]
		pos++
		val := int(b & 0x3f)
		for b&varintContinue != 0 {
			if pos >= len(raw) {
				return 0, fmt.Errorf("exception table at %d: %w", pos, ErrTruncated)
			}
			b = raw[pos]
			pos++
			val = val<<6 | int(b&0x3f)
		}
		return val, nil
	}
	for pos < len(raw) {
		if raw[pos]&entryStart == 0 {
			return out, fmt.Errorf("exception table at %d: missing entry marker", pos)
		}
		var f [4]int
		for i := range f {
			v, err := next()
			if err != nil {
				return out, err
			}
			f[i] = v
		}
		out = append(out, ExceptionEntry{
			Start:  f[0] * 2,
			End:    (f[0] + f[1]) * 2,
			Target: f[2] * 2,
			Depth:  f[3] >> 1,
			Lasti:  f[3]&1 != 0,
		})
	}
	return out, nil
}

// EncodeExceptionTable is the inverse of ParseExceptionTable.
func EncodeExceptionTable(entries []ExceptionEntry) []byte {
	var buf []byte
	for _, e := range entries {
		dl := e.Depth << 1
		if e.Lasti {
			dl |= 1
		}
		first := len(buf)
		buf = appendVarint(buf, e.Start/2)
		buf[first] |= entryStart
		buf = appendVarint(buf, (e.End-e.Start)/2)
		buf = appendVarint(buf, e.Target/2)
		buf = appendVarint(buf, dl)
	}
	return buf
}

func appendVarint(buf []byte, v int) []byte {
	var chunks []byte
	for {
		chunks = append(chunks, byte(v&0x3f))
		v >>= 6
		if v == 0 {
			break
		}
	}
	for i := len(chunks) - 1; i >= 0; i-- {
		b := chunks[i]
		if i > 0 {
			b |= varintContinue
		}
		buf = append(buf, b)
	}
	return buf
}

// HandlerFor returns the entry covering offset. Compilers emit
// non-overlapping ranges, so the first match is the only one.
func HandlerFor(entries []ExceptionEntry, offset int) (ExceptionEntry, bool) {
	for _, e := range entries {
		if e.Contains(offset) {
			return e, true
		}
	}
	return ExceptionEntry{}, false
}
