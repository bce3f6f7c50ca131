package bytecode

import (
	"fmt"
	"sync"
)

// Version describes one instruction-set revision: its identifiers, its
// opcode table and the encoding rules that follow from its family.
type Version struct {
	Major int
	Minor int

	table *OpTable
}

// String returns "major.minor".
func (v *Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Table returns the opcode metadata for the revision.
func (v *Version) Table() *OpTable { return v.table }

// AtLeast reports whether v is major.minor or newer.
func (v *Version) AtLeast(major, minor int) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// Before reports whether v is older than major.minor.
func (v *Version) Before(major, minor int) bool { return !v.AtLeast(major, minor) }

// WordCode reports whether every instruction is two bytes wide.
func (v *Version) WordCode() bool { return v.AtLeast(3, 6) }

// JumpsInWords reports whether jump operands count two-byte code units.
func (v *Version) JumpsInWords() bool { return v.AtLeast(3, 10) }

// HasExceptionTable reports whether handlers are described by a side
// table instead of SETUP_* instructions.
func (v *Version) HasExceptionTable() bool { return v.AtLeast(3, 11) }

// InstructionSize returns the byte width of an instruction, excluding
// inline caches and EXTENDED_ARG prefixes.
func (v *Version) InstructionSize(hasArg bool) int {
	if v.WordCode() {
		return 2
	}
	if hasArg {
		return 3
	}
	return 1
}

// ExtendedArgShift is the shift applied to an EXTENDED_ARG operand
// before it is combined with the next instruction's operand.
func (v *Version) ExtendedArgShift() uint {
	if v.WordCode() {
		return 8
	}
	return 16
}

// Supported versions, oldest first.
var supported = [][2]int{
	{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4}, {1, 5}, {1, 6},
	{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4}, {2, 5}, {2, 6}, {2, 7},
	{3, 0}, {3, 1}, {3, 2}, {3, 3}, {3, 4}, {3, 5}, {3, 6}, {3, 7}, {3, 8}, {3, 9},
	{3, 10}, {3, 11}, {3, 12}, {3, 13},
}

var (
	versionsOnce sync.Once
	versions     map[[2]int]*Version
)

func buildVersions() {
	versions = make(map[[2]int]*Version, len(supported))
	for _, mm := range supported {
		versions[mm] = &Version{Major: mm[0], Minor: mm[1], table: tableFor(mm[0], mm[1])}
	}
}

func tableFor(major, minor int) *OpTable {
	switch major {
	case 1:
		t := table26().clone()
		t.set(127, OpSetLineno, ArgPlain)
		return t
	case 2:
		switch {
		case minor == 7:
			return table27()
		case minor < 3:
			t := table26().clone()
			t.set(127, OpSetLineno, ArgPlain)
			return t
		}
		return table26()
	}
	switch minor {
	case 5:
		return table35()
	case 6:
		return table36()
	case 7:
		return table37()
	case 8:
		return table38()
	case 9:
		return table39()
	case 10:
		return table310()
	case 11:
		return table311()
	case 12:
		return table312()
	case 13:
		return table313()
	}
	return table34(minor)
}

// LookupVersion returns the descriptor for major.minor. Revisions without
// an opcode table return ErrUnsupportedVersion.
func LookupVersion(major, minor int) (*Version, error) {
	versionsOnce.Do(buildVersions)
	v, ok := versions[[2]int{major, minor}]
	if !ok {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, major, minor)
	}
	return v, nil
}

// ParseVersion parses "major.minor" and looks it up.
func ParseVersion(s string) (*Version, error) {
	var major, minor int
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
	return LookupVersion(major, minor)
}

// Versions returns every supported descriptor, oldest first.
func Versions() []*Version {
	versionsOnce.Do(buildVersions)
	out := make([]*Version, 0, len(supported))
	for _, mm := range supported {
		out = append(out, versions[mm])
	}
	return out
}
