// internal/token/geometry.go
package token

import "fmt"

// Kind is the classified token family.
type Kind uint8

const (
	KindNone Kind = iota
	KindEeprom
	KindFlash
)

func (k Kind) String() string {
	switch k {
	case KindEeprom:
		return "eeprom"
	case KindFlash:
		return "flash"
	default:
		return "none"
	}
}

// ParseKind is the inverse of String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "none", "":
		return KindNone, nil
	case "eeprom":
		return KindEeprom, nil
	case "flash":
		return KindFlash, nil
	default:
		return KindNone, fmt.Errorf("token: unknown kind %q", s)
	}
}

// EraseValue is what every byte reads back as after an erase.
const EraseValue byte = 0xFF

// Status register bits.
const (
	StatusBusy         uint8 = 0x01
	StatusWriteEnabled uint8 = 0x02
)

// Region is a protect-region code. Region 0 protects nothing; higher codes
// protect a growing top-aligned fraction of memory.
type Region uint8

const RegionNone Region = 0

// EEPROM regions.
const (
	EepromProtectQuarter Region = iota + 1
	EepromProtectHalf
	EepromProtectAll
)

// Flash regions.
const (
	FlashProtectSixteenth Region = iota + 1
	FlashProtectEighth
	FlashProtectQuarter
	FlashProtectHalf
	FlashProtectAll
)

// Geometry is the fixed layout of one token variant.
type Geometry struct {
	Kind    Kind
	PageLen uint32
	MemSize uint32
	// EraseLen is the erase granularity: sector for Flash, page for EEPROM.
	EraseLen uint32

	// Protect field: (sr >> ProtectOffset) & ProtectMask.
	ProtectOffset uint8
	ProtectMask   uint8

	// protectDiv[r] is the denominator of the protected fraction; 0 = none.
	protectDiv []uint32
	names      []string
}

const (
	EepromPageLen = 0x08
	EepromMemSize = 0x100

	FlashPageLen   = 0x100
	FlashSectorLen = 0x10000
)

// EepromGeometry returns the EEPROM layout for a part of memSize bytes.
// The frame format carries 9 address bits, so memSize is at most 512.
func EepromGeometry(memSize uint32) Geometry {
	if memSize == 0 {
		memSize = EepromMemSize
	}
	return Geometry{
		Kind:          KindEeprom,
		PageLen:       EepromPageLen,
		MemSize:       memSize,
		EraseLen:      EepromPageLen,
		ProtectOffset: 2,
		ProtectMask:   0x03,
		protectDiv:    []uint32{0, 4, 2, 1},
		names:         []string{"none", "quarter", "half", "all"},
	}
}

// FlashGeometry returns the Flash layout for a part of memSize bytes.
func FlashGeometry(memSize uint32) Geometry {
	return Geometry{
		Kind:          KindFlash,
		PageLen:       FlashPageLen,
		MemSize:       memSize,
		EraseLen:      FlashSectorLen,
		ProtectOffset: 2,
		ProtectMask:   0x07,
		protectDiv:    []uint32{0, 16, 8, 4, 2, 1},
		names:         []string{"none", "sixteenth", "eighth", "quarter", "half", "all"},
	}
}

// Regions is the number of valid region codes.
func (g Geometry) Regions() int {
	return len(g.protectDiv)
}

// ValidRegion reports whether r is a defined code for this variant.
func (g Geometry) ValidRegion(r Region) bool {
	return int(r) < len(g.protectDiv)
}

// RegionName returns the variant's name for r.
func (g Geometry) RegionName(r Region) string {
	if !g.ValidRegion(r) {
		return fmt.Sprintf("region(%d)", r)
	}
	return g.names[r]
}

// ParseRegion resolves a region name for this variant.
func (g Geometry) ParseRegion(name string) (Region, error) {
	for i, n := range g.names {
		if n == name {
			return Region(i), nil
		}
	}
	return RegionNone, fmt.Errorf("%w: unknown %s region %q", ErrInvalidInput, g.Kind, name)
}

// ProtectedRange returns the top-aligned [start, MemSize) range r protects.
// start == MemSize means nothing is protected.
func (g Geometry) ProtectedRange(r Region) (start, end uint32) {
	if !g.ValidRegion(r) || g.protectDiv[r] == 0 {
		return g.MemSize, g.MemSize
	}
	return g.MemSize - g.MemSize/g.protectDiv[r], g.MemSize
}

// checkRange validates addr/n against the address space.
// A zero length is a no-op, reported via noop so callers skip the bus.
func (g Geometry) checkRange(addr uint32, n uint64) (noop bool, err error) {
	if n == 0 {
		if addr > g.MemSize {
			return true, &RangeError{Addr: addr, Len: n, MemSize: g.MemSize}
		}
		return true, nil
	}
	if uint64(addr)+n-1 >= uint64(g.MemSize) {
		return false, &RangeError{Addr: addr, Len: n, MemSize: g.MemSize}
	}
	return false, nil
}
