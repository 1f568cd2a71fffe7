// internal/token/eeprom.go
package token

import (
	"bytes"
	"errors"
)

// Eeprom is a small SPI EEPROM token (25x040 class): 8 byte pages,
// 9-bit addressing, no erase instruction.
type Eeprom struct {
	base
}

// NewEeprom binds an EEPROM of the given geometry to link.
// The device is valid only for the presence generation current at this call.
func NewEeprom(link *Link, geo Geometry) (*Eeprom, error) {
	if link == nil {
		return nil, errors.New("token: link required")
	}
	if geo.Kind != KindEeprom {
		return nil, errors.New("token: eeprom geometry required")
	}
	if geo.MemSize == 0 || geo.MemSize > 0x200 {
		return nil, errors.New("token: eeprom size must be 1..512 bytes")
	}
	return &Eeprom{base: newBase(link, geo, eepromHeader, eepromHeaderLen)}, nil
}

// Erase writes EraseValue over [addr, addr+n). There is no hardware erase,
// so this is a page write and follows the same enable/timeout rules as Write.
func (e *Eeprom) Erase(addr, n uint32) error {
	noop, err := e.geo.checkRange(addr, uint64(n))
	if noop || err != nil {
		return err
	}
	_, err = e.program(addr, bytes.Repeat([]byte{EraseValue}, int(n)))
	return err
}

// EraseAll erases every page, stopping at the first failure.
func (e *Eeprom) EraseAll() error {
	return e.Erase(0, e.geo.MemSize)
}
