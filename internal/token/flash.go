// internal/token/flash.go
package token

import (
	"errors"
	"fmt"
	"time"
)

// Flash is a NOR-Flash token (25P class): 256 byte pages, 64 KiB sectors,
// 24-bit addressing. Programming can only clear bits; erase first.
type Flash struct {
	base
}

// NewFlash binds a Flash token of the given geometry to link.
// The device is valid only for the presence generation current at this call.
func NewFlash(link *Link, geo Geometry) (*Flash, error) {
	if link == nil {
		return nil, errors.New("token: link required")
	}
	if geo.Kind != KindFlash {
		return nil, errors.New("token: flash geometry required")
	}
	if geo.MemSize == 0 || geo.MemSize > 1<<24 {
		return nil, errors.New("token: flash size must be 1..16MiB")
	}
	return &Flash{base: newBase(link, geo, flashHeader, flashHeaderLen)}, nil
}

// Erase erases every sector overlapping [addr, addr+n).
//
// Erase is whole-sector only: an unaligned start also clears the bytes of
// its sector below addr, and the tail sector is cleared past addr+n.
func (f *Flash) Erase(addr, n uint32) error {
	noop, err := f.geo.checkRange(addr, uint64(n))
	if noop || err != nil {
		return err
	}
	if err := f.guard(); err != nil {
		return err
	}

	sector := uint64(f.geo.EraseLen)
	end := uint64(addr) + uint64(n)
	for s := uint64(addr) - uint64(addr)%sector; s < end; s += sector {
		if err := f.guard(); err != nil {
			return err
		}
		frame := flashHeader(OpSectorErase, uint32(s))
		if err := f.link.mutate(fmt.Sprintf("erase sector 0x%06X", s), frame); err != nil {
			return err
		}
	}
	return nil
}

// EraseAll issues chip erase and returns immediately; the device stays
// busy for up to ChipEraseTime.
func (f *Flash) EraseAll() error {
	if err := f.guard(); err != nil {
		return err
	}
	return f.link.mutate("chip erase", []byte{OpChipErase})
}

// EraseAllBlocking issues chip erase and waits for it to finish.
func (f *Flash) EraseAllBlocking() error {
	if err := f.EraseAll(); err != nil {
		return err
	}
	d := f.ChipEraseTime()
	if err := f.link.awaitReady(d); err != nil {
		return fmt.Errorf("token: chip erase: %w", err)
	}
	return nil
}

// ChipEraseTime is the datasheet chip-erase time scaled to this part's size,
// never less than the ordinary readiness timeout.
func (f *Flash) ChipEraseTime() time.Duration {
	t := f.link.timing
	d := t.ChipErase
	if t.ChipEraseBase > 0 {
		d = time.Duration(float64(t.ChipErase) * float64(f.geo.MemSize) / float64(t.ChipEraseBase))
	}
	return max(d, t.Small)
}
