// internal/token/device.go
package token

import (
	"fmt"

	"github.com/tamzrod/token-programmer/internal/clock"
)

// Device is the memory surface shared by both token variants.
//
// Every method validates its arguments first and returns ErrInvalidInput
// without touching the bus. Nothing is retried here; retry policy belongs
// to the caller (see internal/verify).
type Device interface {
	Kind() Kind
	Geometry() Geometry

	// Read fills buf from addr.
	Read(addr uint32, buf []byte) error
	// Write programs buf at addr, one page-bounded frame at a time.
	// On failure it returns how many bytes were committed.
	Write(addr uint32, buf []byte) (int, error)
	// Erase sets [addr, addr+n) to EraseValue at the variant's granularity.
	Erase(addr, n uint32) error
	// EraseAll erases the whole device.
	EraseAll() error

	ProtectRegion(r Region) error
	ProtectedRegion() (Region, error)
}

// base carries what both variants share: the link, the geometry and the
// presence generation the device was classified under.
type base struct {
	link   *Link
	geo    Geometry
	gen    uint64
	header func(op byte, addr uint32) []byte
	hdrLen int
}

func newBase(link *Link, geo Geometry, header func(byte, uint32) []byte, hdrLen int) base {
	_, gen := link.presence.Snapshot()
	return base{link: link, geo: geo, gen: gen, header: header, hdrLen: hdrLen}
}

func (b *base) Kind() Kind         { return b.geo.Kind }
func (b *base) Geometry() Geometry { return b.geo }

// Link exposes the readiness / write-gate protocol of this device.
func (b *base) Link() *Link { return b.link }

// guard fails once the token has been removed, or replaced, since classification.
func (b *base) guard() error {
	inserted, gen := b.link.presence.Snapshot()
	if !inserted || gen != b.gen {
		return ErrRemoved
	}
	return nil
}

func (b *base) Read(addr uint32, buf []byte) error {
	noop, err := b.geo.checkRange(addr, uint64(len(buf)))
	if noop || err != nil {
		return err
	}
	if err := b.guard(); err != nil {
		return err
	}
	if err := b.link.awaitReady(b.link.timing.Small); err != nil {
		return fmt.Errorf("token: read 0x%06X: %w", addr, err)
	}

	chunk, err := b.payload(len(buf))
	if err != nil {
		return err
	}

	for off := 0; off < len(buf); off += chunk {
		if off > 0 {
			if err := b.guard(); err != nil {
				return err
			}
		}
		n := min(chunk, len(buf)-off)
		a := addr + uint32(off)
		if err := b.link.transfer(b.header(OpRead, a), buf[off:off+n]); err != nil {
			return fmt.Errorf("token: read 0x%06X: %w", a, err)
		}
	}
	return nil
}

func (b *base) Write(addr uint32, buf []byte) (int, error) {
	noop, err := b.geo.checkRange(addr, uint64(len(buf)))
	if noop || err != nil {
		return 0, err
	}
	return b.program(addr, buf)
}

// program splits buf at page boundaries. One call never crosses a page in
// one instruction, and the whole call shares the Large budget.
func (b *base) program(addr uint32, buf []byte) (int, error) {
	if err := b.guard(); err != nil {
		return 0, err
	}

	chunk, err := b.payload(int(b.geo.PageLen))
	if err != nil {
		return 0, err
	}

	start := b.link.clk.Millis()
	budget := b.link.timing.Large
	page := b.geo.PageLen
	written := 0

	for written < len(buf) {
		a := addr + uint32(written)
		if clock.Expired(b.link.clk, start, clock.Ms(budget)) {
			return written, fmt.Errorf("token: write 0x%06X: %w: %v budget exhausted", a, ErrTimeout, budget)
		}
		if err := b.guard(); err != nil {
			return written, err
		}

		n := min(int(page-a%page), len(buf)-written, chunk)
		frame := append(b.header(OpWrite, a), buf[written:written+n]...)
		if err := b.link.mutate(fmt.Sprintf("write page 0x%06X", a), frame); err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// payload caps a frame's data length at want, or lower if the transport
// limits frame size.
func (b *base) payload(want int) (int, error) {
	limit := b.link.maxTransfer()
	if limit <= 0 {
		return want, nil
	}
	if limit <= b.hdrLen {
		return 0, fmt.Errorf("%w: transfer limit %d below frame header", ErrInvalidInput, limit)
	}
	return min(want, limit-b.hdrLen), nil
}

func (b *base) ProtectRegion(r Region) error {
	if !b.geo.ValidRegion(r) {
		return fmt.Errorf("%w: %s region %d (max %d)", ErrInvalidInput, b.geo.Kind, r, b.geo.Regions()-1)
	}
	if err := b.guard(); err != nil {
		return err
	}
	if err := b.link.awaitReady(b.link.timing.Small); err != nil {
		return fmt.Errorf("token: protect region: %w", err)
	}

	sr, err := b.link.ReadStatus()
	if err != nil {
		return fmt.Errorf("token: protect region: %w", err)
	}

	field := b.geo.ProtectMask << b.geo.ProtectOffset
	sr = (sr &^ field) | (uint8(r) << b.geo.ProtectOffset)

	if err := b.link.WriteStatus(sr); err != nil {
		return fmt.Errorf("token: protect region: %w", err)
	}
	if err := b.link.awaitReady(b.link.timing.Small); err != nil {
		return fmt.Errorf("token: protect region: %w", err)
	}
	return nil
}

func (b *base) ProtectedRegion() (Region, error) {
	if err := b.guard(); err != nil {
		return RegionNone, err
	}
	if err := b.link.awaitReady(b.link.timing.Small); err != nil {
		return RegionNone, fmt.Errorf("token: protected region: %w", err)
	}
	sr, err := b.link.ReadStatus()
	if err != nil {
		return RegionNone, fmt.Errorf("token: protected region: %w", err)
	}
	return Region((sr >> b.geo.ProtectOffset) & b.geo.ProtectMask), nil
}
