// internal/sim/token.go
package sim

import (
	"errors"
	"sync"
)

// Variant selects which instruction set the simulated token speaks.
type Variant int

const (
	VariantEeprom Variant = iota
	VariantFlash
)

var (
	// ErrInjected is returned by transfers failed on purpose.
	ErrInjected = errors.New("sim: injected transfer failure")
	// ErrFrameTooLong is returned when a frame exceeds Limit.
	ErrFrameTooLong = errors.New("sim: frame exceeds transfer limit")
)

const (
	srBusy uint8 = 0x01
	srWEL  uint8 = 0x02
)

// Stats counts the instructions the token accepted.
type Stats struct {
	Transfers     int
	WriteEnables  int
	WriteDisables int
	PageWrites    int
	SectorErases  int
	ChipErases    int
	StatusWrites  int
	Ignored       int // mutating frames dropped: busy, latch clear, or protected
}

// Token is an in-memory SPI token implementing transport.Transport.
// It models the parts of the datasheets the engine depends on: the busy bit,
// the self-clearing write-enable latch, page wrap on program, sector and chip
// erase, and top-aligned block protection.
type Token struct {
	mu sync.Mutex

	variant   Variant
	mem       []byte
	pageLen   int
	sectorLen int
	signature byte
	protMask  uint8
	protDiv   []int

	sr        uint8
	wel       bool
	busy      int
	powerDown bool

	// BusyPolls is how many status reads report busy after a mutating frame.
	BusyPolls int
	// AlwaysBusy pins the busy bit high.
	AlwaysBusy bool
	// Limit is the maximum frame size; 0 = unlimited.
	Limit int

	failNext    int
	failWhen    func(tx []byte) bool
	corruptNext int

	stats Stats
}

// NewEeprom returns a blank 8-byte-page EEPROM of size bytes (<= 512).
func NewEeprom(size int) *Token {
	return newToken(VariantEeprom, size, 8, 8, 0, 0x03, []int{0, 4, 2, 1})
}

// NewFlash returns a blank Flash token of size bytes answering RES with sig.
// size 0 derives the size from the signature the way classification does.
func NewFlash(size int, sig byte) *Token {
	if size == 0 {
		size = 1 << (sig & 0x0F)
	}
	sector := min(0x10000, size)
	return newToken(VariantFlash, size, 0x100, sector, sig, 0x07, []int{0, 16, 8, 4, 2, 1, 1, 1})
}

func newToken(v Variant, size, page, sector int, sig byte, mask uint8, div []int) *Token {
	if page > size {
		page = size
	}
	t := &Token{
		variant:   v,
		mem:       make([]byte, size),
		pageLen:   page,
		sectorLen: sector,
		signature: sig,
		protMask:  mask,
		protDiv:   div,
		BusyPolls: 1,
	}
	for i := range t.mem {
		t.mem[i] = 0xFF
	}
	return t
}

// ---- test controls ----

// FailNext makes the next n transfers fail without effect.
func (t *Token) FailNext(n int) {
	t.mu.Lock()
	t.failNext = n
	t.mu.Unlock()
}

// FailWhen fails every transfer whose tx matches. nil clears it.
func (t *Token) FailWhen(match func(tx []byte) bool) {
	t.mu.Lock()
	t.failWhen = match
	t.mu.Unlock()
}

// CorruptNextReads flips the first data byte of the next n memory reads.
func (t *Token) CorruptNextReads(n int) {
	t.mu.Lock()
	t.corruptNext = n
	t.mu.Unlock()
}

// Stats returns the instruction counters.
func (t *Token) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Memory returns a copy of the array.
func (t *Token) Memory() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.mem...)
}

// Fill overwrites the array, bypassing protection.
func (t *Token) Fill(b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.mem {
		t.mem[i] = b
	}
}

// WriteEnabled reports the write-enable latch.
func (t *Token) WriteEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wel
}

// Status returns the status register as the device would report it.
func (t *Token) Status() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// MaxTransfer implements transport.Limiter.
func (t *Token) MaxTransfer() int {
	return t.Limit
}

// ---- transport ----

// Transfer decodes one chip-select window.
func (t *Token) Transfer(tx, rx []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Transfers++

	if t.failNext > 0 {
		t.failNext--
		return ErrInjected
	}
	if t.failWhen != nil && t.failWhen(tx) {
		return ErrInjected
	}
	if t.Limit > 0 && len(tx)+len(rx) > t.Limit {
		return ErrFrameTooLong
	}

	for i := range rx {
		rx[i] = 0
	}
	if len(tx) == 0 {
		return nil
	}

	op := tx[0]

	if t.powerDown {
		if t.variant == VariantFlash && op == 0xAB {
			t.powerDown = false
			if len(rx) > 0 {
				rx[0] = t.signature
			}
		}
		return nil
	}

	if op == 0x05 {
		sr := t.statusLocked()
		if t.busy > 0 {
			t.busy--
		}
		for i := range rx {
			rx[i] = sr
		}
		return nil
	}

	if t.busy > 0 || t.AlwaysBusy {
		t.stats.Ignored++
		return nil
	}

	if t.variant == VariantEeprom {
		t.eepromOp(op, tx, rx)
	} else {
		t.flashOp(op, tx, rx)
	}
	return nil
}

func (t *Token) statusLocked() uint8 {
	sr := t.sr &^ (srBusy | srWEL)
	if t.busy > 0 || t.AlwaysBusy {
		sr |= srBusy
	}
	if t.wel {
		sr |= srWEL
	}
	return sr
}

func (t *Token) eepromOp(op byte, tx, rx []byte) {
	switch op &^ 0x08 {
	case 0x02, 0x03:
		if len(tx) < 2 {
			return
		}
		addr := int(op&0x08)<<5 | int(tx[1])
		if op&^0x08 == 0x03 {
			t.read(addr, rx)
		} else {
			t.program(addr, tx[2:], false)
		}
		return
	}
	t.commonOp(op, tx)
}

func (t *Token) flashOp(op byte, tx, rx []byte) {
	addr := -1
	if len(tx) >= 4 {
		addr = int(tx[1])<<16 | int(tx[2])<<8 | int(tx[3])
	}

	switch op {
	case 0x03:
		if addr >= 0 {
			t.read(addr, rx)
		}
	case 0x02:
		if addr >= 0 {
			t.program(addr, tx[4:], true)
		}
	case 0xD8:
		if addr >= 0 {
			t.eraseSector(addr)
		}
	case 0xC7:
		t.eraseChip()
	case 0xAB:
		if len(rx) > 0 {
			rx[0] = t.signature
		}
	case 0xB9:
		t.powerDown = true
	default:
		t.commonOp(op, tx)
	}
}

func (t *Token) commonOp(op byte, tx []byte) {
	switch op {
	case 0x06:
		t.wel = true
		t.stats.WriteEnables++
	case 0x04:
		t.wel = false
		t.stats.WriteDisables++
	case 0x01:
		if !t.latch() || len(tx) < 2 {
			return
		}
		// busy and WEL are read-only
		t.sr = tx[1] &^ (srBusy | srWEL)
		t.stats.StatusWrites++
		t.busy = t.BusyPolls
	}
}

// latch consumes the write-enable latch; false means the frame is dropped.
func (t *Token) latch() bool {
	if !t.wel {
		t.stats.Ignored++
		return false
	}
	t.wel = false
	return true
}

func (t *Token) read(addr int, rx []byte) {
	size := len(t.mem)
	for i := range rx {
		rx[i] = t.mem[(addr+i)%size]
	}
	if t.corruptNext > 0 && len(rx) > 0 {
		t.corruptNext--
		rx[0] ^= 0xFF
	}
}

// program writes data inside one page, wrapping at the page end like the parts do.
func (t *Token) program(addr int, data []byte, nor bool) {
	if !t.latch() {
		return
	}
	t.stats.PageWrites++
	t.busy = t.BusyPolls

	addr %= len(t.mem)
	pageStart := addr - addr%t.pageLen
	off := addr - pageStart
	if len(data) > t.pageLen {
		data = data[len(data)-t.pageLen:]
	}

	for i, b := range data {
		a := pageStart + (off+i)%t.pageLen
		if t.protected(a) {
			continue
		}
		if nor {
			t.mem[a] &= b
		} else {
			t.mem[a] = b
		}
	}
}

func (t *Token) eraseSector(addr int) {
	if !t.latch() {
		return
	}
	addr %= len(t.mem)
	start := addr - addr%t.sectorLen
	if t.protected(start + t.sectorLen - 1) {
		t.stats.Ignored++
		return
	}
	t.stats.SectorErases++
	t.busy = t.BusyPolls
	for i := start; i < start+t.sectorLen; i++ {
		t.mem[i] = 0xFF
	}
}

func (t *Token) eraseChip() {
	if !t.latch() {
		return
	}
	if t.protectCode() != 0 {
		t.stats.Ignored++
		return
	}
	t.stats.ChipErases++
	t.busy = t.BusyPolls
	for i := range t.mem {
		t.mem[i] = 0xFF
	}
}

func (t *Token) protectCode() int {
	return int((t.sr >> 2) & t.protMask)
}

func (t *Token) protected(addr int) bool {
	code := t.protectCode()
	if code >= len(t.protDiv) || t.protDiv[code] == 0 {
		return false
	}
	size := len(t.mem)
	return addr >= size-size/t.protDiv[code]
}
