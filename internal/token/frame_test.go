package token

import "testing"

func TestEepromHeader_FoldsAddressBit8(t *testing.T) {
	cases := []struct {
		op   byte
		addr uint32
		want [2]byte
	}{
		{OpRead, 0x0AB, [2]byte{0x03, 0xAB}},
		{OpRead, 0x1AB, [2]byte{0x0B, 0xAB}},
		{OpWrite, 0x100, [2]byte{0x0A, 0x00}},
		{OpWrite, 0x0FF, [2]byte{0x02, 0xFF}},
	}
	for _, c := range cases {
		got := eepromHeader(c.op, c.addr)
		if len(got) != eepromHeaderLen || got[0] != c.want[0] || got[1] != c.want[1] {
			t.Fatalf("eepromHeader(0x%02X, 0x%03X) = % X, want % X", c.op, c.addr, got, c.want)
		}
	}
}

func TestFlashHeader_BigEndian24(t *testing.T) {
	got := flashHeader(OpSectorErase, 0x123456)
	want := []byte{0xD8, 0x12, 0x34, 0x56}
	if len(got) != flashHeaderLen {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flashHeader = % X, want % X", got, want)
		}
	}
}

func TestCheckRange(t *testing.T) {
	g := EepromGeometry(0x100)

	if noop, err := g.checkRange(0x100, 0); !noop || err != nil {
		t.Fatalf("zero length at end: noop=%v err=%v", noop, err)
	}
	if _, err := g.checkRange(0x101, 0); err == nil {
		t.Fatalf("zero length past end accepted")
	}
	if _, err := g.checkRange(0xF8, 8); err != nil {
		t.Fatalf("last page rejected: %v", err)
	}
	if _, err := g.checkRange(0xF9, 8); err == nil {
		t.Fatalf("overrun accepted")
	}
	// no 32-bit wrap
	if _, err := g.checkRange(0xFFFFFFFF, 2); err == nil {
		t.Fatalf("wrapping range accepted")
	}
}

func TestProtectedRange(t *testing.T) {
	g := FlashGeometry(0x100000)

	cases := map[Region]uint32{
		RegionNone:            0x100000,
		FlashProtectSixteenth: 0x0F0000,
		FlashProtectEighth:    0x0E0000,
		FlashProtectQuarter:   0x0C0000,
		FlashProtectHalf:      0x080000,
		FlashProtectAll:       0x000000,
	}
	for r, want := range cases {
		start, end := g.ProtectedRange(r)
		if start != want || end != g.MemSize {
			t.Fatalf("%s: [0x%X,0x%X) want start 0x%X", g.RegionName(r), start, end, want)
		}
	}
}
