package token_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tamzrod/token-programmer/internal/clock"
	"github.com/tamzrod/token-programmer/internal/presence"
	"github.com/tamzrod/token-programmer/internal/sim"
	"github.com/tamzrod/token-programmer/internal/token"
)

// rig is a simulated token on a link with a real debouncer and a fake clock.
type rig struct {
	tok   *sim.Token
	pin   *sim.Pin
	state *presence.State
	deb   *presence.Debouncer
	clk   *clock.Fake
	link  *token.Link
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTiming() token.Timing {
	return token.Timing{
		Small:         100 * time.Millisecond,
		Large:         time.Second,
		Poll:          time.Millisecond,
		ChipErase:     161 * time.Second,
		ChipEraseBase: 0x800000,
	}
}

func newRig(t *testing.T, tok *sim.Token) *rig {
	t.Helper()

	r := &rig{
		tok:   tok,
		pin:   sim.NewPin(false),
		state: presence.NewState(),
		clk:   clock.NewFake(0),
	}

	cfg := presence.Config{
		Timeout:        50 * time.Millisecond,
		StableSamples:  3,
		SampleInterval: time.Millisecond,
		InsertedLevel:  true,
	}
	deb, err := presence.New(cfg, r.pin, r.state, r.clk, quietLogger())
	require.NoError(t, err)
	r.deb = deb

	link, err := token.NewLink(tok, r.state, r.clk, testTiming(), quietLogger())
	require.NoError(t, err)
	r.link = link

	return r
}

// insert drives the pin and lets the debouncer commit.
func (r *rig) insert(t *testing.T) {
	t.Helper()
	r.pin.Set(true)
	require.True(t, r.deb.Step(), "insertion not committed")
}

func (r *rig) remove(t *testing.T) {
	t.Helper()
	r.pin.Set(false)
	require.True(t, r.deb.Step(), "removal not committed")
}

func (r *rig) eeprom(t *testing.T, size uint32) *token.Eeprom {
	t.Helper()
	dev, err := token.NewEeprom(r.link, token.EepromGeometry(size))
	require.NoError(t, err)
	return dev
}

func (r *rig) flash(t *testing.T) *token.Flash {
	t.Helper()
	dev, err := token.NewFlash(r.link, token.FlashGeometry(uint32(len(r.tok.Memory()))))
	require.NoError(t, err)
	return dev
}

func pattern(addr uint32, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(addr + uint32(i))
	}
	return b
}
