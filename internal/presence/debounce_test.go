package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/token-programmer/internal/clock"
)

type pinFunc func() bool

func (f pinFunc) Read() bool { return f() }

type observation struct {
	ms       uint32
	inserted bool
}

func TestDebounce_BounceThenSettle(t *testing.T) {
	clk := clock.NewFake(0)
	st := NewState()

	var seen []observation
	pin := pinFunc(func() bool {
		ms := clk.Millis()
		seen = append(seen, observation{ms: ms, inserted: st.IsInserted()})
		// LOW(0) -> HIGH(10) -> LOW(15) -> HIGH(20, held)
		switch {
		case ms < 10:
			return false
		case ms < 15:
			return true
		case ms < 20:
			return false
		default:
			return true
		}
	})

	d, err := New(DefaultConfig(), pin, st, clk, nil)
	require.NoError(t, err)

	changes := 0
	var committedAt uint32
	for clk.Millis() < 150 {
		if d.Step() {
			committedAt = clk.Millis()
		}
		if _, changed := st.Consume(); changed {
			changes++
		}
		clk.Sleep(time.Millisecond)
	}

	require.True(t, st.IsInserted())
	assert.Equal(t, 1, changes, "state_changed must latch exactly once")
	assert.Equal(t, uint64(1), st.Generation())

	// the final HIGH starts at 20ms and must hold 50 contiguous samples
	assert.GreaterOrEqual(t, committedAt, uint32(70))
	for _, o := range seen {
		if o.ms < 69 {
			assert.False(t, o.inserted, "presence flipped early at %dms", o.ms)
		}
	}
}

func TestDebounce_NoiseNeverCommits(t *testing.T) {
	clk := clock.NewFake(0)
	st := NewState()

	// toggles every 30ms: never 50 contiguous samples
	pin := pinFunc(func() bool {
		return (clk.Millis()/30)%2 == 1
	})

	d, err := New(DefaultConfig(), pin, st, clk, nil)
	require.NoError(t, err)

	for clk.Millis() < 2000 {
		d.Step()
		clk.Sleep(time.Millisecond)
	}

	assert.False(t, st.IsInserted())
	assert.False(t, st.StateChanged())
	assert.Equal(t, uint64(0), st.Generation())
}

func TestDebounce_WindowExpiresWithoutStability(t *testing.T) {
	clk := clock.NewFake(0)
	st := NewState()

	cfg := DefaultConfig()
	cfg.Timeout = 40 * time.Millisecond // shorter than the 50 sample requirement

	pin := pinFunc(func() bool { return true })
	d, err := New(cfg, pin, st, clk, nil)
	require.NoError(t, err)

	assert.False(t, d.Step())
	assert.False(t, st.IsInserted())
	assert.GreaterOrEqual(t, clk.Millis(), uint32(40))
}

func TestDebounce_RemovalWithInvertedPolarity(t *testing.T) {
	clk := clock.NewFake(0)
	st := NewState()

	cfg := DefaultConfig()
	cfg.InsertedLevel = false // active-low board revision

	level := false
	pin := pinFunc(func() bool { return level })

	d, err := New(cfg, pin, st, clk, nil)
	require.NoError(t, err)

	require.True(t, d.Step())
	inserted, changed := st.Consume()
	require.True(t, inserted)
	require.True(t, changed)

	level = true
	require.True(t, d.Step())
	inserted, changed = st.Consume()
	assert.False(t, inserted)
	assert.True(t, changed)

	_, changed = st.Consume()
	assert.False(t, changed, "change must be consumed once")
	assert.Equal(t, uint64(2), st.Generation())
}

func TestDebounce_RunSignalsChanges(t *testing.T) {
	clk := clock.NewFake(0)
	st := NewState()

	pin := pinFunc(func() bool { return true })
	d, err := New(DefaultConfig(), pin, st, clk, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case <-st.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}
	assert.True(t, st.IsInserted())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	pin := pinFunc(func() bool { return false })

	_, err := New(Config{}, pin, NewState(), nil, nil)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil, NewState(), nil, nil)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), pin, nil, nil, nil)
	assert.Error(t, err)
}
