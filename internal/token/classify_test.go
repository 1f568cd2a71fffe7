package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/token-programmer/internal/sim"
	"github.com/tamzrod/token-programmer/internal/token"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		tok  *sim.Token
		kind token.Kind
		size uint32
	}{
		{"eeprom reads zero signature", sim.NewEeprom(256), token.KindEeprom, 0},
		{"flash low nibble is log2 size", sim.NewFlash(0, 0x1C), token.KindFlash, 1 << 12},
		{"nibble zero is one byte", sim.NewFlash(0, 0x10), token.KindFlash, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newRig(t, c.tok)
			r.insert(t)

			kind, size, err := token.Classify(r.link)
			require.NoError(t, err)
			assert.Equal(t, c.kind, kind)
			assert.Equal(t, c.size, size)
		})
	}
}

func TestClassify_BusyDeviceIsNone(t *testing.T) {
	r := newRig(t, sim.NewFlash(0, 0x1C))
	r.tok.AlwaysBusy = true
	r.insert(t)

	kind, _, err := token.Classify(r.link)
	assert.Equal(t, token.KindNone, kind)
	assert.ErrorIs(t, err, token.ErrTimeout)
}

func TestClassify_AbsentIsRemoved(t *testing.T) {
	r := newRig(t, sim.NewFlash(0, 0x1C))

	before := r.link.Transfers()
	kind, _, err := token.Classify(r.link)
	assert.Equal(t, token.KindNone, kind)
	assert.ErrorIs(t, err, token.ErrRemoved)
	assert.Equal(t, before, r.link.Transfers())
}

func TestManager_FollowsPresence(t *testing.T) {
	r := newRig(t, sim.NewFlash(0, 0x1E))
	m, err := token.NewManager(r.link, r.state, token.EepromGeometry(0), quietLogger())
	require.NoError(t, err)

	kind, changed, err := m.Refresh()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, token.KindNone, kind)

	r.insert(t)
	kind, changed, err = m.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, token.KindFlash, kind)
	assert.Equal(t, token.KindFlash, m.DeviceType())

	dev, err := m.Device()
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<14), dev.Geometry().MemSize)

	// nothing pending: no re-classification
	before := r.link.Transfers()
	_, changed, err = m.Refresh()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, r.link.Transfers())

	r.remove(t)
	kind, changed, err = m.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, token.KindNone, kind)

	_, err = m.Device()
	assert.ErrorIs(t, err, token.ErrNoToken)
}

func TestManager_StaleBindingNeverReturned(t *testing.T) {
	r := newRig(t, sim.NewEeprom(256))
	m, err := token.NewManager(r.link, r.state, token.EepromGeometry(256), quietLogger())
	require.NoError(t, err)

	r.insert(t)
	_, _, err = m.Refresh()
	require.NoError(t, err)

	// removal committed but not yet consumed
	r.remove(t)
	_, err = m.Device()
	assert.ErrorIs(t, err, token.ErrRemoved)
	assert.Equal(t, token.KindNone, m.DeviceType())
}

func TestManager_EepromUsesConfiguredGeometry(t *testing.T) {
	r := newRig(t, sim.NewEeprom(512))
	m, err := token.NewManager(r.link, r.state, token.EepromGeometry(512), quietLogger())
	require.NoError(t, err)

	r.insert(t)
	dev, err := m.Classify()
	require.NoError(t, err)
	assert.Equal(t, token.KindEeprom, dev.Kind())
	assert.Equal(t, uint32(512), dev.Geometry().MemSize)
}
