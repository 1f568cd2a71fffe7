// internal/token/manager.go
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// PresenceSource is the presence state as the manager consumes it.
type PresenceSource interface {
	Presence
	IsInserted() bool
	// Consume reads presence and clears the changed flag atomically.
	Consume() (inserted, changed bool)
}

// Manager keeps the classified device in step with presence:
// classified once per insertion, reset to KindNone once per removal.
type Manager struct {
	link     *Link
	presence PresenceSource
	eeprom   Geometry
	log      *slog.Logger

	mu  sync.Mutex
	dev Device
	gen uint64
}

// NewManager binds link and presence. eeprom is the static EEPROM layout
// used whenever classification reports an EEPROM.
func NewManager(link *Link, p PresenceSource, eeprom Geometry, log *slog.Logger) (*Manager, error) {
	if link == nil {
		return nil, errors.New("token: link required")
	}
	if p == nil {
		return nil, errors.New("token: presence required")
	}
	if eeprom.Kind != KindEeprom {
		return nil, errors.New("token: eeprom geometry required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{link: link, presence: p, eeprom: eeprom, log: log}, nil
}

// Link returns the shared protocol link.
func (m *Manager) Link() *Link {
	return m.link
}

// IsInserted reports the debounced presence.
func (m *Manager) IsInserted() bool {
	return m.presence.IsInserted()
}

// Refresh consumes a pending presence change. On insertion it classifies
// the new token; on removal it drops the bound device.
// changed is false when there was nothing to consume.
func (m *Manager) Refresh() (kind Kind, changed bool, err error) {
	inserted, changed := m.presence.Consume()
	if !changed {
		return m.DeviceType(), false, nil
	}

	m.reset()
	if !inserted {
		m.log.Info("token: removed")
		return KindNone, true, nil
	}

	dev, err := m.Classify()
	if err != nil {
		return KindNone, true, err
	}
	return dev.Kind(), true, nil
}

// Classify runs classification now and binds the result.
func (m *Manager) Classify() (Device, error) {
	_, gen := m.presence.Snapshot()

	kind, size, err := Classify(m.link)
	if err != nil {
		m.reset()
		return nil, err
	}

	var dev Device
	switch kind {
	case KindFlash:
		dev, err = NewFlash(m.link, FlashGeometry(size))
	case KindEeprom:
		dev, err = NewEeprom(m.link, m.eeprom)
	default:
		err = ErrNoToken
	}
	if err != nil {
		m.reset()
		return nil, fmt.Errorf("token: bind %s: %w", kind, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// removed or replaced while classifying
	inserted, now := m.presence.Snapshot()
	if !inserted || now != gen {
		m.dev = nil
		return nil, ErrRemoved
	}

	m.dev, m.gen = dev, gen
	m.log.Info("token: classified",
		"kind", kind.String(),
		"size", dev.Geometry().MemSize,
	)
	return dev, nil
}

// DeviceType returns the kind of the bound device, or KindNone when no
// device is bound or it is stale.
func (m *Manager) DeviceType() Kind {
	dev, err := m.Device()
	if err != nil {
		return KindNone
	}
	return dev.Kind()
}

// Device returns the bound device. A device classified before the last
// presence transition is never returned.
func (m *Manager) Device() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return nil, ErrNoToken
	}
	inserted, gen := m.presence.Snapshot()
	if !inserted || gen != m.gen {
		return nil, ErrRemoved
	}
	return m.dev, nil
}

func (m *Manager) reset() {
	m.mu.Lock()
	m.dev = nil
	m.mu.Unlock()
}
