// internal/sim/pin.go
package sim

import "sync/atomic"

// Pin is a settable presence input.
type Pin struct {
	level atomic.Bool
}

// NewPin returns a pin at the given level.
func NewPin(level bool) *Pin {
	p := &Pin{}
	p.level.Store(level)
	return p
}

func (p *Pin) Read() bool { return p.level.Load() }

// Set drives the pin.
func (p *Pin) Set(level bool) { p.level.Store(level) }
