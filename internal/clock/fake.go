// internal/clock/fake.go
package clock

import (
	"sync"
	"time"
)

// Fake is a virtual clock. Sleep advances time instead of blocking,
// so polling loops run to completion instantly in tests.
type Fake struct {
	mu  sync.Mutex
	now time.Duration
}

// NewFake returns a fake clock starting at start milliseconds.
func NewFake(start uint32) *Fake {
	return &Fake{now: time.Duration(start) * time.Millisecond}
}

// Millis returns virtual time in wrapping milliseconds.
func (f *Fake) Millis() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(f.now / time.Millisecond)
}

// Sleep advances virtual time by d.
func (f *Fake) Sleep(d time.Duration) {
	f.Advance(d)
}

// Advance moves virtual time forward.
func (f *Fake) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// Elapsed returns the virtual time since the clock was created at zero.
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}
