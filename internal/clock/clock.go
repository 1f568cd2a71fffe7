// internal/clock/clock.go
package clock

import (
	"sync"
	"time"
)

// Clock is the time source for every timeout and debounce loop.
// Millis wraps at 2^32; compare with Expired, never with "now > start+d".
type Clock interface {
	Millis() uint32
	Sleep(d time.Duration)
}

// Expired reports whether duration ms have elapsed since start.
// Unsigned subtraction keeps it correct across the 32-bit wrap.
func Expired(c Clock, start, duration uint32) bool {
	return c.Millis()-start >= duration
}

// Since returns the elapsed milliseconds since start.
func Since(c Clock, start uint32) uint32 {
	return c.Millis() - start
}

// Ms converts a duration to the clock's millisecond unit, saturating at 2^32-1.
func Ms(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}

// ---- system clock ----

type systemClock struct {
	epoch time.Time
}

var (
	sysOnce sync.Once
	sys     *systemClock
)

// System returns the process-wide monotonic clock.
func System() Clock {
	sysOnce.Do(func() {
		sys = &systemClock{epoch: time.Now()}
	})
	return sys
}

func (c *systemClock) Millis() uint32 {
	return uint32(time.Since(c.epoch).Milliseconds())
}

func (c *systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
