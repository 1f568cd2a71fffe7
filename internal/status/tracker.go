// internal/status/tracker.go
package status

import (
	"sync"

	"github.com/tamzrod/token-programmer/internal/token"
)

// Tracker owns the station snapshot. The station reports events into it and
// a 1 Hz ticker advances seconds_in_error; each call reports whether the
// snapshot changed so the caller knows when to publish.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker starts in HealthUnknown with every counter zero.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Inserted records a classified token.
func (t *Tracker) Inserted(kind token.Kind, size uint32) bool {
	return t.update(func(s *Snapshot) {
		s.Presence = 1
		s.TokenKind = KindCode(kind)
		s.TokenSizeKiB = sizeKiB(size)
	})
}

// Removed returns to Idle. The last error code survives until the next job;
// seconds_in_error stops and resets.
func (t *Tracker) Removed() bool {
	return t.update(func(s *Snapshot) {
		s.Health = HealthIdle
		s.Presence = 0
		s.TokenKind = KindNone
		s.TokenSizeKiB = 0
		s.ProtectRegion = 0
		s.SecondsInError = 0
	})
}

// Idle marks the station ready with no token.
func (t *Tracker) Idle() bool {
	return t.update(func(s *Snapshot) {
		if s.Presence == 0 {
			s.Health = HealthIdle
		}
	})
}

// JobStarted marks the station Busy.
func (t *Tracker) JobStarted() bool {
	return t.update(func(s *Snapshot) {
		s.Health = HealthBusy
		s.SecondsInError = 0
	})
}

// JobFinished records a job verdict and the protect region read back.
func (t *Tracker) JobFinished(err error, region token.Region) bool {
	return t.update(func(s *Snapshot) {
		s.ProtectRegion = uint16(region)
		if err == nil {
			s.Health = HealthPass
			s.LastErrorCode = CodeOK
			s.SecondsInError = 0
			s.JobsOK++
			return
		}
		s.Health = HealthFail
		s.LastErrorCode = Code(err)
		s.JobsFailed++
	})
}

// Tick advances seconds_in_error while the station shows Fail.
// HARD INVARIANT: seconds_in_error MUST NOT wrap.
func (t *Tracker) Tick() bool {
	return t.update(func(s *Snapshot) {
		if s.Health == HealthFail && s.SecondsInError < 65535 {
			s.SecondsInError++
		}
	})
}

func (t *Tracker) update(fn func(*Snapshot)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := t.snap
	fn(&t.snap)
	return before != t.snap
}

func sizeKiB(size uint32) uint16 {
	kib := (uint64(size) + 1023) / 1024
	if kib > 65535 {
		return 65535
	}
	return uint16(kib)
}
