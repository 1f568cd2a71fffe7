// internal/presence/state.go
package presence

import "sync"

// State is the debounced token presence shared between the debouncer and
// the control flow. Only the Debouncer writes it; everyone else reads.
//
// Every read and write happens under one mutex so the presence bit, the
// changed flag and the generation are never observed torn.
type State struct {
	mu       sync.Mutex
	inserted bool
	changed  bool
	gen      uint64

	notify chan struct{}
}

// NewState returns an Absent state with no pending change.
func NewState() *State {
	return &State{notify: make(chan struct{}, 1)}
}

// IsInserted reports the last confirmed presence.
func (s *State) IsInserted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserted
}

// Generation counts committed transitions. A device classified under one
// generation is stale once the generation moves.
func (s *State) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Snapshot returns presence and generation as one consistent pair.
func (s *State) Snapshot() (inserted bool, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserted, s.gen
}

// StateChanged reports whether a transition is pending consumption.
func (s *State) StateChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// ClearStateChanged acknowledges the pending transition.
func (s *State) ClearStateChanged() {
	s.mu.Lock()
	s.changed = false
	s.mu.Unlock()
}

// Consume reads presence and clears the changed flag atomically.
// changed is true exactly once per committed transition.
func (s *State) Consume() (inserted, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted, changed = s.inserted, s.changed
	s.changed = false
	return inserted, changed
}

// Changes is signalled after every committed transition.
// Single slot: a slow reader sees one wake-up for a burst of transitions
// and must Consume to learn the latest state.
func (s *State) Changes() <-chan struct{} {
	return s.notify
}

func (s *State) commit(inserted bool) {
	s.mu.Lock()
	s.inserted = inserted
	s.changed = true
	s.gen++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
