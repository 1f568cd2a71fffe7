// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	Presence      uint16
	TokenKind     uint16
	JobsOK        uint16
	JobsFailed    uint16
	TokenSizeKiB  uint16
	ProtectRegion uint16
}

// slots lists every live slot with its value, in block order.
// The writer walks this for incremental updates.
func (s Snapshot) slots() [9]uint16 {
	return [9]uint16{
		SlotHealthCode:     s.Health,
		SlotLastErrorCode:  s.LastErrorCode,
		SlotSecondsInError: s.SecondsInError,
		SlotPresence:       s.Presence,
		SlotTokenKind:      s.TokenKind,
		SlotJobsOK:         s.JobsOK,
		SlotJobsFailed:     s.JobsFailed,
		SlotTokenSizeKiB:   s.TokenSizeKiB,
		SlotProtectRegion:  s.ProtectRegion,
	}
}

// Diff returns the slot indices whose values differ between a and b.
func Diff(a, b Snapshot) []int {
	av, bv := a.slots(), b.slots()
	var out []int
	for i := range av {
		if av[i] != bv[i] {
			out = append(out, i)
		}
	}
	return out
}
