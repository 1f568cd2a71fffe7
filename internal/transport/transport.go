// internal/transport/transport.go
package transport

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBus marks a transfer the bus reported as failed.
var ErrBus = errors.New("transport: bus error")

// Transport is one chip-select-gated half-duplex exchange.
//
//   - tx only (rx == nil): write frame
//   - rx only (tx == nil): read frame
//   - both: tx is clocked out first, then len(rx) bytes are clocked in,
//     all inside a single select/deselect.
type Transport interface {
	Transfer(tx, rx []byte) error
}

// Limiter is implemented by transports with a maximum frame size.
type Limiter interface {
	MaxTransfer() int
}

// MaxTransfer returns the frame limit of t, or 0 when unlimited.
func MaxTransfer(t Transport) int {
	if l, ok := t.(Limiter); ok {
		return l.MaxTransfer()
	}
	return 0
}

// Bus serializes frames onto one transport.
// Whoever holds the bus between select and deselect owns it; frames never interleave.
type Bus struct {
	mu    sync.Mutex
	tr    Transport
	count uint64
}

// Exclusive wraps t so concurrent callers cannot interleave frames.
func Exclusive(t Transport) *Bus {
	if b, ok := t.(*Bus); ok {
		return b
	}
	return &Bus{tr: t}
}

// Transfer performs one frame. Failures are wrapped with ErrBus.
func (b *Bus) Transfer(tx, rx []byte) error {
	if len(tx) == 0 && len(rx) == 0 {
		return fmt.Errorf("%w: empty frame", ErrBus)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if err := b.tr.Transfer(tx, rx); err != nil {
		if errors.Is(err, ErrBus) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBus, err)
	}
	return nil
}

// MaxTransfer forwards the underlying frame limit.
func (b *Bus) MaxTransfer() int {
	return MaxTransfer(b.tr)
}

// Count returns the number of frames issued so far.
func (b *Bus) Count() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
