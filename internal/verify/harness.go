// internal/verify/harness.go
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tamzrod/token-programmer/internal/token"
)

// ErrVerifyMismatch: data read back differs from what was expected.
var ErrVerifyMismatch = errors.New("verify: mismatch")

// MismatchError locates the first differing byte of a chunk.
type MismatchError struct {
	Addr uint32
	Want byte
	Got  byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verify: mismatch at 0x%06X: want 0x%02X, got 0x%02X", e.Addr, e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrVerifyMismatch }

// Memory is the device capability the harness drives.
// token.Eeprom and token.Flash both satisfy it.
type Memory interface {
	Read(addr uint32, buf []byte) error
	Write(addr uint32, buf []byte) (int, error)
}

// Stats summarizes one harness call.
type Stats struct {
	Chunks  int
	Retries int
	Bytes   int
}

// Phase names a harness pass for progress reporting.
type Phase string

const (
	PhaseProgram Phase = "program"
	PhaseVerify  Phase = "verify"
	PhaseErased  Phase = "verify-erased"
)

// Progress is reported after every completed chunk.
type Progress struct {
	Phase Phase
	Done  int
	Total int
}

// ProgressFunc receives chunk progress.
type ProgressFunc func(Progress)

// Harness runs chunked write/read-back/compare passes. A chunk that fails
// with a bus error or a mismatch is retried in place; anything else, or a
// chunk that keeps failing, fails the whole call.
//
// Chunking never changes the verdict: the default pattern is derived from
// the absolute address, not the chunk offset.
type Harness struct {
	chunkSize int
	attempts  int
	pattern   func(addr uint32) byte
	progress  ProgressFunc
	log       *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithChunkSize sets the bytes per write/read-back step.
func WithChunkSize(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.chunkSize = n
		}
	}
}

// WithAttempts sets how many times one chunk is tried before giving up.
func WithAttempts(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.attempts = n
		}
	}
}

// WithPattern replaces the test pattern used by WriteAndVerify.
func WithPattern(p func(addr uint32) byte) Option {
	return func(h *Harness) {
		if p != nil {
			h.pattern = p
		}
	}
}

// WithProgressCallback sets a progress callback.
func WithProgressCallback(fn ProgressFunc) Option {
	return func(h *Harness) {
		h.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.log = l
		}
	}
}

// Defaults: 256 byte chunks, 3 attempts per chunk.
const (
	DefaultChunkSize = 256
	DefaultAttempts  = 3
)

// AddressPattern is the default test pattern: the low byte of the address.
func AddressPattern(addr uint32) byte {
	return byte(addr)
}

// New returns a harness with defaults overridden by opts.
func New(opts ...Option) *Harness {
	h := &Harness{
		chunkSize: DefaultChunkSize,
		attempts:  DefaultAttempts,
		pattern:   AddressPattern,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// With returns a copy of h with opts applied on top.
func (h *Harness) With(opts ...Option) *Harness {
	c := *h
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// ---- passes ----

// WriteAndVerify writes the test pattern over [addr, addr+n) and reads every
// chunk back. The target must already be erased for Flash.
func (h *Harness) WriteAndVerify(ctx context.Context, m Memory, addr uint32, n int) (Stats, error) {
	return h.run(ctx, PhaseProgram, addr, n, func(a uint32, size int, rd []byte) error {
		want := make([]byte, size)
		for i := range want {
			want[i] = h.pattern(a + uint32(i))
		}
		return writeThenCompare(m, a, want, rd)
	})
}

// Program writes data at addr with the same chunk and retry discipline.
func (h *Harness) Program(ctx context.Context, m Memory, addr uint32, data []byte) (Stats, error) {
	return h.run(ctx, PhaseProgram, addr, len(data), func(a uint32, size int, rd []byte) error {
		off := int(a - addr)
		return writeThenCompare(m, a, data[off:off+size], rd)
	})
}

// Verify compares [addr, addr+len(expected)) against expected without writing.
func (h *Harness) Verify(ctx context.Context, m Memory, addr uint32, expected []byte) (Stats, error) {
	return h.run(ctx, PhaseVerify, addr, len(expected), func(a uint32, size int, rd []byte) error {
		off := int(a - addr)
		return readThenCompare(m, a, expected[off:off+size], rd)
	})
}

// VerifyErased checks that [addr, addr+n) reads back as token.EraseValue.
func (h *Harness) VerifyErased(ctx context.Context, m Memory, addr uint32, n int) (Stats, error) {
	if n < 0 {
		return Stats{}, fmt.Errorf("%w: negative length %d", token.ErrInvalidInput, n)
	}
	erased := bytes.Repeat([]byte{token.EraseValue}, min(n, h.chunkSize))
	return h.run(ctx, PhaseErased, addr, n, func(a uint32, size int, rd []byte) error {
		return readThenCompare(m, a, erased[:size], rd)
	})
}

// run walks [addr, addr+n) chunk by chunk. step gets a scratch buffer of
// chunk length to read into.
func (h *Harness) run(ctx context.Context, phase Phase, addr uint32, n int, step func(a uint32, size int, rd []byte) error) (Stats, error) {
	var st Stats
	if n < 0 {
		return st, fmt.Errorf("%w: negative length %d", token.ErrInvalidInput, n)
	}

	scratch := make([]byte, min(n, h.chunkSize))

	for done := 0; done < n; {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		size := min(h.chunkSize, n-done)
		a := addr + uint32(done)

		var err error
		for attempt := 1; attempt <= h.attempts; attempt++ {
			err = step(a, size, scratch[:size])
			if err == nil || !Retryable(err) {
				break
			}
			if attempt < h.attempts {
				st.Retries++
				h.log.Warn("verify: retrying chunk",
					"phase", string(phase),
					"addr", fmt.Sprintf("0x%06X", a),
					"attempt", attempt,
					"err", err,
				)
			}
		}
		if err != nil {
			return st, fmt.Errorf("verify: %s chunk 0x%06X+%d: %w", phase, a, size, err)
		}

		done += size
		st.Chunks++
		st.Bytes = done
		if h.progress != nil {
			h.progress(Progress{Phase: phase, Done: done, Total: n})
		}
	}
	return st, nil
}

// Retryable reports whether a chunk failure is worth another attempt.
// Input errors and timeouts are not: retrying cannot change them.
func Retryable(err error) bool {
	return errors.Is(err, token.ErrBus) || errors.Is(err, ErrVerifyMismatch)
}

func writeThenCompare(m Memory, addr uint32, want, rd []byte) error {
	if _, err := m.Write(addr, want); err != nil {
		return err
	}
	return readThenCompare(m, addr, want, rd)
}

func readThenCompare(m Memory, addr uint32, want, rd []byte) error {
	if err := m.Read(addr, rd); err != nil {
		return err
	}
	for i := range want {
		if rd[i] != want[i] {
			return &MismatchError{Addr: addr + uint32(i), Want: want[i], Got: rd[i]}
		}
	}
	return nil
}
