// internal/token/errors.go
package token

import (
	"errors"
	"fmt"

	"github.com/tamzrod/token-programmer/internal/transport"
)

var (
	// ErrInvalidInput: bad address, length or region. No bus I/O was performed.
	ErrInvalidInput = errors.New("token: invalid input")

	// ErrTimeout: the device did not become ready, or a bulk budget ran out.
	ErrTimeout = errors.New("token: timeout")

	// ErrRemoved: the token was pulled before or during the operation.
	// It is a timeout as far as callers are concerned.
	ErrRemoved = fmt.Errorf("%w: token removed", ErrTimeout)

	// ErrNoToken: no classified token is bound.
	ErrNoToken = errors.New("token: no token")

	// ErrWrongKind: the inserted token is not the kind the job requires.
	ErrWrongKind = errors.New("token: wrong kind")

	// ErrBus: the transport reported a failed transfer.
	ErrBus = transport.ErrBus
)

// RangeError describes an access outside the device address space.
type RangeError struct {
	Addr    uint32
	Len     uint64
	MemSize uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("token: range 0x%06X+%d outside device of %d bytes", e.Addr, e.Len, e.MemSize)
}

func (e *RangeError) Unwrap() error { return ErrInvalidInput }
