// internal/status/code.go
package status

import (
	"errors"

	"github.com/tamzrod/token-programmer/internal/image"
	"github.com/tamzrod/token-programmer/internal/token"
	"github.com/tamzrod/token-programmer/internal/verify"
)

// Code maps an error onto the status block error code.
// Errors that expose their own Code() uint16 keep it. Anything
// unrecognised is CodeGeneric.
func Code(err error) uint16 {
	if err == nil {
		return CodeOK
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	switch {
	case errors.Is(err, token.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, verify.ErrVerifyMismatch):
		return CodeVerifyMismatch
	case errors.Is(err, token.ErrWrongKind), errors.Is(err, token.ErrNoToken):
		return CodeWrongKind
	case errors.Is(err, image.ErrNoImage):
		return CodeNoImage
	case errors.Is(err, token.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, token.ErrBus):
		return CodeBus
	}
	return CodeGeneric
}

// KindCode maps a token kind onto the status block kind code.
func KindCode(k token.Kind) uint16 {
	switch k {
	case token.KindEeprom:
		return KindEeprom
	case token.KindFlash:
		return KindFlash
	}
	return KindNone
}
