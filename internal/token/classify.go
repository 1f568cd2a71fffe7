// internal/token/classify.go
package token

import (
	"fmt"
)

// Classify identifies the inserted token from its electronic signature.
//
// Flash parts answer RES (0xAB) with a non-zero signature whose low nibble
// encodes log2 of the size. EEPROM parts do not implement RES and read back
// zero. This is a heuristic: an absent part on a pulled-down bus also reads
// zero and is classified as EEPROM. Presence is therefore checked first.
//
// On a readiness timeout the result is KindNone, never a guess.
func Classify(l *Link) (Kind, uint32, error) {
	if !l.IsInserted() {
		return KindNone, 0, ErrRemoved
	}
	if err := l.awaitReady(l.timing.Small); err != nil {
		return KindNone, 0, fmt.Errorf("token: classify: %w", err)
	}

	var sig [1]byte
	if err := l.transfer(flashHeader(OpReadSignature, 0), sig[:]); err != nil {
		return KindNone, 0, fmt.Errorf("token: classify: %w", err)
	}

	if sig[0] == 0 {
		l.log.Debug("token: zero signature, assuming eeprom")
		return KindEeprom, 0, nil
	}

	size := uint32(1) << (sig[0] & 0x0F)
	l.log.Debug("token: flash signature", "signature", fmt.Sprintf("0x%02X", sig[0]), "size", size)
	return KindFlash, size, nil
}
