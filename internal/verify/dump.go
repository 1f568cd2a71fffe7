// internal/verify/dump.go
package verify

import (
	"fmt"
	"io"

	"github.com/tamzrod/token-programmer/internal/token"
)

const dumpWidth = 16

// Dump reads [addr, addr+n) and writes it to w as addressed hex lines:
//
//	000100  FF FF FF FF FF FF FF FF  FF FF FF FF FF FF FF FF
//
// Reads are whole lines, as many as fit a chunk, and are not retried.
func (h *Harness) Dump(m Memory, addr uint32, n int, w io.Writer) error {
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", token.ErrInvalidInput, n)
	}
	lines := max(1, h.chunkSize/dumpWidth)
	buf := make([]byte, min(n, lines*dumpWidth))

	for done := 0; done < n; {
		size := min(len(buf), n-done)
		a := addr + uint32(done)
		if err := m.Read(a, buf[:size]); err != nil {
			return fmt.Errorf("verify: dump 0x%06X: %w", a, err)
		}
		if err := writeLines(w, a, buf[:size]); err != nil {
			return err
		}
		done += size
	}
	return nil
}

func writeLines(w io.Writer, addr uint32, data []byte) error {
	for off := 0; off < len(data); off += dumpWidth {
		line := data[off:min(off+dumpWidth, len(data))]

		if _, err := fmt.Fprintf(w, "%06X ", addr+uint32(off)); err != nil {
			return err
		}
		for i, b := range line {
			sep := " "
			if i == dumpWidth/2 {
				sep = "  "
			}
			if _, err := fmt.Fprintf(w, "%s%02X", sep, b); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
