// internal/verify/selftest.go
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tamzrod/token-programmer/internal/token"
)

// CaseResult is the outcome of one self-test case.
type CaseResult struct {
	Name string
	Err  error
}

func (r CaseResult) Passed() bool { return r.Err == nil }

// blockingEraser is implemented by devices whose EraseAll returns before the
// erase completes.
type blockingEraser interface {
	EraseAllBlocking() error
}

// SelfTest exercises every device operation end to end. It is destructive:
// the device ends up erased with no region protected.
//
// Cases run in order and all run even after a failure, except that a device
// error marking the token as gone stops the suite.
func (h *Harness) SelfTest(ctx context.Context, dev token.Device) []CaseResult {
	geo := dev.Geometry()
	size := int(geo.MemSize)
	first := min(size, h.chunkSize)

	cases := []struct {
		name string
		run  func() error
	}{
		{"unprotect", func() error {
			return dev.ProtectRegion(token.RegionNone)
		}},
		{"read", func() error {
			return dev.Read(0, make([]byte, size))
		}},
		{"erase", func() error {
			if err := dev.Erase(0, uint32(size)); err != nil {
				return err
			}
			_, err := h.VerifyErased(ctx, dev, 0, size)
			return err
		}},
		{"write", func() error {
			_, err := h.WriteAndVerify(ctx, dev, 0, first)
			return err
		}},
		{"write-all", func() error {
			if err := dev.Erase(0, uint32(size)); err != nil {
				return err
			}
			_, err := h.WriteAndVerify(ctx, dev, 0, size)
			return err
		}},
		{"erase-all", func() error {
			if err := eraseAll(dev); err != nil {
				return err
			}
			_, err := h.VerifyErased(ctx, dev, 0, size)
			return err
		}},
		{"protect", func() error {
			return protectRoundTrip(dev)
		}},
	}

	results := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			results = append(results, CaseResult{Name: c.name, Err: err})
			break
		}
		err := c.run()
		results = append(results, CaseResult{Name: c.name, Err: err})

		if err != nil {
			h.log.Warn("verify: self-test case failed", "case", c.name, "kind", geo.Kind.String(), "err", err)
		} else {
			h.log.Info("verify: self-test case passed", "case", c.name, "kind", geo.Kind.String())
		}
		if err != nil && isGone(err) {
			break
		}
	}
	return results
}

func eraseAll(dev token.Device) error {
	if b, ok := dev.(blockingEraser); ok {
		return b.EraseAllBlocking()
	}
	return dev.EraseAll()
}

// protectRoundTrip sets every region, reads it back and ends unprotected.
func protectRoundTrip(dev token.Device) error {
	geo := dev.Geometry()
	for i := geo.Regions() - 1; i >= 0; i-- {
		r := token.Region(i)
		if err := dev.ProtectRegion(r); err != nil {
			return err
		}
		got, err := dev.ProtectedRegion()
		if err != nil {
			return err
		}
		if got != r {
			return fmt.Errorf("%w: protect %s reads back as %s", ErrVerifyMismatch, geo.RegionName(r), geo.RegionName(got))
		}
	}
	return nil
}

func isGone(err error) bool {
	return errors.Is(err, token.ErrRemoved) || errors.Is(err, token.ErrNoToken)
}
