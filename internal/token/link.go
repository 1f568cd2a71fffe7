// internal/token/link.go
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/token-programmer/internal/clock"
	"github.com/tamzrod/token-programmer/internal/transport"
)

// Presence is the read side of the debounced presence state.
type Presence interface {
	// Snapshot returns presence and its transition generation as one pair.
	Snapshot() (inserted bool, gen uint64)
}

// Timing holds the readiness and bulk-operation budgets.
type Timing struct {
	// Small bounds ordinary readiness waits.
	Small time.Duration
	// Large bounds a whole multi-page write.
	Large time.Duration
	// Poll is the pause between status register reads.
	Poll time.Duration

	// ChipErase is the datasheet chip-erase time for a part of
	// ChipEraseBase bytes; larger parts scale linearly.
	ChipErase     time.Duration
	ChipEraseBase uint32
}

// DefaultTiming: 10s / 60s, 161s chip erase for a 64 Mbit part.
func DefaultTiming() Timing {
	return Timing{
		Small:         10 * time.Second,
		Large:         60 * time.Second,
		Poll:          100 * time.Microsecond,
		ChipErase:     161 * time.Second,
		ChipEraseBase: 0x800000,
	}
}

// Link is the readiness / write-gate protocol shared by both variants.
// It owns the transport between select and deselect; every frame is one
// exclusive transfer.
type Link struct {
	tr       *transport.Bus
	presence Presence
	clk      clock.Clock
	timing   Timing
	log      *slog.Logger
}

// NewLink wires the protocol to a transport and presence source.
func NewLink(tr transport.Transport, p Presence, clk clock.Clock, timing Timing, log *slog.Logger) (*Link, error) {
	if tr == nil {
		return nil, errors.New("token: transport required")
	}
	if p == nil {
		return nil, errors.New("token: presence required")
	}
	if timing.Small <= 0 || timing.Large <= 0 {
		return nil, errors.New("token: timeouts must be > 0")
	}
	if timing.Poll <= 0 {
		return nil, errors.New("token: poll interval must be > 0")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Link{
		tr:       transport.Exclusive(tr),
		presence: p,
		clk:      clk,
		timing:   timing,
		log:      log,
	}, nil
}

// Timing returns the configured budgets.
func (l *Link) Timing() Timing {
	return l.timing
}

// Transfers returns the number of frames issued on the bus.
func (l *Link) Transfers() uint64 {
	return l.tr.Count()
}

// IsInserted reports the debounced presence.
func (l *Link) IsInserted() bool {
	inserted, _ := l.presence.Snapshot()
	return inserted
}

// ReadStatus reads the 8-bit status register.
func (l *Link) ReadStatus() (uint8, error) {
	var sr [1]byte
	if err := l.tr.Transfer([]byte{OpReadStatus}, sr[:]); err != nil {
		return 0, fmt.Errorf("token: read status: %w", err)
	}
	return sr[0], nil
}

// WaitUntilReady polls the busy bit until it clears.
// False on timeout, or as soon as the token is seen removed.
func (l *Link) WaitUntilReady(timeout time.Duration) bool {
	return l.awaitReady(timeout) == nil
}

// awaitReady is WaitUntilReady with the reason attached.
func (l *Link) awaitReady(timeout time.Duration) error {
	start := l.clk.Millis()
	limit := clock.Ms(timeout)

	for {
		if !l.IsInserted() {
			return ErrRemoved
		}

		sr, err := l.ReadStatus()
		if err == nil && sr&StatusBusy == 0 {
			return nil
		}

		if clock.Expired(l.clk, start, limit) {
			if err != nil {
				return fmt.Errorf("%w: waiting for ready after %v: %v", ErrTimeout, timeout, err)
			}
			return fmt.Errorf("%w: waiting for ready after %v", ErrTimeout, timeout)
		}
		l.clk.Sleep(l.timing.Poll)
	}
}

// WriteEnable sets the write-enable latch once the device is ready.
// The device drops the latch after one mutating instruction, so this
// precedes every page write, erase and status write.
func (l *Link) WriteEnable() error {
	if err := l.awaitReady(l.timing.Small); err != nil {
		l.log.Warn("token: write enable: device not ready", "err", err)
		return fmt.Errorf("token: write enable: %w", err)
	}
	if err := l.tr.Transfer([]byte{OpWriteEnable}, nil); err != nil {
		l.releaseLatch()
		return fmt.Errorf("token: write enable: %w", err)
	}
	return nil
}

// WriteDisable clears the write-enable latch.
func (l *Link) WriteDisable() error {
	if err := l.tr.Transfer([]byte{OpWriteDisable}, nil); err != nil {
		return fmt.Errorf("token: write disable: %w", err)
	}
	return nil
}

// WriteStatus replaces the status register.
func (l *Link) WriteStatus(sr uint8) error {
	return l.mutate("write status", []byte{OpWriteStatus, sr})
}

// DeepPowerDown parks a Flash token; only ReleasePowerDown wakes it.
func (l *Link) DeepPowerDown() error {
	if err := l.awaitReady(l.timing.Small); err != nil {
		return fmt.Errorf("token: deep power-down: %w", err)
	}
	if err := l.tr.Transfer([]byte{OpDeepPowerDown}, nil); err != nil {
		return fmt.Errorf("token: deep power-down: %w", err)
	}
	return nil
}

// ReleasePowerDown wakes a Flash token from deep power-down.
func (l *Link) ReleasePowerDown() error {
	if err := l.tr.Transfer([]byte{OpReadSignature}, nil); err != nil {
		return fmt.Errorf("token: release power-down: %w", err)
	}
	return nil
}

// mutate sends one mutating frame behind a fresh write-enable.
// If the frame does not go out cleanly the latch is explicitly dropped.
func (l *Link) mutate(op string, frame []byte) error {
	if err := l.WriteEnable(); err != nil {
		return fmt.Errorf("token: %s: %w", op, err)
	}
	if err := l.tr.Transfer(frame, nil); err != nil {
		l.releaseLatch()
		return fmt.Errorf("token: %s: %w", op, err)
	}
	return nil
}

// releaseLatch is best effort: if the bus is down the device is unreachable anyway.
func (l *Link) releaseLatch() {
	if err := l.WriteDisable(); err != nil {
		l.log.Warn("token: could not clear write-enable latch", "err", err)
	}
}

// transfer is a raw frame for device read paths.
func (l *Link) transfer(tx, rx []byte) error {
	return l.tr.Transfer(tx, rx)
}

// maxTransfer is the transport frame limit, 0 when unlimited.
func (l *Link) maxTransfer() int {
	return l.tr.MaxTransfer()
}
