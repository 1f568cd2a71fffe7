// internal/presence/debounce.go
package presence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/token-programmer/internal/clock"
)

// Pin abstracts the presence input. Read returns the raw electrical level
// (true = high); polarity is applied by Config.InsertedLevel.
type Pin interface {
	Read() bool
}

// Config is the debounce timing. Values come from configuration, never
// from compile-time constants, because they differ per board revision.
type Config struct {
	// Timeout bounds one confirmation window.
	Timeout time.Duration
	// StableSamples is the number of contiguous samples at the new level
	// required to commit a transition.
	StableSamples int
	// SampleInterval is the sleep between samples.
	SampleInterval time.Duration
	// InsertedLevel is the raw level that means "token inserted".
	InsertedLevel bool
}

// DefaultConfig returns 200ms / 50 samples at 1ms, inserted = high.
func DefaultConfig() Config {
	return Config{
		Timeout:        200 * time.Millisecond,
		StableSamples:  50,
		SampleInterval: time.Millisecond,
		InsertedLevel:  true,
	}
}

// Debouncer turns a bouncy presence pin into committed transitions on State.
type Debouncer struct {
	cfg   Config
	pin   Pin
	state *State
	clk   clock.Clock
	log   *slog.Logger
}

// New creates a debouncer with immutable config.
func New(cfg Config, pin Pin, state *State, clk clock.Clock, log *slog.Logger) (*Debouncer, error) {
	if pin == nil {
		return nil, errors.New("presence: pin required")
	}
	if state == nil {
		return nil, errors.New("presence: state required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("presence: timeout must be > 0")
	}
	if cfg.StableSamples <= 0 {
		return nil, errors.New("presence: stable samples must be > 0")
	}
	if cfg.SampleInterval <= 0 {
		return nil, errors.New("presence: sample interval must be > 0")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Debouncer{cfg: cfg, pin: pin, state: state, clk: clk, log: log}, nil
}

// State returns the presence state this debouncer owns.
func (d *Debouncer) State() *State {
	return d.state
}

// Run samples forever. It never gives up on a pin that will not settle;
// that is the degraded behavior for a floating input.
// Cancelling ctx is the only way out.
func (d *Debouncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		d.Step()
		d.clk.Sleep(d.cfg.SampleInterval)
	}
}

// Step is one main-loop iteration: sample once and, if the level disagrees
// with the confirmed state, run a confirmation window.
// Returns true if a transition was committed.
func (d *Debouncer) Step() bool {
	inserted := d.state.IsInserted()
	if d.sample() == inserted {
		return false
	}
	return d.confirm(!inserted)
}

// confirm requires target to hold for StableSamples contiguous samples
// inside Timeout. Any reversion resets the count to zero.
func (d *Debouncer) confirm(target bool) bool {
	start := d.clk.Millis()
	timeout := clock.Ms(d.cfg.Timeout)
	stable := 0

	for stable < d.cfg.StableSamples {
		if clock.Expired(d.clk, start, timeout) {
			d.log.Debug("presence: bounce window expired",
				"target_inserted", target,
				"stable", stable,
			)
			return false
		}

		if d.sample() == target {
			stable++
		} else {
			stable = 0
		}
		d.clk.Sleep(d.cfg.SampleInterval)
	}

	d.state.commit(target)
	d.log.Info("presence: transition",
		"inserted", target,
		"settle_ms", clock.Since(d.clk, start),
	)
	return true
}

// sample reads the pin and applies polarity.
func (d *Debouncer) sample() bool {
	return d.pin.Read() == d.cfg.InsertedLevel
}
