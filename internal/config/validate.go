// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/token-programmer/internal/status"
	"github.com/tamzrod/token-programmer/internal/token"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values mean "default" and are always accepted.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// STATION
	// ------------------------------------------------------------

	for i := 0; i < len(cfg.Station.Name); i++ {
		if cfg.Station.Name[i] > 0x7F {
			return fmt.Errorf("station.name must contain ASCII characters only")
		}
	}

	// ------------------------------------------------------------
	// SPI
	// ------------------------------------------------------------

	if cfg.SPI.Mode < 0 || cfg.SPI.Mode > 3 {
		return fmt.Errorf("spi.mode %d: must be 0..3", cfg.SPI.Mode)
	}
	if cfg.SPI.SpeedHz < 0 {
		return fmt.Errorf("spi.speed_hz must be >= 0")
	}
	// a Flash read frame is a 4 byte header plus at least one data byte
	if cfg.SPI.MaxTransfer != 0 && cfg.SPI.MaxTransfer < 5 {
		return fmt.Errorf("spi.max_transfer %d: must be 0 or >= 5", cfg.SPI.MaxTransfer)
	}

	// ------------------------------------------------------------
	// PRESENCE
	// ------------------------------------------------------------

	switch cfg.Presence.Pull {
	case "", "up", "down", "float", "none":
	default:
		return fmt.Errorf("presence.pull %q: must be up, down or float", cfg.Presence.Pull)
	}
	switch cfg.Presence.InsertedLevel {
	case "", "high", "low":
	default:
		return fmt.Errorf("presence.inserted_level %q: must be high or low", cfg.Presence.InsertedLevel)
	}
	if cfg.Presence.TimeoutMs < 0 || cfg.Presence.StableSamples < 0 || cfg.Presence.SampleIntervalMs < 0 {
		return fmt.Errorf("presence: timings must be >= 0")
	}
	if cfg.Presence.TimeoutMs > 0 && cfg.Presence.SampleIntervalMs > 0 && cfg.Presence.StableSamples > 0 &&
		cfg.Presence.StableSamples*cfg.Presence.SampleIntervalMs > cfg.Presence.TimeoutMs {
		return fmt.Errorf(
			"presence: %d samples at %dms cannot settle inside %dms",
			cfg.Presence.StableSamples,
			cfg.Presence.SampleIntervalMs,
			cfg.Presence.TimeoutMs,
		)
	}

	// ------------------------------------------------------------
	// TIMING / HARNESS
	// ------------------------------------------------------------

	t := cfg.Timing
	if t.SmallTimeoutMs < 0 || t.LargeTimeoutMs < 0 || t.PollUs < 0 || t.ChipEraseMs < 0 {
		return fmt.Errorf("timing: values must be >= 0")
	}
	if cfg.Harness.ChunkSize < 0 || cfg.Harness.Attempts < 0 {
		return fmt.Errorf("harness: values must be >= 0")
	}

	// ------------------------------------------------------------
	// JOB
	// ------------------------------------------------------------

	kind, err := token.ParseKind(cfg.Job.RequireKind)
	if err != nil {
		return fmt.Errorf("job.require_kind: %w", err)
	}
	if cfg.Job.EepromSize > 0x200 {
		return fmt.Errorf("job.eeprom_size %d: must be <= 512", cfg.Job.EepromSize)
	}
	if cfg.Job.Source != "" && cfg.Job.Image == "" {
		return fmt.Errorf("job.source is set but job.image is empty")
	}

	if cfg.Job.Protect != "" {
		// without a required kind the region must exist on both variants
		geos := []token.Geometry{token.EepromGeometry(0), token.FlashGeometry(0)}
		switch kind {
		case token.KindEeprom:
			geos = geos[:1]
		case token.KindFlash:
			geos = geos[1:]
		}
		for _, g := range geos {
			if _, err := g.ParseRegion(cfg.Job.Protect); err != nil {
				return fmt.Errorf("job.protect: %w", err)
			}
		}
	}

	// ------------------------------------------------------------
	// STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	if !cfg.Status.Enabled {
		return nil
	}
	switch cfg.Status.Sink {
	case "", "modbus", "ingest":
	default:
		return fmt.Errorf("status.sink %q: must be modbus or ingest", cfg.Status.Sink)
	}
	if cfg.Status.Endpoint == "" {
		return fmt.Errorf("status is enabled but status.endpoint is empty")
	}
	if cfg.Status.TimeoutMs < 0 {
		return fmt.Errorf("status.timeout_ms must be >= 0")
	}
	if uint32(cfg.Status.BaseSlot) >= 65536/status.SlotsPerStation {
		return fmt.Errorf("status.base_slot %d: block would not fit the register space", cfg.Status.BaseSlot)
	}

	return nil
}
