// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultStationName = "token-station"

	DefaultSPISpeedHz = 1_000_000

	DefaultPresencePin   = "GPIO18"
	DefaultPresencePull  = "up"
	DefaultInsertedLevel = "low"

	DefaultPresenceTimeoutMs = 200
	DefaultStableSamples     = 50
	DefaultSampleIntervalMs  = 1

	DefaultSmallTimeoutMs = 10_000
	DefaultLargeTimeoutMs = 60_000
	DefaultPollUs         = 100
	DefaultChipEraseMs    = 161_000
	DefaultChipEraseBase  = 0x800000

	DefaultChunkSize = 256
	DefaultAttempts  = 3

	DefaultEepromSize = 0x100

	DefaultStatusSink      = "modbus"
	DefaultStatusTimeoutMs = 2000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- station ----
	if cfg.Station.Name == "" {
		cfg.Station.Name = DefaultStationName
	}
	// ASCII already validated; truncate to the 16 characters the block holds
	if len(cfg.Station.Name) > 16 {
		cfg.Station.Name = cfg.Station.Name[:16]
	}

	// ---- spi ----
	setDefault(&cfg.SPI.SpeedHz, DefaultSPISpeedHz)

	// ---- presence ----
	setDefault(&cfg.Presence.Pin, DefaultPresencePin)
	setDefault(&cfg.Presence.Pull, DefaultPresencePull)
	setDefault(&cfg.Presence.InsertedLevel, DefaultInsertedLevel)
	setDefault(&cfg.Presence.TimeoutMs, DefaultPresenceTimeoutMs)
	setDefault(&cfg.Presence.StableSamples, DefaultStableSamples)
	setDefault(&cfg.Presence.SampleIntervalMs, DefaultSampleIntervalMs)

	// ---- timing ----
	setDefault(&cfg.Timing.SmallTimeoutMs, DefaultSmallTimeoutMs)
	setDefault(&cfg.Timing.LargeTimeoutMs, DefaultLargeTimeoutMs)
	setDefault(&cfg.Timing.PollUs, DefaultPollUs)
	setDefault(&cfg.Timing.ChipEraseMs, DefaultChipEraseMs)
	setDefault(&cfg.Timing.ChipEraseBase, DefaultChipEraseBase)

	// ---- harness ----
	setDefault(&cfg.Harness.ChunkSize, DefaultChunkSize)
	setDefault(&cfg.Harness.Attempts, DefaultAttempts)

	// ---- job ----
	setDefault(&cfg.Job.EepromSize, DefaultEepromSize)
	if cfg.Job.EraseFirst == nil {
		on := true
		cfg.Job.EraseFirst = &on
	}

	// ---- status ----
	if cfg.Status.Enabled {
		setDefault(&cfg.Status.Sink, DefaultStatusSink)
		setDefault(&cfg.Status.TimeoutMs, DefaultStatusTimeoutMs)
	}
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}
