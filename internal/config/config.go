// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Station  StationConfig  `yaml:"station"`
	SPI      SPIConfig      `yaml:"spi"`
	Presence PresenceConfig `yaml:"presence"`
	Timing   TimingConfig   `yaml:"timing"`
	Harness  HarnessConfig  `yaml:"harness"`
	Job      JobConfig      `yaml:"job"`
	Status   StatusConfig   `yaml:"status"`
}

// ---- STATION ----

type StationConfig struct {
	// Name is published at the end of the status block (max 16 ASCII chars).
	Name string    `yaml:"name"`
	LEDs LEDConfig `yaml:"leds"`
}

// LEDConfig names the indicator output pins. Empty = not fitted.
type LEDConfig struct {
	Inserted string `yaml:"inserted"`
	Busy     string `yaml:"busy"`
	Pass     string `yaml:"pass"`
	Fail     string `yaml:"fail"`
}

// ---- SPI ----

type SPIConfig struct {
	Port        string `yaml:"port"` // "" = first registered port
	SpeedHz     int64  `yaml:"speed_hz"`
	Mode        int    `yaml:"mode"`
	CSPin       string `yaml:"cs_pin"`       // "" = controller chip-select
	MaxTransfer int    `yaml:"max_transfer"` // 0 = driver limit
}

// ---- PRESENCE ----

type PresenceConfig struct {
	Pin              string `yaml:"pin"`
	Pull             string `yaml:"pull"`           // up | down | float
	InsertedLevel    string `yaml:"inserted_level"` // high | low
	TimeoutMs        int    `yaml:"timeout_ms"`
	StableSamples    int    `yaml:"stable_samples"`
	SampleIntervalMs int    `yaml:"sample_interval_ms"`
}

// ---- TIMING ----

type TimingConfig struct {
	SmallTimeoutMs int    `yaml:"small_timeout_ms"`
	LargeTimeoutMs int    `yaml:"large_timeout_ms"`
	PollUs         int    `yaml:"poll_us"`
	ChipEraseMs    int    `yaml:"chip_erase_ms"`
	ChipEraseBase  uint32 `yaml:"chip_erase_base"`
}

// ---- HARNESS ----

type HarnessConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Attempts  int `yaml:"attempts"`
}

// ---- JOB ----

type JobConfig struct {
	// Image is the local image path programmed on every insertion.
	Image string `yaml:"image"`
	// Source, if set, is watched and mirrored into Image.
	Source string `yaml:"source"`

	Address     uint32 `yaml:"address"`
	RequireKind string `yaml:"require_kind"` // "" | eeprom | flash
	EraseFirst  *bool  `yaml:"erase_first"`
	Protect     string `yaml:"protect"` // region name applied after a good program

	EepromSize uint32 `yaml:"eeprom_size"`
}

// ---- STATUS ----

type StatusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Sink      string `yaml:"sink"` // modbus | ingest
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Load reads a YAML config. Unknown keys are an error.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}
