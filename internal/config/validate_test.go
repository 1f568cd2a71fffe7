package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a config that passes validation
func valid() *Config {
	return &Config{
		Station: StationConfig{Name: "BENCH-01"},
		SPI:     SPIConfig{Mode: 0},
		Job:     JobConfig{Image: "/var/lib/token/image.bin"},
	}
}

// ---- tests ----

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"non-ascii name":       func(c *Config) { c.Station.Name = "BANC-É" },
		"spi mode":             func(c *Config) { c.SPI.Mode = 4 },
		"tiny max transfer":    func(c *Config) { c.SPI.MaxTransfer = 4 },
		"pull":                 func(c *Config) { c.Presence.Pull = "sideways" },
		"inserted level":       func(c *Config) { c.Presence.InsertedLevel = "1" },
		"cannot settle":        func(c *Config) { c.Presence.TimeoutMs, c.Presence.StableSamples, c.Presence.SampleIntervalMs = 10, 50, 1 },
		"negative timing":      func(c *Config) { c.Timing.PollUs = -1 },
		"negative attempts":    func(c *Config) { c.Harness.Attempts = -1 },
		"unknown kind":         func(c *Config) { c.Job.RequireKind = "nand" },
		"eeprom too big":       func(c *Config) { c.Job.EepromSize = 1024 },
		"source without image": func(c *Config) { c.Job.Image, c.Job.Source = "", "/mnt/share/image.bin" },
		"flash-only region":    func(c *Config) { c.Job.Protect = "sixteenth" },
		"eeprom lacks eighth":  func(c *Config) { c.Job.RequireKind, c.Job.Protect = "eeprom", "eighth" },
		"status sink":          func(c *Config) { c.Status = StatusConfig{Enabled: true, Sink: "mqtt", Endpoint: "x:1"} },
		"status endpoint":      func(c *Config) { c.Status = StatusConfig{Enabled: true} },
		"status base slot":     func(c *Config) { c.Status = StatusConfig{Enabled: true, Endpoint: "x:1", BaseSlot: 3276} },
	}

	for name, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
	}
}

func TestValidate_RegionPerKind(t *testing.T) {
	cfg := valid()
	cfg.Job.RequireKind = "flash"
	cfg.Job.Protect = "sixteenth"
	if err := Validate(cfg); err != nil {
		t.Fatalf("flash region rejected: %v", err)
	}

	cfg.Job.RequireKind = ""
	cfg.Job.Protect = "half"
	if err := Validate(cfg); err != nil {
		t.Fatalf("shared region rejected: %v", err)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := valid()
	before := *cfg
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Station != before.Station || cfg.Presence != before.Presence || cfg.Timing != before.Timing {
		t.Fatalf("validate mutated config")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := &Config{Status: StatusConfig{Enabled: true, Endpoint: "127.0.0.1:502"}}
	Normalize(cfg)

	if cfg.Station.Name != DefaultStationName {
		t.Fatalf("station name: got=%q", cfg.Station.Name)
	}
	if cfg.Presence.InsertedLevel != "low" || cfg.Presence.StableSamples != 50 {
		t.Fatalf("presence defaults: %+v", cfg.Presence)
	}
	if cfg.Job.EraseFirst == nil || !*cfg.Job.EraseFirst {
		t.Fatalf("erase_first must default to true")
	}
	if cfg.Status.Sink != "modbus" || cfg.Status.TimeoutMs != 2000 {
		t.Fatalf("status defaults: %+v", cfg.Status)
	}

	tm := cfg.Timing.Token()
	if tm.Small != 10*time.Second || tm.Large != time.Minute || tm.Poll != 100*time.Microsecond {
		t.Fatalf("timing: %+v", tm)
	}
	if tm.ChipErase != 161*time.Second || tm.ChipEraseBase != 0x800000 {
		t.Fatalf("chip erase timing: %+v", tm)
	}

	d := cfg.Presence.Debounce()
	if d.Timeout != 200*time.Millisecond || d.SampleInterval != time.Millisecond || d.InsertedLevel {
		t.Fatalf("debounce: %+v", d)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	off := false
	cfg := &Config{
		Station: StationConfig{Name: "A-VERY-LONG-STATION-NAME"},
		Harness: HarnessConfig{ChunkSize: 64},
		Job:     JobConfig{EraseFirst: &off},
	}
	Normalize(cfg)

	if cfg.Station.Name != "A-VERY-LONG-STAT" {
		t.Fatalf("name not truncated: %q", cfg.Station.Name)
	}
	if cfg.Harness.ChunkSize != 64 || cfg.Harness.Attempts != DefaultAttempts {
		t.Fatalf("harness: %+v", cfg.Harness)
	}
	if *cfg.Job.EraseFirst {
		t.Fatalf("explicit erase_first=false overridden")
	}
	if cfg.Status.Sink != "" {
		t.Fatalf("disabled status must not get a sink")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	yml := `
station:
  name: BENCH-02
  leds:
    busy: GPIO26
spi:
  port: /dev/spidev0.0
  speed_hz: 2000000
presence:
  pin: GPIO18
  inserted_level: low
job:
  image: /var/lib/token/image.bin
  require_kind: flash
  protect: all
status:
  enabled: true
  sink: ingest
  endpoint: 10.0.0.5:9000
  base_slot: 2
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Station.LEDs.Busy != "GPIO26" || cfg.SPI.SpeedHz != 2_000_000 || cfg.Status.BaseSlot != 2 {
		t.Fatalf("decoded: %+v", cfg)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	if err := os.WriteFile(path, []byte("spi:\n  sped_hz: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("typo accepted")
	}
}
