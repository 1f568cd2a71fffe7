// cmd/token-programmer/engine.go
package main

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/host/v3"

	"github.com/tamzrod/token-programmer/internal/clock"
	"github.com/tamzrod/token-programmer/internal/config"
	"github.com/tamzrod/token-programmer/internal/presence"
	"github.com/tamzrod/token-programmer/internal/sim"
	"github.com/tamzrod/token-programmer/internal/token"
	"github.com/tamzrod/token-programmer/internal/transport"
	"github.com/tamzrod/token-programmer/internal/verify"
)

// simulated Flash signature: 32 KiB part
const simFlashSignature = 0x1F

// engine is everything between the SPI pins and a classified token.
type engine struct {
	cfg      *config.Config
	log      *slog.Logger
	state    *presence.State
	debounce *presence.Debouncer
	manager  *token.Manager
	harness  *verify.Harness

	closers []func() error
}

// openEngine loads config and brings up the bus, presence and manager.
func openEngine() (*engine, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	e := &engine{cfg: cfg, log: log, state: presence.NewState()}
	pcfg := cfg.Presence.Debounce()

	// --------------------
	// Bus + presence pin
	// --------------------

	var (
		tr  transport.Transport
		pin presence.Pin
	)
	switch simulate {
	case "":
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init: %w", err)
		}
		dev, err := transport.Open(cfg.SPI.Transport())
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, dev.Close)
		tr = dev

		gp, err := presence.OpenGPIO(cfg.Presence.Pin, cfg.Presence.Pull)
		if err != nil {
			e.Close()
			return nil, err
		}
		pin = gp

	case "eeprom":
		tr = sim.NewEeprom(int(cfg.Job.EepromSize))
		pin = sim.NewPin(pcfg.InsertedLevel)

	case "flash":
		tr = sim.NewFlash(0, simFlashSignature)
		pin = sim.NewPin(pcfg.InsertedLevel)

	default:
		return nil, fmt.Errorf("--simulate %q: must be eeprom or flash", simulate)
	}

	clk := clock.System()

	e.debounce, err = presence.New(pcfg, pin, e.state, clk, log)
	if err != nil {
		e.Close()
		return nil, err
	}

	link, err := token.NewLink(transport.Exclusive(tr), e.state, clk, cfg.Timing.Token(), log)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.manager, err = token.NewManager(link, e.state, token.EepromGeometry(cfg.Job.EepromSize), log)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.harness = verify.New(
		verify.WithChunkSize(cfg.Harness.ChunkSize),
		verify.WithAttempts(cfg.Harness.Attempts),
		verify.WithLogger(log),
	)

	log.Info("engine ready",
		"simulate", simulate,
		"spi", cfg.SPI.Port,
		"presence_pin", cfg.Presence.Pin,
	)
	return e, nil
}

// device settles presence once and classifies the token in the socket.
func (e *engine) device() (token.Device, error) {
	e.debounce.Step()
	if !e.state.IsInserted() {
		return nil, token.ErrNoToken
	}
	if _, _, err := e.manager.Refresh(); err != nil {
		return nil, err
	}
	dev, err := e.manager.Device()
	if errors.Is(err, token.ErrNoToken) {
		return e.manager.Classify()
	}
	return dev, err
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn("close failed", "err", err)
		}
	}
	e.closers = nil
}
