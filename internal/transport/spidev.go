// internal/transport/spidev.go
package transport

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Config is the SPI port setup.
// The host drivers (periph.io/x/host/v3) must be initialized by the caller.
type Config struct {
	Port        string // spireg name, e.g. "/dev/spidev0.0"; "" = first registered
	SpeedHz     int64
	Mode        int    // 0..3
	CSPin       string // optional: drive chip-select manually through this GPIO
	MaxTransfer int    // 0 = ask the driver
}

// SPIDev is a periph.io SPI connection framed as a half-duplex Transport.
type SPIDev struct {
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinIO
	max  int
}

// Open connects to the SPI port described by cfg.
func Open(cfg Config) (*SPIDev, error) {
	if cfg.SpeedHz <= 0 {
		return nil, errors.New("transport: spi speed must be > 0")
	}
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("transport: invalid spi mode %d", cfg.Mode)
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}

	mode := spi.Mode(cfg.Mode)

	var cs gpio.PinIO
	if cfg.CSPin != "" {
		cs = gpioreg.ByName(cfg.CSPin)
		if cs == nil {
			_ = port.Close()
			return nil, fmt.Errorf("transport: chip-select pin %q not found", cfg.CSPin)
		}
		if err := cs.Out(gpio.High); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("transport: chip-select idle: %w", err)
		}
		mode |= spi.NoCS
	}

	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: connect %s: %w", cfg.Port, err)
	}

	limit := cfg.MaxTransfer
	if limit <= 0 {
		if l, ok := conn.(interface{ MaxTxSize() int }); ok {
			limit = l.MaxTxSize()
		}
	}

	return &SPIDev{
		port: port,
		conn: conn,
		cs:   cs,
		max:  limit,
	}, nil
}

// Transfer clocks tx out and rx in within one chip-select window.
// The bus is full duplex, so both directions share one combined buffer.
func (d *SPIDev) Transfer(tx, rx []byte) (err error) {
	n := len(tx) + len(rx)
	if n == 0 {
		return nil
	}
	if d.max > 0 && n > d.max {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit %d", ErrBus, n, d.max)
	}

	w := make([]byte, n)
	copy(w, tx)
	var r []byte
	if len(rx) > 0 {
		r = make([]byte, n)
	}

	if d.cs != nil {
		if err = d.cs.Out(gpio.Low); err != nil {
			return fmt.Errorf("%w: select: %v", ErrBus, err)
		}
		defer func() {
			if csErr := d.cs.Out(gpio.High); csErr != nil && err == nil {
				err = fmt.Errorf("%w: deselect: %v", ErrBus, csErr)
			}
		}()
	}

	if err = d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("%w: %v", ErrBus, err)
	}
	if len(rx) > 0 {
		copy(rx, r[len(tx):])
	}
	return nil
}

// MaxTransfer returns the largest frame the driver accepts, 0 if unknown.
func (d *SPIDev) MaxTransfer() int {
	return d.max
}

// Close releases the port.
func (d *SPIDev) Close() error {
	if d == nil || d.port == nil {
		return nil
	}
	return d.port.Close()
}
