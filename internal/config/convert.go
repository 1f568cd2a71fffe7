// internal/config/convert.go
package config

import (
	"time"

	"github.com/tamzrod/token-programmer/internal/presence"
	"github.com/tamzrod/token-programmer/internal/token"
	"github.com/tamzrod/token-programmer/internal/transport"
)

// Runtime views of a normalized config.

func (c SPIConfig) Transport() transport.Config {
	return transport.Config{
		Port:        c.Port,
		SpeedHz:     c.SpeedHz,
		Mode:        c.Mode,
		CSPin:       c.CSPin,
		MaxTransfer: c.MaxTransfer,
	}
}

func (c PresenceConfig) Debounce() presence.Config {
	return presence.Config{
		Timeout:        ms(c.TimeoutMs),
		StableSamples:  c.StableSamples,
		SampleInterval: ms(c.SampleIntervalMs),
		InsertedLevel:  c.InsertedLevel != "low",
	}
}

func (c TimingConfig) Token() token.Timing {
	return token.Timing{
		Small:         ms(c.SmallTimeoutMs),
		Large:         ms(c.LargeTimeoutMs),
		Poll:          time.Duration(c.PollUs) * time.Microsecond,
		ChipErase:     ms(c.ChipEraseMs),
		ChipEraseBase: c.ChipEraseBase,
	}
}

func (c StatusConfig) Timeout() time.Duration {
	return ms(c.TimeoutMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
