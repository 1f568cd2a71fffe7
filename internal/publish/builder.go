// internal/publish/builder.go
package publish

import (
	"fmt"

	cfg "github.com/tamzrod/token-programmer/internal/config"
	"github.com/tamzrod/token-programmer/internal/publish/ingest"
	pmodbus "github.com/tamzrod/token-programmer/internal/publish/modbus"
)

// Build creates the status writer for a normalized status config.
// Disabled status yields (nil, no-op closer, nil).
func Build(sc cfg.StatusConfig, stationName string) (StatusWriter, func() error, error) {
	noop := func() error { return nil }
	if !sc.Enabled {
		return nil, noop, nil
	}

	var (
		cli     Client
		closeFn func() error
	)

	switch sc.Sink {
	case "modbus", "":
		c, err := pmodbus.NewEndpointClient(pmodbus.Config{
			Endpoint: sc.Endpoint,
			Timeout:  sc.Timeout(),
		})
		if err != nil {
			return nil, noop, err
		}
		cli, closeFn = c, c.Close

	case "ingest":
		c, err := ingest.NewEndpointClient(ingest.Config{
			Endpoint: sc.Endpoint,
			Timeout:  sc.Timeout(),
		})
		if err != nil {
			return nil, noop, err
		}
		cli, closeFn = c, c.Close

	default:
		return nil, noop, fmt.Errorf("publish: unknown sink %q", sc.Sink)
	}

	sw, err := NewStatusWriter(Plan{
		Endpoint:    sc.Endpoint,
		UnitID:      sc.UnitID,
		BaseSlot:    sc.BaseSlot,
		StationName: stationName,
	}, cli)
	if err != nil {
		_ = closeFn()
		return nil, noop, err
	}
	return sw, closeFn, nil
}
