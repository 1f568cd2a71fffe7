// internal/station/leds.go
package station

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/tamzrod/token-programmer/internal/status"
)

// Indicator shows station state to the operator.
type Indicator interface {
	Show(s status.Snapshot) error
}

// lamp is one output pin. gpio.PinIO satisfies it.
type lamp interface {
	Out(l gpio.Level) error
}

// LEDPins names the indicator outputs. Empty = not fitted.
type LEDPins struct {
	Inserted string
	Busy     string
	Pass     string
	Fail     string
}

// LEDs drives up to four indicator lamps:
// inserted (blue), busy (yellow), pass (green), fail (red).
type LEDs struct {
	inserted, busy, pass, fail lamp
}

// OpenLEDs resolves the pins through gpioreg. host.Init must have run.
func OpenLEDs(p LEDPins) (*LEDs, error) {
	l := &LEDs{}
	for _, x := range []struct {
		name string
		dst  *lamp
	}{
		{p.Inserted, &l.inserted},
		{p.Busy, &l.busy},
		{p.Pass, &l.pass},
		{p.Fail, &l.fail},
	} {
		if x.name == "" {
			continue
		}
		pin := gpioreg.ByName(x.name)
		if pin == nil {
			return nil, fmt.Errorf("station: led pin %q not found", x.name)
		}
		*x.dst = pin
	}
	return l, l.Off()
}

// Show lights the lamps for s.
func (l *LEDs) Show(s status.Snapshot) error {
	return errors.Join(
		set(l.inserted, s.Presence != 0),
		set(l.busy, s.Health == status.HealthBusy),
		set(l.pass, s.Health == status.HealthPass),
		set(l.fail, s.Health == status.HealthFail),
	)
}

// Off darkens every lamp.
func (l *LEDs) Off() error {
	return l.Show(status.Snapshot{})
}

func set(p lamp, on bool) error {
	if p == nil {
		return nil
	}
	return p.Out(gpio.Level(on))
}
