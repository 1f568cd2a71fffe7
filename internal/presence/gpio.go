// internal/presence/gpio.go
package presence

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIOPin is the presence input on a host GPIO.
type GPIOPin struct {
	pin gpio.PinIn
}

// OpenGPIO configures name as an input with the given pull
// ("up", "down", "float" or "" to leave unchanged).
// The host drivers must already be initialized.
func OpenGPIO(name, pull string) (*GPIOPin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("presence: gpio %q not found", name)
	}

	pl, err := parsePull(pull)
	if err != nil {
		return nil, err
	}
	if err := p.In(pl, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("presence: configure %s: %w", name, err)
	}
	return &GPIOPin{pin: p}, nil
}

func (p *GPIOPin) Read() bool {
	return p.pin.Read() == gpio.High
}

func parsePull(s string) (gpio.Pull, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return gpio.PullNoChange, nil
	case "up":
		return gpio.PullUp, nil
	case "down":
		return gpio.PullDown, nil
	case "float":
		return gpio.Float, nil
	default:
		return gpio.PullNoChange, fmt.Errorf("presence: invalid pull %q", s)
	}
}
