package station

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"

	"github.com/tamzrod/token-programmer/internal/status"
)

type fakeLamp struct {
	level gpio.Level
	err   error
}

func (f *fakeLamp) Out(l gpio.Level) error {
	f.level = l
	return f.err
}

func TestLEDsFollowHealth(t *testing.T) {
	in, busy, pass, fail := &fakeLamp{}, &fakeLamp{}, &fakeLamp{}, &fakeLamp{}
	l := &LEDs{inserted: in, busy: busy, pass: pass, fail: fail}

	cases := []struct {
		snap                 status.Snapshot
		in, busy, pass, fail gpio.Level
	}{
		{status.Snapshot{Health: status.HealthIdle}, gpio.Low, gpio.Low, gpio.Low, gpio.Low},
		{status.Snapshot{Health: status.HealthBusy, Presence: 1}, gpio.High, gpio.High, gpio.Low, gpio.Low},
		{status.Snapshot{Health: status.HealthPass, Presence: 1}, gpio.High, gpio.Low, gpio.High, gpio.Low},
		{status.Snapshot{Health: status.HealthFail, Presence: 1}, gpio.High, gpio.Low, gpio.Low, gpio.High},
	}
	for i, c := range cases {
		if err := l.Show(c.snap); err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if in.level != c.in || busy.level != c.busy || pass.level != c.pass || fail.level != c.fail {
			t.Fatalf("case %d: got %v %v %v %v", i, in.level, busy.level, pass.level, fail.level)
		}
	}

	if err := l.Off(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.level || pass.level {
		t.Fatalf("lamps still lit after Off")
	}
}

func TestLEDsMissingLampsAreSkipped(t *testing.T) {
	fail := &fakeLamp{}
	l := &LEDs{fail: fail}

	if err := l.Show(status.Snapshot{Health: status.HealthFail}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fail.level != gpio.High {
		t.Fatalf("fail lamp not lit")
	}
}

func TestLEDsJoinErrors(t *testing.T) {
	boom := errors.New("gpio write failed")
	l := &LEDs{busy: &fakeLamp{err: boom}, pass: &fakeLamp{}}

	if err := l.Show(status.Snapshot{}); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}
