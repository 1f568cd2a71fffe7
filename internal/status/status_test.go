package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tamzrod/token-programmer/internal/image"
	"github.com/tamzrod/token-programmer/internal/token"
	"github.com/tamzrod/token-programmer/internal/verify"
)

func TestEncode_LayoutAndName(t *testing.T) {
	s := Snapshot{
		Health:        HealthPass,
		LastErrorCode: CodeOK,
		Presence:      1,
		TokenKind:     KindFlash,
		JobsOK:        3,
		JobsFailed:    1,
		TokenSizeKiB:  32,
		ProtectRegion: 5,
	}
	regs := Encode(s, "BENCH-01")

	if len(regs) != SlotsPerStation {
		t.Fatalf("block length: got=%d want=%d", len(regs), SlotsPerStation)
	}
	if regs[SlotHealthCode] != HealthPass || regs[SlotTokenKind] != KindFlash || regs[SlotProtectRegion] != 5 {
		t.Fatalf("live slots wrong: %v", regs[:SlotReservedStart])
	}
	for i := SlotReservedStart; i <= SlotReservedEnd; i++ {
		if regs[i] != 0 {
			t.Fatalf("reserved slot %d not zero", i)
		}
	}
	// "BE" = 0x4245
	if regs[SlotStationNameStart] != 0x4245 {
		t.Fatalf("name slot: got=0x%04X want=0x4245", regs[SlotStationNameStart])
	}
	if regs[SlotStationNameEnd] != 0 {
		t.Fatalf("name padding not zero")
	}
}

func TestEncodeName_TruncatesAndSanitizes(t *testing.T) {
	regs := EncodeName("ABCDEFGHIJKLMNOPQRS\x01")
	if len(regs) != SlotStationNameSlots {
		t.Fatalf("len: got=%d", len(regs))
	}
	if regs[7] != uint16('O')<<8|uint16('P') {
		t.Fatalf("truncation: got=0x%04X", regs[7])
	}

	regs = EncodeName("A\x01")
	if regs[0] != uint16('A')<<8|uint16('?') {
		t.Fatalf("sanitize: got=0x%04X", regs[0])
	}
}

func TestDiff(t *testing.T) {
	a := Snapshot{Health: HealthIdle}
	b := Snapshot{Health: HealthBusy, JobsOK: 1}

	got := Diff(a, b)
	if len(got) != 2 || got[0] != SlotHealthCode || got[1] != SlotJobsOK {
		t.Fatalf("diff: got=%v", got)
	}
	if len(Diff(a, a)) != 0 {
		t.Fatalf("identical snapshots differ")
	}
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want uint16
	}{
		{nil, CodeOK},
		{errors.New("boom"), CodeGeneric},
		{&token.RangeError{Addr: 1, Len: 1, MemSize: 1}, CodeInvalidInput},
		{fmt.Errorf("x: %w", token.ErrTimeout), CodeTimeout},
		{token.ErrRemoved, CodeTimeout},
		{fmt.Errorf("x: %w", token.ErrBus), CodeBus},
		{fmt.Errorf("verify: %w", &verify.MismatchError{}), CodeVerifyMismatch},
		{fmt.Errorf("%w: flash", token.ErrWrongKind), CodeWrongKind},
		{image.ErrNoImage, CodeNoImage},
	}
	for _, c := range cases {
		if got := Code(c.err); got != c.want {
			t.Fatalf("Code(%v): got=%d want=%d", c.err, got, c.want)
		}
	}
}

func TestTracker_JobLifecycle(t *testing.T) {
	tr := NewTracker()

	if !tr.Idle() {
		t.Fatalf("boot -> idle must change")
	}
	tr.Inserted(token.KindEeprom, 256)
	tr.JobStarted()
	if got := tr.Snapshot(); got.Health != HealthBusy || got.TokenSizeKiB != 1 || got.TokenKind != KindEeprom {
		t.Fatalf("busy snapshot: %+v", got)
	}

	tr.JobFinished(fmt.Errorf("x: %w", token.ErrBus), token.RegionNone)
	if got := tr.Snapshot(); got.Health != HealthFail || got.LastErrorCode != CodeBus || got.JobsFailed != 1 {
		t.Fatalf("fail snapshot: %+v", got)
	}

	tr.Tick()
	tr.Tick()
	if got := tr.Snapshot(); got.SecondsInError != 2 {
		t.Fatalf("seconds_in_error: got=%d want=2", got.SecondsInError)
	}

	tr.Removed()
	got := tr.Snapshot()
	if got.Health != HealthIdle || got.SecondsInError != 0 || got.Presence != 0 {
		t.Fatalf("removed snapshot: %+v", got)
	}
	if got.LastErrorCode != CodeBus {
		t.Fatalf("last error must survive removal")
	}
	if tr.Tick() {
		t.Fatalf("idle tick must not change")
	}

	tr.Inserted(token.KindFlash, 1<<15)
	tr.JobStarted()
	tr.JobFinished(nil, token.FlashProtectAll)
	got = tr.Snapshot()
	if got.Health != HealthPass || got.LastErrorCode != CodeOK || got.JobsOK != 1 || got.ProtectRegion != 5 {
		t.Fatalf("pass snapshot: %+v", got)
	}
}

func TestTracker_SecondsInErrorSaturates(t *testing.T) {
	tr := NewTracker()
	tr.JobFinished(errors.New("x"), 0)
	tr.snap.SecondsInError = 65535

	if tr.Tick() {
		t.Fatalf("saturated tick must not change")
	}
	if tr.Snapshot().SecondsInError != 65535 {
		t.Fatalf("seconds_in_error wrapped")
	}
}
