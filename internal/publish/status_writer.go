// internal/publish/status_writer.go
package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/token-programmer/internal/status"
)

// StatusWriter is the delivery-only contract for station status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// Client is one status memory endpoint.
type Client interface {
	WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error
}

// AreaHoldingRegisters is the only area status is written to.
const AreaHoldingRegisters byte = 3

// Plan locates the status block on its endpoint.
type Plan struct {
	Endpoint    string
	UnitID      uint8
	BaseSlot    uint16
	StationName string
}

// stationStatusWriter is the concrete implementation used by the station.
type stationStatusWriter struct {
	plan Plan
	cli  Client

	needFull bool
	last     status.Snapshot
}

// NewStatusWriter binds a plan to its endpoint client.
func NewStatusWriter(plan Plan, cli Client) (StatusWriter, error) {
	if cli == nil {
		return nil, fmt.Errorf("status writer: missing client for endpoint %s", plan.Endpoint)
	}
	if (uint32(plan.BaseSlot)+1)*status.SlotsPerStation > 65536 {
		return nil, fmt.Errorf("status writer: base slot %d out of range", plan.BaseSlot)
	}
	return &stationStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     status.Snapshot{Health: status.HealthUnknown},
	}, nil
}

// WriteStatus delivers a station status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *stationStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.cli == nil {
		return errors.New("status writer: disabled")
	}

	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(
			AreaHoldingRegisters,
			sw.plan.UnitID,
			baseAddr,
			status.Encode(s, sw.plan.StationName),
		); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: one write per changed slot
	// ------------------------------------------------------------
	regs := status.Encode(s, "")
	var errs []string

	for _, slot := range status.Diff(sw.last, s) {
		if err := sw.cli.WriteRegisters(
			AreaHoldingRegisters,
			sw.plan.UnitID,
			baseAddr+uint16(slot),
			[]uint16{regs[slot]},
		); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	sw.last = s
	return nil
}

func (sw *stationStatusWriter) baseAddr() uint16 {
	// Each station owns a fixed SlotsPerStation block.
	return sw.plan.BaseSlot * status.SlotsPerStation
}
