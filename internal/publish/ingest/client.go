// internal/publish/ingest/client.go
package ingest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	magicHi byte = 0x52 // 'R'
	magicLo byte = 0x49 // 'I'

	versionV1 byte = 0x01

	headerLen = 10

	respOK       byte = 0x00
	respRejected byte = 0x01
)

// ErrRejected: the ingest endpoint refused the packet.
var ErrRejected = errors.New("publish ingest: rejected")

// EndpointClient sends status registers as Raw Ingest v1 packets.
// Stateless: one packet per connection.
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("publish ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &EndpointClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
	}, nil
}

func (c *EndpointClient) Close() error { return nil }

// WriteRegisters implements publish.Client.
func (c *EndpointClient) WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return errors.New("publish ingest: empty write")
	}
	pkt := buildPacketV1(area, unitID, addr, uint16(len(regs)), packRegisters(regs))

	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return fmt.Errorf("publish ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("publish ingest: write: %w", err)
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("publish ingest: read status: %w", err)
	}

	switch resp[0] {
	case respOK:
		return nil
	case respRejected:
		return ErrRejected
	default:
		return fmt.Errorf("publish ingest: unknown status 0x%02x", resp[0])
	}
}

//
// ---- Raw Ingest v1 packet (LOCKED) ----
//
// 0-1  Magic "RI"
// 2    Version (0x01)
// 3    Area
// 4-5  UnitID
// 6-7  Address
// 8-9  Count
// 10+  Payload, registers big-endian
//

func buildPacketV1(area byte, unitID uint8, addr, count uint16, payload []byte) []byte {
	pkt := make([]byte, headerLen, headerLen+len(payload))

	pkt[0] = magicHi
	pkt[1] = magicLo
	pkt[2] = versionV1
	pkt[3] = area

	putU16(pkt[4:6], uint16(unitID))
	putU16(pkt[6:8], addr)
	putU16(pkt[8:10], count)

	return append(pkt, payload...)
}

func putU16(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		putU16(out[2*i:], r)
	}
	return out
}
