// internal/publish/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

const areaHoldingRegisters byte = 3

// EndpointClient is a single TCP connection to one status memory endpoint.
// It serializes requests because it mutates SlaveId per write.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("publish modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("publish modbus: connect %s: %w", cfg.Endpoint, err)
	}

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes holding registers (FC16). Other areas are not
// writable over Modbus and are rejected.
func (c *EndpointClient) WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error {
	if area != areaHoldingRegisters {
		return fmt.Errorf("publish modbus: area %d not writable", area)
	}
	if len(regs) == 0 || len(regs) > 123 {
		return fmt.Errorf("publish modbus: %d registers per write (1..123)", len(regs))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

// Modbus register memory order (BIG-ENDIAN)
func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
