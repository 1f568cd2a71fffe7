package modbus

import "testing"

func TestPackRegisters_BigEndian(t *testing.T) {
	got := packRegisters([]uint16{0x1234, 0x00FF})
	want := []byte{0x12, 0x34, 0x00, 0xFF}
	if string(got) != string(want) {
		t.Fatalf("packRegisters: got=% X want=% X", got, want)
	}
}

func TestWriteRegisters_RejectsBadRequests(t *testing.T) {
	c := &EndpointClient{}

	if err := c.WriteRegisters(1, 1, 0, []uint16{1}); err == nil {
		t.Fatalf("coil area accepted")
	}
	if err := c.WriteRegisters(areaHoldingRegisters, 1, 0, nil); err == nil {
		t.Fatalf("empty write accepted")
	}
	if err := c.WriteRegisters(areaHoldingRegisters, 1, 0, make([]uint16, 124)); err == nil {
		t.Fatalf("oversized write accepted")
	}
}

func TestNewEndpointClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewEndpointClient(Config{}); err == nil {
		t.Fatalf("empty endpoint accepted")
	}
}
