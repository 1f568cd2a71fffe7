// internal/token/frame.go
package token

// Instruction opcodes shared by both variants unless noted.
const (
	OpWriteStatus   byte = 0x01
	OpWrite         byte = 0x02
	OpRead          byte = 0x03
	OpWriteDisable  byte = 0x04
	OpReadStatus    byte = 0x05
	OpWriteEnable   byte = 0x06
	OpFastRead      byte = 0x0B // flash
	OpSectorErase   byte = 0xD8 // flash
	OpChipErase     byte = 0xC7 // flash
	OpDeepPowerDown byte = 0xB9 // flash
	OpReadSignature byte = 0xAB // flash; also releases deep power-down
)

const (
	eepromHeaderLen = 2
	flashHeaderLen  = 4
)

// eepromHeader folds address bit 8 into bit 3 of the opcode,
// followed by the low address byte.
func eepromHeader(op byte, addr uint32) []byte {
	return []byte{
		op | byte((addr&0x100)>>5),
		byte(addr),
	}
}

// flashHeader is the opcode followed by a 24-bit big-endian address.
func flashHeader(op byte, addr uint32) []byte {
	return []byte{
		op,
		byte(addr >> 16),
		byte(addr >> 8),
		byte(addr),
	}
}
