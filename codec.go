package mcp2517fd

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/soypat/mcp2517fd/sfr"
)

// Register words travel least significant byte first: the byte at the
// lowest address is clocked first.
var _busOrder = binary.LittleEndian

// Instruction is the 4-bit command nibble that opens every SPI frame.
type Instruction uint8

const (
	InstrReset     Instruction = 0b0000
	InstrWrite     Instruction = 0b0010
	InstrRead      Instruction = 0b0011
	InstrWriteCRC  Instruction = 0b1010
	InstrReadCRC   Instruction = 0b1011
	InstrWriteSafe Instruction = 0b1100
)

const (
	headerLen = 2
	wordLen   = 4
	frameLen  = headerLen + wordLen
)

func (in Instruction) String() (s string) {
	switch in {
	case InstrReset:
		s = "reset"
	case InstrWrite:
		s = "write"
	case InstrRead:
		s = "read"
	case InstrWriteCRC:
		s = "write-crc"
	case InstrReadCRC:
		s = "read-crc"
	case InstrWriteSafe:
		s = "write-safe"
	default:
		s = "unknown"
	}
	return s
}

// IsWrite reports whether the frame data is driven by the host.
func (in Instruction) IsWrite() bool {
	return in == InstrWrite || in == InstrWriteCRC || in == InstrWriteSafe
}

// IsRead reports whether the frame data is driven by the controller.
func (in Instruction) IsRead() bool { return in == InstrRead || in == InstrReadCRC }

// cmd_header packs the instruction and the 12-bit address:
//
//	| C3 C2 C1 C0 A11 A10 A9 A8 | A7 A6 A5 A4 A3 A2 A1 A0 |
//
//go:inline
func cmd_header(in Instruction, addr sfr.Address) uint16 {
	return uint16(in)<<12 | uint16(addr)&0xfff
}

func appendHeader(dst []byte, in Instruction, addr sfr.Address) []byte {
	return binary.BigEndian.AppendUint16(dst, cmd_header(in, addr))
}

// EncodeReset appends the reset command to dst. The controller is reset
// when chip select is released after the two bytes.
func EncodeReset(dst []byte) []byte {
	return appendHeader(dst, InstrReset, 0)
}

// EncodeRead appends a 4-byte register read frame to dst. The controller
// drives the register value on the 4 bytes following the header.
func EncodeRead(dst []byte, addr sfr.Address) []byte {
	dst = appendHeader(dst, InstrRead, addr)
	return append(dst, 0, 0, 0, 0)
}

// EncodeWrite appends a 4-byte register write frame to dst.
func EncodeWrite(dst []byte, addr sfr.Address, value uint32) []byte {
	dst = appendHeader(dst, InstrWrite, addr)
	return _busOrder.AppendUint32(dst, value)
}

// DecodeWord returns the register value carried by the data bytes of a
// read or write frame.
func DecodeWord(frame []byte) (uint32, error) {
	if len(frame) < frameLen {
		return 0, errShortFrame
	}
	return _busOrder.Uint32(frame[headerLen:frameLen]), nil
}

// Frame is a decoded chip-select delimited SPI transaction.
type Frame struct {
	Instr Instruction
	Addr  sfr.Address
	// Data holds the bytes after the header: MOSI bytes for writes
	// and MISO bytes for reads.
	Data []byte
}

// DecodeFrame decodes a transaction from the bytes shifted out by the host
// (mosi) and the bytes shifted in from the controller (miso). miso may be
// nil for write-only captures.
func DecodeFrame(mosi, miso []byte) (Frame, error) {
	if len(mosi) < headerLen {
		return Frame{}, errShortFrame
	}
	hdr := binary.BigEndian.Uint16(mosi)
	f := Frame{
		Instr: Instruction(hdr >> 12),
		Addr:  sfr.Address(hdr & 0xfff),
	}
	switch {
	case f.Instr.IsWrite():
		f.Data = mosi[headerLen:]
	case f.Instr.IsRead() && len(miso) >= headerLen:
		f.Data = miso[headerLen:]
	}
	return f, nil
}

// Word returns the first register word in the frame data.
func (f Frame) Word() (uint32, bool) {
	if len(f.Data) < wordLen {
		return 0, false
	}
	return _busOrder.Uint32(f.Data), true
}

func (f Frame) String() string {
	if f.Instr == InstrReset {
		return "reset"
	}
	s := f.Instr.String() + " " + f.Addr.String()
	if v, ok := f.Word(); ok && len(f.Data) == wordLen {
		return s + "=" + hex32(v)
	}
	if len(f.Data) > 0 {
		s += " data=" + hex.EncodeToString(f.Data)
	}
	return s
}

func hex32(u uint32) string {
	return "0x" + hex.EncodeToString([]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
}
