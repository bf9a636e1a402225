// Package sfr defines the special function registers of the MCP2517FD and
// MCP2518FD CAN FD controllers: their byte offsets and the bit fields within.
//
// Datasheet: MCP2517FD External CAN FD Controller with SPI Interface, DS20005688.
// Reference manual: MCP25XXFD Family Reference Manual, DS20005678.
package sfr

// Address is the 12-bit byte offset of a register in the controller's
// address space. All SFRs are 32 bits wide and 4-byte aligned.
type Address uint16

// CAN FD controller module SFRs.
const (
	C1CON     Address = 0x000 // CAN control register.
	C1NBTCFG  Address = 0x004 // Nominal bit time configuration.
	C1DBTCFG  Address = 0x008 // Data bit time configuration.
	C1TDC     Address = 0x00C // Transmitter delay compensation.
	C1TBC     Address = 0x010 // Time base counter.
	C1TSCON   Address = 0x014 // Time stamp control.
	C1VEC     Address = 0x018 // Interrupt code.
	C1INT     Address = 0x01C // Interrupt flags and enables.
	C1RXIF    Address = 0x020 // Receive interrupt status.
	C1TXIF    Address = 0x024 // Transmit interrupt status.
	C1RXOVIF  Address = 0x028 // Receive overflow interrupt status.
	C1TXATIF  Address = 0x02C // Transmit attempt interrupt status.
	C1TXREQ   Address = 0x030 // Transmit request.
	C1TREC    Address = 0x034 // Transmit/receive error count.
	C1BDIAG0  Address = 0x038 // Bus diagnostic 0: error counters.
	C1BDIAG1  Address = 0x03C // Bus diagnostic 1: error free message counter and error flags.
	C1TEFCON  Address = 0x040 // Transmit event FIFO control.
	C1TEFSTA  Address = 0x044 // Transmit event FIFO status.
	C1TEFUA   Address = 0x048 // Transmit event FIFO user address.
	C1TXQCON  Address = 0x050 // Transmit queue control.
	C1TXQSTA  Address = 0x054 // Transmit queue status.
	C1TXQUA   Address = 0x058 // Transmit queue user address.
	c1FIFOCON Address = 0x05C // C1FIFOCON1. FIFOs are spaced by 12 bytes.
	c1FIFOSTA Address = 0x060
	c1FIFOUA  Address = 0x064
	c1FLTCON  Address = 0x1D0 // C1FLTCON0. Each register holds 4 filter control bytes.
	c1FLTOBJ  Address = 0x1F0 // C1FLTOBJ0. Object/mask pairs spaced by 8 bytes.
	c1MASK    Address = 0x1F4
	c1FLTEnd  Address = 0x2F0 // Past C1MASK31.
)

// MCP2517FD specific SFRs.
const (
	OSC     Address = 0xE00 // Oscillator control.
	IOCON   Address = 0xE04 // Input/output control.
	CRC     Address = 0xE08 // CRC register.
	ECCCON  Address = 0xE0C // ECC control.
	ECCSTAT Address = 0xE10 // ECC status.
	DEVID   Address = 0xE14 // Device ID, MCP2518FD only.
)

// Message RAM.
const (
	RAMStart Address = 0x400
	RAMSize          = 2048
	RAMEnd   Address = RAMStart + RAMSize - 1
)

const (
	// NumFIFO is the number of configurable FIFOs excluding the TXQ.
	NumFIFO = 31
	// NumFilter is the number of acceptance filters.
	NumFilter = 32
)

const fifoStride = 12

// FIFOCON returns the address of the control register of FIFO m.
// FIFO 0 is the transmit queue (C1TXQCON). Panics if m > 31.
func FIFOCON(m uint8) Address {
	addr, ok := FIFOCONChecked(m)
	if !ok {
		panic("sfr: FIFO index out of range")
	}
	return addr
}

// FIFOCONChecked is FIFOCON without the panic.
func FIFOCONChecked(m uint8) (Address, bool) {
	if m == 0 {
		return C1TXQCON, true
	} else if m > NumFIFO {
		return 0, false
	}
	return c1FIFOCON + fifoStride*Address(m-1), true
}

// FIFOSTA returns the address of the status register of FIFO m, 0 being the TXQ.
func FIFOSTA(m uint8) Address {
	if m == 0 {
		return C1TXQSTA
	}
	mustFIFO(m)
	return c1FIFOSTA + fifoStride*Address(m-1)
}

// FIFOUA returns the address of the user address register of FIFO m, 0 being the TXQ.
func FIFOUA(m uint8) Address {
	if m == 0 {
		return C1TXQUA
	}
	mustFIFO(m)
	return c1FIFOUA + fifoStride*Address(m-1)
}

// FLTCON returns the filter control register holding filters 4n..4n+3.
func FLTCON(n uint8) Address {
	if n >= NumFilter/4 {
		panic("sfr: filter control index out of range")
	}
	return c1FLTCON + 4*Address(n)
}

// FLTOBJ returns the address of filter object n.
func FLTOBJ(n uint8) Address {
	mustFilter(n)
	return c1FLTOBJ + 8*Address(n)
}

// MASK returns the address of mask n.
func MASK(n uint8) Address {
	mustFilter(n)
	return c1MASK + 8*Address(n)
}

func mustFIFO(m uint8) {
	if m > NumFIFO {
		panic("sfr: FIFO index out of range")
	}
}

func mustFilter(n uint8) {
	if n >= NumFilter {
		panic("sfr: filter index out of range")
	}
}

// Valid reports whether a is the 4-byte aligned address of an SFR or
// of a word in message RAM.
func (a Address) Valid() bool {
	if a&3 != 0 {
		return false
	}
	switch {
	case a <= C1TXQUA:
		return a != 0x04C // Reserved.
	case a < c1FLTEnd:
		return a >= c1FIFOCON // FIFOs, filters and masks.
	case a <= RAMEnd:
		return a >= RAMStart
	case a >= OSC && a <= DEVID:
		return true
	}
	return false
}

// IsRAM reports whether a lies in message RAM.
func (a Address) IsRAM() bool { return a >= RAMStart && a <= RAMEnd }

// String returns the datasheet name of the register at a.
func (a Address) String() string {
	switch a {
	case C1CON:
		return "C1CON"
	case C1NBTCFG:
		return "C1NBTCFG"
	case C1DBTCFG:
		return "C1DBTCFG"
	case C1TDC:
		return "C1TDC"
	case C1TBC:
		return "C1TBC"
	case C1TSCON:
		return "C1TSCON"
	case C1VEC:
		return "C1VEC"
	case C1INT:
		return "C1INT"
	case C1RXIF:
		return "C1RXIF"
	case C1TXIF:
		return "C1TXIF"
	case C1RXOVIF:
		return "C1RXOVIF"
	case C1TXATIF:
		return "C1TXATIF"
	case C1TXREQ:
		return "C1TXREQ"
	case C1TREC:
		return "C1TREC"
	case C1BDIAG0:
		return "C1BDIAG0"
	case C1BDIAG1:
		return "C1BDIAG1"
	case C1TEFCON:
		return "C1TEFCON"
	case C1TEFSTA:
		return "C1TEFSTA"
	case C1TEFUA:
		return "C1TEFUA"
	case C1TXQCON:
		return "C1TXQCON"
	case C1TXQSTA:
		return "C1TXQSTA"
	case C1TXQUA:
		return "C1TXQUA"
	case OSC:
		return "OSC"
	case IOCON:
		return "IOCON"
	case CRC:
		return "CRC"
	case ECCCON:
		return "ECCCON"
	case ECCSTAT:
		return "ECCSTAT"
	case DEVID:
		return "DEVID"
	}
	switch {
	case a >= c1FIFOCON && a < c1FLTCON:
		off := a - c1FIFOCON
		m := itoa(int(off/fifoStride) + 1)
		switch off % fifoStride {
		case 0:
			return "C1FIFOCON" + m
		case 4:
			return "C1FIFOSTA" + m
		case 8:
			return "C1FIFOUA" + m
		}
	case a >= c1FLTCON && a < c1FLTOBJ:
		if a&3 == 0 {
			return "C1FLTCON" + itoa(int(a-c1FLTCON)/4)
		}
	case a >= c1FLTOBJ && a < c1FLTEnd:
		off := a - c1FLTOBJ
		switch off % 8 {
		case 0:
			return "C1FLTOBJ" + itoa(int(off/8))
		case 4:
			return "C1MASK" + itoa(int(off/8))
		}
	case a.IsRAM():
		return "RAM+" + hex12(uint16(a-RAMStart))
	}
	return "SFR(" + hex12(uint16(a)) + ")"
}

// Lookup returns the address of the register with the datasheet name s,
// i.e: "OSC", "C1FIFOCON3" or "C1MASK7".
func Lookup(s string) (Address, bool) {
	for a := Address(0); a < c1FLTEnd; a += 4 {
		if a.String() == s {
			return a, true
		}
	}
	for a := OSC; a <= DEVID; a += 4 {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

func itoa(v int) string {
	if v < 10 {
		return string(rune('0' + v))
	}
	return itoa(v/10) + string(rune('0'+v%10))
}

func hex12(v uint16) string {
	const hextable = "0123456789abcdef"
	return "0x" + string([]byte{hextable[v>>8&0xf], hextable[v>>4&0xf], hextable[v&0xf]})
}
