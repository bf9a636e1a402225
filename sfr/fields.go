package sfr

import "golang.org/x/exp/constraints"

// Field is a contiguous group of bits within a 32-bit register.
type Field struct {
	Pos   uint8
	Width uint8
}

// Mask returns the in-place mask of the field.
func (f Field) Mask() uint32 { return (1<<f.Width - 1) << f.Pos }

func getField[T constraints.Unsigned](v T, f Field) T {
	return (v >> f.Pos) & (1<<f.Width - 1)
}

// setField replaces field f of v with x. Bits of x beyond the field width are discarded.
func setField[T constraints.Unsigned](v T, f Field, x T) T {
	mask := T(1<<f.Width-1) << f.Pos
	return v&^mask | (x<<f.Pos)&mask
}

func setBit[T constraints.Unsigned](v T, bit T, b bool) T {
	if b {
		return v | bit
	}
	return v &^ bit
}

// OSC register bits.
const (
	OSC_PLLEN   = 1 << 0  // System clock from 10x PLL.
	OSC_OSCDIS  = 1 << 2  // Clock (oscillator) disable.
	OSC_LPMEN   = 1 << 3  // Low power mode enable (MCP2518FD).
	OSC_SCLKDIV = 1 << 4  // System clock divided by 2.
	OSC_PLLRDY  = 1 << 8  // PLL locked.
	OSC_OSCRDY  = 1 << 10 // Clock running and stable.
	OSC_SCLKRDY = 1 << 12 // SCLKDIV synchronization complete.
)

var OSC_CLKODIV = Field{Pos: 5, Width: 2} // Clock output divisor.

// IOCON register bits.
const (
	IOCON_TRIS0   = 1 << 0  // GPIO0 data direction, 1=input.
	IOCON_TRIS1   = 1 << 1  // GPIO1 data direction, 1=input.
	IOCON_XSTBYEN = 1 << 6  // Transceiver standby pin control enable.
	IOCON_LAT0    = 1 << 8  // GPIO0 latch.
	IOCON_LAT1    = 1 << 9  // GPIO1 latch.
	IOCON_GPIO0   = 1 << 16 // GPIO0 status.
	IOCON_GPIO1   = 1 << 17 // GPIO1 status.
	IOCON_PM0     = 1 << 24 // GPIO0 pin mode, 1=GPIO, 0=INT0.
	IOCON_PM1     = 1 << 25 // GPIO1 pin mode, 1=GPIO, 0=INT1.
	IOCON_TXCANOD = 1 << 28 // TXCAN open drain.
	IOCON_SOF     = 1 << 29 // Start of frame signal on CLKO pin.
	IOCON_INTOD   = 1 << 30 // Interrupt pins open drain.
)

// C1CON register bits.
const (
	C1CON_ISOCRCEN = 1 << 5  // ISO CRC enable.
	C1CON_PXEDIS   = 1 << 6  // Protocol exception event detection disabled.
	C1CON_WAKFIL   = 1 << 8  // Wake-up filter enable.
	C1CON_BUSY     = 1 << 11 // CAN module is busy.
	C1CON_BRSDIS   = 1 << 12 // Bit rate switching disable.
	C1CON_RTXAT    = 1 << 16 // Restrict retransmission attempts to TXAT.
	C1CON_ESIGM    = 1 << 17 // Transmit ESI in gateway mode.
	C1CON_SERR2LOM = 1 << 18 // System error to listen only mode.
	C1CON_STEF     = 1 << 19 // Store in transmit event FIFO.
	C1CON_TXQEN    = 1 << 20 // Enable transmit queue.
	C1CON_ABAT     = 1 << 27 // Abort all pending transmissions.
)

var (
	C1CON_DNCNT = Field{Pos: 0, Width: 5}  // Device net filter bit number.
	C1CON_WFT   = Field{Pos: 9, Width: 2}  // Wake-up filter time.
	C1CON_OPMOD = Field{Pos: 21, Width: 3} // Operation mode status.
	C1CON_REQOP = Field{Pos: 24, Width: 3} // Request operation mode.
	C1CON_TXBWS = Field{Pos: 28, Width: 4} // Transmit bandwidth sharing.
)

// C1FIFOCONm and C1TXQCON register bits. Not every bit is
// implemented in the TXQ.
const (
	FIFOCON_TFNRFNIE = 1 << 0  // Transmit FIFO not full / receive FIFO not empty interrupt enable.
	FIFOCON_TFHRFHIE = 1 << 1  // Half empty / half full interrupt enable.
	FIFOCON_TFERFFIE = 1 << 2  // Empty / full interrupt enable.
	FIFOCON_RXOVIE   = 1 << 3  // Overflow interrupt enable.
	FIFOCON_TXATIE   = 1 << 4  // Transmit attempts exhausted interrupt enable.
	FIFOCON_RXTSEN   = 1 << 5  // Received message timestamp enable.
	FIFOCON_RTREN    = 1 << 6  // Auto RTR enable.
	FIFOCON_TXEN     = 1 << 7  // FIFO is a transmit FIFO.
	FIFOCON_UINC     = 1 << 8  // Increment head/tail.
	FIFOCON_TXREQ    = 1 << 9  // Message send request.
	FIFOCON_FRESET   = 1 << 10 // FIFO reset.
)

var (
	FIFOCON_TXPRI  = Field{Pos: 16, Width: 5} // Message transmit priority.
	FIFOCON_TXAT   = Field{Pos: 21, Width: 2} // Retransmission attempts.
	FIFOCON_FSIZE  = Field{Pos: 24, Width: 5} // FIFO size, messages minus one.
	FIFOCON_PLSIZE = Field{Pos: 29, Width: 3} // Payload size.
)

// C1TREC register bits.
const (
	TREC_EWARN  = 1 << 16 // Error warning, TEC or REC >= 96.
	TREC_RXWARN = 1 << 17 // REC >= 96.
	TREC_TXWARN = 1 << 18 // TEC >= 96.
	TREC_RXBP   = 1 << 19 // Receiver error passive.
	TREC_TXBP   = 1 << 20 // Transmitter error passive.
	TREC_TXBO   = 1 << 21 // Transmitter bus off.
)

var (
	TREC_REC = Field{Pos: 0, Width: 8}
	TREC_TEC = Field{Pos: 8, Width: 8}
)

var (
	BDIAG0_NRERRCNT = Field{Pos: 0, Width: 8}  // Nominal bit rate receive error counter.
	BDIAG0_NTERRCNT = Field{Pos: 8, Width: 8}  // Nominal bit rate transmit error counter.
	BDIAG0_DRERRCNT = Field{Pos: 16, Width: 8} // Data bit rate receive error counter.
	BDIAG0_DTERRCNT = Field{Pos: 24, Width: 8} // Data bit rate transmit error counter.
	BDIAG1_EFMSGCNT = Field{Pos: 0, Width: 16} // Error free message counter.
)

// C1BDIAG1 error flags.
const (
	BDIAG1_NBIT0ERR = 1 << 16
	BDIAG1_NBIT1ERR = 1 << 17
	BDIAG1_NACKERR  = 1 << 18
	BDIAG1_NFORMERR = 1 << 19
	BDIAG1_NSTUFERR = 1 << 20
	BDIAG1_NCRCERR  = 1 << 21
	BDIAG1_TXBOERR  = 1 << 23
	BDIAG1_DBIT0ERR = 1 << 24
	BDIAG1_DBIT1ERR = 1 << 25
	BDIAG1_DFORMERR = 1 << 27
	BDIAG1_DSTUFERR = 1 << 28
	BDIAG1_DCRCERR  = 1 << 29
	BDIAG1_ESI      = 1 << 30
	BDIAG1_DLCMM    = 1 << 31
)
