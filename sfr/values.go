package sfr

// OperationMode is the value of the C1CON REQOP and OPMOD fields.
type OperationMode uint8

const (
	ModeNormalFD         OperationMode = 0 // Mixed CAN FD/CAN 2.0 operation.
	ModeSleep            OperationMode = 1
	ModeInternalLoopback OperationMode = 2
	ModeListenOnly       OperationMode = 3
	ModeConfiguration    OperationMode = 4 // Mode after reset.
	ModeExternalLoopback OperationMode = 5
	ModeNormalCAN20      OperationMode = 6 // CAN FD frames are error frames.
	ModeRestricted       OperationMode = 7
)

func (m OperationMode) String() (s string) {
	switch m {
	case ModeNormalFD:
		s = "normal-fd"
	case ModeSleep:
		s = "sleep"
	case ModeInternalLoopback:
		s = "internal-loopback"
	case ModeListenOnly:
		s = "listen-only"
	case ModeConfiguration:
		s = "configuration"
	case ModeExternalLoopback:
		s = "external-loopback"
	case ModeNormalCAN20:
		s = "normal-can2.0"
	case ModeRestricted:
		s = "restricted"
	default:
		s = "invalid"
	}
	return s
}

// ParseOperationMode returns the mode whose String representation is s.
func ParseOperationMode(s string) (OperationMode, bool) {
	for m := ModeNormalFD; m <= ModeRestricted; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// PayloadSize is the PLSIZE encoding of the data bytes per message object.
type PayloadSize uint8

const (
	Payload8 PayloadSize = iota
	Payload12
	Payload16
	Payload20
	Payload24
	Payload32
	Payload48
	Payload64
)

var payloadBytes = [8]uint8{8, 12, 16, 20, 24, 32, 48, 64}

// Bytes returns the number of data bytes of p or 0 if p is invalid.
func (p PayloadSize) Bytes() int {
	if p > Payload64 {
		return 0
	}
	return int(payloadBytes[p])
}

// PayloadSizeFromBytes returns the PayloadSize holding exactly n data bytes.
func PayloadSizeFromBytes(n int) (PayloadSize, bool) {
	for i, b := range payloadBytes {
		if int(b) == n {
			return PayloadSize(i), true
		}
	}
	return 0, false
}

// Retransmit is the TXAT retransmission attempt policy of a transmit FIFO.
// It is only honoured when C1CON.RTXAT is set.
type Retransmit uint8

const (
	RetransmitDisabled  Retransmit = 0b00
	RetransmitThree     Retransmit = 0b01
	RetransmitUnlimited Retransmit = 0b11
)

func (r Retransmit) String() string {
	switch r {
	case RetransmitDisabled:
		return "disabled"
	case RetransmitThree:
		return "three"
	case RetransmitUnlimited, 0b10:
		return "unlimited"
	}
	return "invalid"
}

// ClockOutDivider is the OSC.CLKODIV divisor of the CLKO pin.
type ClockOutDivider uint8

const (
	ClockOutDiv1  ClockOutDivider = 0b00
	ClockOutDiv2  ClockOutDivider = 0b01
	ClockOutDiv4  ClockOutDivider = 0b10
	ClockOutDiv10 ClockOutDivider = 0b11
)

// OSCBits is a value of the OSC register.
type OSCBits uint32

func (o OSCBits) PLLEnabled() bool      { return o&OSC_PLLEN != 0 }
func (o OSCBits) ClockDisabled() bool   { return o&OSC_OSCDIS != 0 }
func (o OSCBits) SysClkDiv2() bool      { return o&OSC_SCLKDIV != 0 }
func (o OSCBits) OscillatorReady() bool { return o&OSC_OSCRDY != 0 }
func (o OSCBits) PLLReady() bool        { return o&OSC_PLLRDY != 0 }
func (o OSCBits) SysClkReady() bool     { return o&OSC_SCLKRDY != 0 }
func (o OSCBits) ClockOutDiv() ClockOutDivider {
	return ClockOutDivider(getField(o, OSC_CLKODIV))
}

func (o OSCBits) WithPLL(b bool) OSCBits           { return setBit(o, OSC_PLLEN, b) }
func (o OSCBits) WithClockDisabled(b bool) OSCBits { return setBit(o, OSC_OSCDIS, b) }
func (o OSCBits) WithLowPower(b bool) OSCBits      { return setBit(o, OSC_LPMEN, b) }
func (o OSCBits) WithSysClkDiv2(b bool) OSCBits    { return setBit(o, OSC_SCLKDIV, b) }
func (o OSCBits) WithClockOutDiv(d ClockOutDivider) OSCBits {
	return setField(o, OSC_CLKODIV, OSCBits(d))
}

// IOCONBits is a value of the IOCON register.
type IOCONBits uint32

// GPIO pin masks indexed by pin number.
var (
	iconTRIS = [2]IOCONBits{IOCON_TRIS0, IOCON_TRIS1}
	iconLAT  = [2]IOCONBits{IOCON_LAT0, IOCON_LAT1}
	iconPM   = [2]IOCONBits{IOCON_PM0, IOCON_PM1}
	iconGPIO = [2]IOCONBits{IOCON_GPIO0, IOCON_GPIO1}
)

func (i IOCONBits) IsInput(pin uint8) bool   { return i&iconTRIS[pin&1] != 0 }
func (i IOCONBits) Latch(pin uint8) bool     { return i&iconLAT[pin&1] != 0 }
func (i IOCONBits) IsGPIO(pin uint8) bool    { return i&iconPM[pin&1] != 0 }
func (i IOCONBits) Level(pin uint8) bool     { return i&iconGPIO[pin&1] != 0 }
func (i IOCONBits) StandbyEnabled() bool     { return i&IOCON_XSTBYEN != 0 }
func (i IOCONBits) TXCANOpenDrain() bool     { return i&IOCON_TXCANOD != 0 }
func (i IOCONBits) SOFOnClockOut() bool      { return i&IOCON_SOF != 0 }
func (i IOCONBits) InterruptOpenDrain() bool { return i&IOCON_INTOD != 0 }

func (i IOCONBits) WithInput(pin uint8, b bool) IOCONBits { return setBit(i, iconTRIS[pin&1], b) }
func (i IOCONBits) WithLatch(pin uint8, b bool) IOCONBits { return setBit(i, iconLAT[pin&1], b) }
func (i IOCONBits) WithGPIO(pin uint8, b bool) IOCONBits  { return setBit(i, iconPM[pin&1], b) }
func (i IOCONBits) WithStandby(b bool) IOCONBits          { return setBit(i, IOCON_XSTBYEN, b) }
func (i IOCONBits) WithTXCANOpenDrain(b bool) IOCONBits   { return setBit(i, IOCON_TXCANOD, b) }
func (i IOCONBits) WithSOFOnClockOut(b bool) IOCONBits    { return setBit(i, IOCON_SOF, b) }
func (i IOCONBits) WithInterruptOpenDrain(b bool) IOCONBits {
	return setBit(i, IOCON_INTOD, b)
}

// C1CONBits is a value of the C1CON register.
type C1CONBits uint32

func (c C1CONBits) OpMode() OperationMode { return OperationMode(getField(c, C1CON_OPMOD)) }
func (c C1CONBits) RequestedMode() OperationMode {
	return OperationMode(getField(c, C1CON_REQOP))
}
func (c C1CONBits) TXQEnabled() bool           { return c&C1CON_TXQEN != 0 }
func (c C1CONBits) RetransmitRestricted() bool { return c&C1CON_RTXAT != 0 }
func (c C1CONBits) Busy() bool                 { return c&C1CON_BUSY != 0 }

func (c C1CONBits) WithRequestMode(m OperationMode) C1CONBits {
	return setField(c, C1CON_REQOP, C1CONBits(m))
}
func (c C1CONBits) WithTXQ(b bool) C1CONBits { return setBit(c, C1CON_TXQEN, b) }
func (c C1CONBits) WithRestrictRetransmit(b bool) C1CONBits {
	return setBit(c, C1CON_RTXAT, b)
}
func (c C1CONBits) WithStoreTEF(b bool) C1CONBits { return setBit(c, C1CON_STEF, b) }

// FIFOCONBits is a value of a C1FIFOCONm or C1TXQCON register.
type FIFOCONBits uint32

func (f FIFOCONBits) Priority() uint8         { return uint8(getField(f, FIFOCON_TXPRI)) }
func (f FIFOCONBits) Retransmit() Retransmit  { return Retransmit(getField(f, FIFOCON_TXAT)) }
func (f FIFOCONBits) Size() uint8             { return uint8(getField(f, FIFOCON_FSIZE)) }
func (f FIFOCONBits) Payload() PayloadSize    { return PayloadSize(getField(f, FIFOCON_PLSIZE)) }
func (f FIFOCONBits) IsTransmit() bool        { return f&FIFOCON_TXEN != 0 }
func (f FIFOCONBits) IsReset() bool           { return f&FIFOCON_FRESET != 0 }
func (f FIFOCONBits) Timestamped() bool       { return f&FIFOCON_RXTSEN != 0 }
func (f FIFOCONBits) TransmitRequested() bool { return f&FIFOCON_TXREQ != 0 }

func (f FIFOCONBits) WithPriority(p uint8) FIFOCONBits {
	return setField(f, FIFOCON_TXPRI, FIFOCONBits(p))
}
func (f FIFOCONBits) WithRetransmit(r Retransmit) FIFOCONBits {
	return setField(f, FIFOCON_TXAT, FIFOCONBits(r))
}

// WithSize sets FSIZE. The FIFO holds size+1 message objects.
func (f FIFOCONBits) WithSize(size uint8) FIFOCONBits {
	return setField(f, FIFOCON_FSIZE, FIFOCONBits(size))
}
func (f FIFOCONBits) WithPayload(p PayloadSize) FIFOCONBits {
	return setField(f, FIFOCON_PLSIZE, FIFOCONBits(p))
}
func (f FIFOCONBits) WithTransmit(b bool) FIFOCONBits  { return setBit(f, FIFOCON_TXEN, b) }
func (f FIFOCONBits) WithReset(b bool) FIFOCONBits     { return setBit(f, FIFOCON_FRESET, b) }
func (f FIFOCONBits) WithTimestamp(b bool) FIFOCONBits { return setBit(f, FIFOCON_RXTSEN, b) }
func (f FIFOCONBits) WithNotEmptyInterrupt(b bool) FIFOCONBits {
	return setBit(f, FIFOCON_TFNRFNIE, b)
}
func (f FIFOCONBits) WithOverflowInterrupt(b bool) FIFOCONBits {
	return setBit(f, FIFOCON_RXOVIE, b)
}

// TRECBits is a value of the C1TREC register.
type TRECBits uint32

func (t TRECBits) REC() uint8      { return uint8(getField(t, TREC_REC)) }
func (t TRECBits) TEC() uint8      { return uint8(getField(t, TREC_TEC)) }
func (t TRECBits) Warning() bool   { return t&TREC_EWARN != 0 }
func (t TRECBits) RxPassive() bool { return t&TREC_RXBP != 0 }
func (t TRECBits) TxPassive() bool { return t&TREC_TXBP != 0 }
func (t TRECBits) BusOff() bool    { return t&TREC_TXBO != 0 }

// BDIAG0Bits is a value of the C1BDIAG0 register.
type BDIAG0Bits uint32

func (b BDIAG0Bits) NominalRxErrors() uint8 { return uint8(getField(b, BDIAG0_NRERRCNT)) }
func (b BDIAG0Bits) NominalTxErrors() uint8 { return uint8(getField(b, BDIAG0_NTERRCNT)) }
func (b BDIAG0Bits) DataRxErrors() uint8    { return uint8(getField(b, BDIAG0_DRERRCNT)) }
func (b BDIAG0Bits) DataTxErrors() uint8    { return uint8(getField(b, BDIAG0_DTERRCNT)) }

// BDIAG1Bits is a value of the C1BDIAG1 register.
type BDIAG1Bits uint32

func (b BDIAG1Bits) ErrorFreeMessages() uint16 { return uint16(getField(b, BDIAG1_EFMSGCNT)) }

// Errors returns the error flag bits 16..31.
func (b BDIAG1Bits) Errors() uint32 { return uint32(b) &^ BDIAG1_EFMSGCNT.Mask() }
