package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soypat/mcp2517fd/sfr"
)

// parseRegister accepts a datasheet register name (case insensitive) or a
// numeric address such as 0xE00.
func parseRegister(s string) (sfr.Address, error) {
	if addr, ok := sfr.Lookup(strings.ToUpper(s)); ok {
		return addr, nil
	}
	u, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, errors.New("unknown register " + strconv.Quote(s))
	}
	addr := sfr.Address(u)
	if !addr.Valid() {
		return 0, fmt.Errorf("address %#x is not a register", u)
	}
	return addr, nil
}

func parseUint32(s string) (uint32, error) {
	u, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	return uint32(u), err
}

// describe returns the decoded fields of well known registers.
func describe(addr sfr.Address, v uint32) string {
	switch addr {
	case sfr.OSC:
		o := sfr.OSCBits(v)
		return fmt.Sprintf("pll=%v oscrdy=%v pllrdy=%v sclkdiv2=%v clkodiv=%d",
			o.PLLEnabled(), o.OscillatorReady(), o.PLLReady(), o.SysClkDiv2(), o.ClockOutDiv())
	case sfr.IOCON:
		io := sfr.IOCONBits(v)
		return fmt.Sprintf("gpio0(out=%v lat=%v) gpio1(out=%v lat=%v) xstby=%v intod=%v",
			!io.IsInput(0), io.Latch(0), !io.IsInput(1), io.Latch(1), io.StandbyEnabled(), io.InterruptOpenDrain())
	case sfr.C1CON:
		c := sfr.C1CONBits(v)
		return fmt.Sprintf("opmod=%s reqop=%s txqen=%v rtxat=%v busy=%v",
			c.OpMode(), c.RequestedMode(), c.TXQEnabled(), c.RetransmitRestricted(), c.Busy())
	case sfr.C1TREC:
		t := sfr.TRECBits(v)
		return fmt.Sprintf("tec=%d rec=%d warn=%v txbo=%v", t.TEC(), t.REC(), t.Warning(), t.BusOff())
	case sfr.C1BDIAG1:
		b := sfr.BDIAG1Bits(v)
		return fmt.Sprintf("efmsgcnt=%d flags=%#x", b.ErrorFreeMessages(), b.Errors())
	}
	if _, ok := fifoIndex(addr); ok {
		f := sfr.FIFOCONBits(v)
		return fmt.Sprintf("tx=%v objects=%d payload=%d prio=%d txat=%s",
			f.IsTransmit(), int(f.Size())+1, f.Payload().Bytes(), f.Priority(), f.Retransmit())
	}
	return ""
}

func fifoIndex(addr sfr.Address) (uint8, bool) {
	for m := uint8(0); m <= sfr.NumFIFO; m++ {
		if sfr.FIFOCON(m) == addr {
			return m, true
		}
	}
	return 0, false
}
