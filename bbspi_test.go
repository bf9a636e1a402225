package mcp2517fd_test

import (
	"context"
	"testing"
	"time"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/internal/simchip"
	"github.com/soypat/mcp2517fd/sfr"
)

func TestSPIbbLoopback(t *testing.T) {
	var sdo, sck bool
	var rising, falling int
	bus := &mcp2517fd.SPIbb{
		SCK: func(level bool) {
			if level && !sck {
				rising++
			} else if !level && sck {
				falling++
			}
			sck = level
		},
		SDO: func(level bool) { sdo = level },
		SDI: func() bool { return sdo },
	}
	w := []byte{0xa5, 0x3c, 0x00, 0xff}
	r := make([]byte, len(w))
	if err := bus.Tx(w, r); err != nil {
		t.Fatal(err)
	}
	for i := range w {
		if r[i] != w[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, r[i], w[i])
		}
	}
	if rising != 8*len(w) || falling != rising || sck {
		t.Errorf("want %d clock pulses ending low, got %d rising %d falling", 8*len(w), rising, falling)
	}
	got, _ := bus.Transfer(0x81)
	if got != 0x81 {
		t.Errorf("transfer got %#x", got)
	}
	// A nil r discards input; a short w is padded with zeros.
	if err := bus.Tx(w, nil); err != nil {
		t.Fatal(err)
	}
	r = []byte{0xff, 0xff}
	if err := bus.Tx(nil, r); err != nil || r[0] != 0 || r[1] != 0 {
		t.Errorf("read-only transfer got %v %v", r, err)
	}
}

// bitSlave presents a simulated chip at the pin level. MOSI is sampled on
// the rising edge of SCK, MISO shifts out on the falling edge.
type bitSlave struct {
	t        *testing.T
	chip     *simchip.Chip
	mosi     bool
	sck      bool
	nbits    int
	frame    []byte
	miso     []byte
	executed bool
}

func (s *bitSlave) cs(level bool) {
	if !level {
		s.chip.CS(false)
		s.nbits = 0
		s.frame = s.frame[:0]
		s.miso = nil
		s.executed = false
		return
	}
	if !s.executed && len(s.frame) >= 2 {
		if err := s.chip.Tx(s.frame, nil); err != nil {
			s.t.Error("chip:", err)
		}
	}
	s.chip.CS(true)
}

func (s *bitSlave) clock(level bool) {
	rising := level && !s.sck
	s.sck = level
	if !rising {
		return
	}
	if s.nbits%8 == 0 {
		s.frame = append(s.frame, 0)
	}
	if s.mosi {
		s.frame[len(s.frame)-1] |= 1 << (7 - s.nbits%8)
	}
	s.nbits++
	if s.nbits == 16 && mcp2517fd.Instruction(s.frame[0]>>4) == mcp2517fd.InstrRead {
		// Execute on the header so data is ready for the next byte.
		w := append(append([]byte{}, s.frame...), 0, 0, 0, 0)
		s.miso = make([]byte, len(w))
		if err := s.chip.Tx(w, s.miso); err != nil {
			s.t.Error("chip:", err)
		}
		s.executed = true
	}
}

func (s *bitSlave) sdi() bool {
	// Sampled after the rising edge that completed bit nbits-1.
	i := s.nbits - 1
	if i < 0 || i/8 >= len(s.miso) {
		return false
	}
	return s.miso[i/8]&(1<<(7-i%8)) != 0
}

func TestControllerOverBitBang(t *testing.T) {
	chip := simchip.New()
	chip.OSCReadyAfter = 1
	slave := &bitSlave{t: t, chip: chip}
	bus := &mcp2517fd.SPIbb{
		SCK: slave.clock,
		SDO: func(level bool) { slave.mosi = level },
		SDI: slave.sdi,
	}
	c := mcp2517fd.New(bus, slave.cs)

	const v = 0x0a0b_0c0d
	if err := c.WriteSFR(sfr.C1NBTCFG, v); err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadSFR(sfr.C1NBTCFG)
	if err != nil || got != v {
		t.Fatalf("read back %#x %v, want %#x", got, err, v)
	}
	if err := c.VerifySPICommunications(); err != nil {
		t.Fatal(err)
	}

	s := testSettings()
	s.Mode = sfr.ModeInternalLoopback
	err = c.Configure(context.Background(), s, func(time.Duration) {})
	if err != nil {
		t.Fatal(err)
	}
	if mode, err := c.Mode(); err != nil || mode != sfr.ModeInternalLoopback {
		t.Errorf("mode %s %v", mode, err)
	}
	checkCS(t, chip)
}
