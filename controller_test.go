package mcp2517fd_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/internal/simchip"
	"github.com/soypat/mcp2517fd/sfr"
)

var errBus = errors.New("bus fault")

func newSim(t *testing.T) (*mcp2517fd.Controller, *simchip.Chip) {
	t.Helper()
	chip := simchip.New()
	return mcp2517fd.New(chip, chip.CS), chip
}

func checkCS(t *testing.T, chip *simchip.Chip) {
	t.Helper()
	asserts, deasserts := chip.Selections()
	if asserts != deasserts || chip.Selected() {
		t.Errorf("chip select unbalanced: %d asserts, %d deasserts, selected=%v", asserts, deasserts, chip.Selected())
	}
}

func TestReadWriteSFR(t *testing.T) {
	c, chip := newSim(t)
	const v = 0x0102_0304
	err := c.WriteSFR(sfr.C1NBTCFG, v)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadSFR(sfr.C1NBTCFG)
	if err != nil {
		t.Fatal(err)
	}
	if got != v {
		t.Errorf("got %#x, want %#x", got, v)
	}
	asserts, _ := chip.Selections()
	if asserts != 2 {
		t.Errorf("want one chip select per frame, got %d", asserts)
	}
	checkCS(t, chip)
}

func TestChipSelectReleasedOnError(t *testing.T) {
	c, chip := newSim(t)
	chip.Inject = func(mcp2517fd.Instruction, sfr.Address) error { return errBus }

	_, err := c.ReadSFR(sfr.OSC)
	if !mcp2517fd.IsReadError(err) || !errors.Is(err, errBus) {
		t.Errorf("want read error wrapping bus error, got %v", err)
	}
	checkCS(t, chip)

	err = c.WriteSFR(sfr.IOCON, 0)
	if !mcp2517fd.IsWriteError(err) || !errors.Is(err, errBus) {
		t.Errorf("want write error, got %v", err)
	}
	checkCS(t, chip)

	err = c.Reset()
	if !mcp2517fd.IsWriteError(err) {
		t.Errorf("want write error on reset, got %v", err)
	}
	checkCS(t, chip)
	if len(chip.Log()) != 0 {
		t.Error("failed frames must not execute", chip.Log())
	}
}

type panicBus struct{ *simchip.Chip }

func (p panicBus) Tx(w, r []byte) error { panic("bus") }

func TestChipSelectReleasedOnPanic(t *testing.T) {
	chip := simchip.New()
	c := mcp2517fd.New(panicBus{chip}, chip.CS)
	func() {
		defer func() { recover() }()
		c.ReadSFR(sfr.OSC)
	}()
	checkCS(t, chip)
}

func TestVerifySPICommunicationsFailing(t *testing.T) {
	c, chip := newSim(t)
	chip.Inject = func(mcp2517fd.Instruction, sfr.Address) error { return errBus }
	for i := 0; i < 5; i++ {
		err := c.VerifySPICommunications()
		var e *mcp2517fd.Error
		if !errors.As(err, &e) {
			t.Fatalf("attempt %d: want *Error, got %v", i, err)
		}
		if e.Phase != mcp2517fd.PhaseRead || e.Addr != sfr.OSC {
			t.Errorf("attempt %d: got %s on %s", i, e.Phase, e.Addr)
		}
	}
	checkCS(t, chip)
}

func TestVerifySPICommunications(t *testing.T) {
	c, chip := newSim(t)
	if err := c.VerifySPICommunications(); err != nil {
		t.Fatal(err)
	}
	log := chip.Log()
	if len(log) != 1 || log[0].Instr != mcp2517fd.InstrRead || log[0].Addr != sfr.OSC {
		t.Errorf("want single OSC read, got %v", log)
	}
}

func TestConfigureFIFOControlReset(t *testing.T) {
	c, chip := newSim(t)
	const before = 0x1f60_0081 // Arbitrary transmit FIFO configuration.
	chip.SetReg(sfr.FIFOCON(1), before)
	err := c.ConfigureFIFOControl(1, func(f sfr.FIFOCONBits) sfr.FIFOCONBits {
		return f.WithReset(true)
	})
	if err != nil {
		t.Fatal(err)
	}
	log := chip.Log()
	if len(log) != 2 {
		t.Fatalf("want read-modify-write, got %v", log)
	}
	if log[0].Instr != mcp2517fd.InstrRead || log[0].Addr != sfr.FIFOCON(1) {
		t.Errorf("first access %v", log[0])
	}
	if log[1].Instr != mcp2517fd.InstrWrite || log[1].Addr != sfr.FIFOCON(1) {
		t.Errorf("second access %v", log[1])
	}
	if diff := log[1].Value ^ before; diff != sfr.FIFOCON_FRESET {
		t.Errorf("only FRESET should change, diff=%#x", diff)
	}
}

func TestConfigureFIFOControlRange(t *testing.T) {
	c, chip := newSim(t)
	called := false
	err := c.ConfigureFIFOControl(32, func(f sfr.FIFOCONBits) sfr.FIFOCONBits {
		called = true
		return f
	})
	if !errors.Is(err, mcp2517fd.ErrFIFOIndex) {
		t.Errorf("want ErrFIFOIndex, got %v", err)
	}
	asserts, _ := chip.Selections()
	if called || asserts != 0 {
		t.Error("out of range FIFO must not touch the bus")
	}
	// FIFO 0 is the transmit queue.
	err = c.ConfigureFIFOControl(0, func(f sfr.FIFOCONBits) sfr.FIFOCONBits { return f.WithPriority(3) })
	if err != nil {
		t.Fatal(err)
	}
	if got := sfr.FIFOCONBits(chip.Reg(sfr.C1TXQCON)).Priority(); got != 3 {
		t.Errorf("TXQ priority %d", got)
	}
}

func TestModifySFRReadFailure(t *testing.T) {
	c, chip := newSim(t)
	chip.Inject = func(in mcp2517fd.Instruction, _ sfr.Address) error {
		if in == mcp2517fd.InstrRead {
			return errBus
		}
		return nil
	}
	err := c.ModifySFR(sfr.IOCON, func(v uint32) uint32 {
		t.Error("fn called after failed read")
		return v
	})
	if !mcp2517fd.IsReadError(err) {
		t.Errorf("want read error, got %v", err)
	}
	if chip.Count(mcp2517fd.InstrWrite, sfr.IOCON) != 0 {
		t.Error("write after failed read")
	}
}

func TestModeAndDeviceID(t *testing.T) {
	c, chip := newSim(t)
	mode, err := c.Mode()
	if err != nil || mode != sfr.ModeConfiguration {
		t.Fatalf("want configuration mode after power on, got %s %v", mode, err)
	}
	chip.SetReg(sfr.DEVID, 0x14)
	id, rev, err := c.DeviceID()
	if err != nil || id != 1 || rev != 4 {
		t.Errorf("got id=%d rev=%d err=%v", id, rev, err)
	}
}

func TestTraceLogging(t *testing.T) {
	c, _ := newSim(t)
	var buf bytes.Buffer
	c.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug - 1})))
	c.ReadSFR(sfr.IOCON)
	if !strings.Contains(buf.String(), "sfr=IOCON") {
		t.Errorf("expected trace of register read, got %q", buf.String())
	}
	buf.Reset()
	c.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	c.ReadSFR(sfr.IOCON)
	if buf.Len() != 0 {
		t.Errorf("trace logged at info level: %q", buf.String())
	}
}

func TestAwaitSPICommunications(t *testing.T) {
	c, chip := newSim(t)
	const down = 3
	reads := 0
	chip.Inject = func(in mcp2517fd.Instruction, addr sfr.Address) error {
		reads++
		if reads <= down {
			return errBus
		}
		return nil
	}
	var delays []time.Duration
	failed, err := c.AwaitSPICommunications(context.Background(), time.Second, func(d time.Duration) {
		delays = append(delays, d)
	})
	if err != nil {
		t.Fatal(err)
	}
	if failed != down || reads != down+1 {
		t.Errorf("want %d failures in %d reads, got %d in %d", down, down+1, failed, reads)
	}
	if len(delays) != down || delays[0] != time.Second {
		t.Errorf("want %d delays of 1s, got %v", down, delays)
	}
	if n := chip.Count(mcp2517fd.InstrRead, sfr.OSC); n != 1 {
		t.Errorf("want a single executed OSC read, got %d", n)
	}
	checkCS(t, chip)
}

func TestAwaitSPICommunicationsCanceled(t *testing.T) {
	c, chip := newSim(t)
	chip.Inject = func(mcp2517fd.Instruction, sfr.Address) error { return errBus }
	ctx, cancel := context.WithCancel(context.Background())
	checks := 0
	failed, err := c.AwaitSPICommunications(ctx, time.Millisecond, func(time.Duration) {
		checks++
		if checks == 2 {
			cancel()
		}
	})
	if failed != 2 {
		t.Errorf("want 2 failed checks, got %d", failed)
	}
	if !mcp2517fd.IsTimeout(err) || !errors.Is(err, context.Canceled) || !errors.Is(err, errBus) {
		t.Errorf("want canceled timeout wrapping the bus error, got %v", err)
	}
}
