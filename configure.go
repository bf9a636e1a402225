package mcp2517fd

import (
	"context"
	"log/slog"
	"time"

	"github.com/soypat/mcp2517fd/sfr"
)

// Configure resets the controller and brings it up as described by s:
//
//  1. Reset, leaving the controller in Configuration mode.
//  2. Select the system clock by writing OSC.
//  3. Poll OSC until the oscillator (and PLL if enabled) is ready.
//  4. Configure GPIO0/GPIO1 as latched outputs and the IOCON pin options.
//     With debug logging enabled IOCON is read back and logged.
//  5. Configure the transmit queue and receive FIFOs. These fields are
//     only writable in Configuration mode.
//  6. Request s.Mode and poll C1CON until it is reported.
//
// Configure returns on the first failure without further bus traffic. The
// error is a *Error for bus failures and exhausted polls, or wraps
// ErrInvalidSettings if s is invalid, in which case the bus is not touched.
// ctx is checked between poll reads. A nil delay means time.Sleep.
func (c *Controller) Configure(ctx context.Context, s Settings, delay DelayFunc) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Logger != nil {
		prev := c.logger
		c.SetLogger(s.Logger)
		defer c.SetLogger(prev)
	}
	if delay == nil {
		delay = time.Sleep
	}
	c.info("configure:start", slog.String("mode", s.Mode.String()), slog.Bool("pll", s.Oscillator.PLL))
	err := c.configure(ctx, &s, delay)
	if err != nil {
		c.logerr("configure:failed", slog.String("err", err.Error()))
		return err
	}
	c.info("configure:done")
	return nil
}

func (c *Controller) configure(ctx context.Context, s *Settings, delay DelayFunc) error {
	err := c.Reset()
	if err != nil {
		return err
	}

	// Clock select is a plain write: OSC holds its reset value after RESET,
	// and the ready wait below must be the only OSC reads.
	osc := sfr.OSCBits(0).
		WithPLL(s.Oscillator.PLL).
		WithSysClkDiv2(s.Oscillator.SysClkDiv2).
		WithClockOutDiv(s.Oscillator.ClockOutDiv)
	err = c.WriteSFR(sfr.OSC, uint32(osc))
	if err != nil {
		return withOp("osc-select", err)
	}
	v, err := c.poll(ctx, "osc-ready", sfr.OSC, s.OscillatorPoll, delay, func(v uint32, attempt int) (bool, error) {
		got := sfr.OSCBits(v)
		return got.OscillatorReady() && (!s.Oscillator.PLL || got.PLLReady()), nil
	})
	if err != nil {
		return err
	}
	c.debug("osc:ready", slog.String("osc", hex32(v)))

	err = c.ModifySFR(sfr.IOCON, func(v uint32) uint32 {
		io := sfr.IOCONBits(v)
		for pin := uint8(0); pin < 2; pin++ {
			io = io.WithInput(pin, false).WithLatch(pin, true).WithGPIO(pin, true)
		}
		io = io.WithStandby(s.IO.StandbyPin).
			WithTXCANOpenDrain(s.IO.TXCANOpenDrain).
			WithSOFOnClockOut(s.IO.SOFOnClockOut).
			WithInterruptOpenDrain(s.IO.InterruptOpenDrain)
		return uint32(io)
	})
	if err != nil {
		return withOp("iocon", err)
	}
	if c.debugEnabled() {
		v, err = c.ReadSFR(sfr.IOCON)
		if err != nil {
			return withOp("iocon-readback", err)
		}
		c.debug("iocon:readback", slog.String("iocon", hex32(v)))
	}

	if q := s.TxQueue; q != nil {
		err = c.ConfigureFIFOControl(0, func(f sfr.FIFOCONBits) sfr.FIFOCONBits {
			return f.WithPriority(q.Priority).
				WithRetransmit(q.Retransmit).
				WithSize(q.Depth).
				WithPayload(q.Payload)
		})
		if err != nil {
			return withOp("txq", err)
		}
		c.debug("txq:configured", slog.Int("objects", int(q.Depth)+1), slog.Int("payload", q.Payload.Bytes()))
	}
	for i := range s.RxFIFOs {
		rx := &s.RxFIFOs[i]
		err = c.ConfigureFIFOControl(uint8(i+1), func(f sfr.FIFOCONBits) sfr.FIFOCONBits {
			return f.WithTransmit(false).
				WithSize(rx.Depth).
				WithPayload(rx.Payload).
				WithTimestamp(rx.Timestamp).
				WithNotEmptyInterrupt(rx.NotEmptyInterrupt).
				WithOverflowInterrupt(rx.OverflowInterrupt)
		})
		if err != nil {
			return withOp("rx-fifo", err)
		}
	}
	if len(s.RxFIFOs) > 0 {
		c.debug("rx:configured", slog.Int("fifos", len(s.RxFIFOs)), slog.Int("ram", s.RAMUsage()))
	}

	// Mode is requested last: FIFO sizing is rejected outside Configuration mode.
	enableTXQ := s.TxQueue != nil
	return c.transition(ctx, s.Mode, func(con sfr.C1CONBits) sfr.C1CONBits {
		return con.WithTXQ(enableTXQ).WithRestrictRetransmit(true)
	}, s.ModePoll, delay, s.OnModePoll)
}
