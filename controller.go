package mcp2517fd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soypat/mcp2517fd/sfr"
	"tinygo.org/x/drivers"
)

// OutputPin sets the level of a digital output, i.e: machine.Pin.Set.
type OutputPin func(level bool)

// DelayFunc blocks for the given duration. A nil DelayFunc means time.Sleep.
type DelayFunc func(time.Duration)

// Controller is a MCP2517FD or MCP2518FD attached to an SPI bus.
// It owns the bus and chip select pin exclusively.
// A Controller is not safe for concurrent use.
type Controller struct {
	spi drivers.SPI
	// cs is active low.
	cs OutputPin
	// wbuf and rbuf hold a single frame. Kept in the struct to
	// avoid heap allocations on every register access.
	wbuf          [frameLen]byte
	rbuf          [frameLen]byte
	logger        *slog.Logger
	_traceenabled bool
}

// New returns a Controller using spi with chip select cs. spi should be
// configured in SPI mode 0 (or 3) at no more than 0.85 of SYSCLK/2.
// cs is driven high (deasserted) before returning.
func New(spi drivers.SPI, cs OutputPin) *Controller {
	c := &Controller{spi: spi, cs: cs}
	c.csEnable(false)
	return c
}

// SetLogger sets the logger used by the Controller. A nil logger disables logging.
func (c *Controller) SetLogger(l *slog.Logger) {
	c.logger = l
	c._traceenabled = l != nil && l.Handler().Enabled(context.Background(), levelTrace)
}

func (c *Controller) csEnable(b bool) {
	c.cs(!b)
}

// tx clocks w out and r in within a single chip select assertion.
// Chip select is released on every exit path.
func (c *Controller) tx(w, r []byte) error {
	c.csEnable(true)
	defer c.csEnable(false)
	return c.spi.Tx(w, r)
}

// Reset issues the RESET instruction. The controller enters Configuration
// mode with all SFRs at their reset value. Reset does not wait for the
// oscillator to start.
func (c *Controller) Reset() error {
	w := EncodeReset(c.wbuf[:0])
	err := c.tx(w, c.rbuf[:len(w)])
	if err != nil {
		return &Error{Phase: PhaseWrite, Op: "reset", Err: err}
	}
	c.trace("reset")
	return nil
}

// ReadSFR reads the 32-bit register at addr.
func (c *Controller) ReadSFR(addr sfr.Address) (uint32, error) {
	w := EncodeRead(c.wbuf[:0], addr)
	r := c.rbuf[:len(w)]
	err := c.tx(w, r)
	if err != nil {
		return 0, readErr(addr, err)
	}
	v := _busOrder.Uint32(r[headerLen:])
	if c._traceenabled {
		c.trace("read", slog.String("sfr", addr.String()), slog.String("v", hex32(v)))
	}
	return v, nil
}

// WriteSFR writes v to the 32-bit register at addr.
func (c *Controller) WriteSFR(addr sfr.Address, v uint32) error {
	w := EncodeWrite(c.wbuf[:0], addr, v)
	err := c.tx(w, c.rbuf[:len(w)])
	if err != nil {
		return writeErr(addr, err)
	}
	if c._traceenabled {
		c.trace("write", slog.String("sfr", addr.String()), slog.String("v", hex32(v)))
	}
	return nil
}

// ModifySFR reads the register at addr, applies fn and writes the result back.
// fn is not called if the read fails.
func (c *Controller) ModifySFR(addr sfr.Address, fn func(uint32) uint32) error {
	v, err := c.ReadSFR(addr)
	if err != nil {
		return err
	}
	return c.WriteSFR(addr, fn(v))
}

// VerifySPICommunications performs a single read of OSC. Any successful
// transfer counts as a live link; the value read is ignored.
func (c *Controller) VerifySPICommunications() error {
	_, err := c.ReadSFR(sfr.OSC)
	return err
}

// AwaitSPICommunications calls VerifySPICommunications every interval until
// the link answers or ctx is done. It returns the number of failed checks.
// A done ctx returns a timeout phase *Error on OSC wrapping the context error
// and, if any check ran, the last bus error. A nil delay means time.Sleep.
func (c *Controller) AwaitSPICommunications(ctx context.Context, interval time.Duration, delay DelayFunc) (failed int, err error) {
	if delay == nil {
		delay = time.Sleep
	}
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return failed, timeoutErr("link", sfr.OSC, errors.Join(err, lastErr))
		}
		lastErr = c.VerifySPICommunications()
		if lastErr == nil {
			if failed > 0 {
				c.info("link:up", slog.Int("failed", failed))
			}
			return failed, nil
		}
		failed++
		c.debug("link:down", slog.Int("failed", failed), slog.String("err", lastErr.Error()))
		delay(interval)
	}
}

// ConfigureFIFOControl performs a read-modify-write of the control register
// of fifo. FIFO 0 is the transmit queue (C1TXQCON), FIFOs 1 to 31 are
// C1FIFOCON1 to C1FIFOCON31. An out of range index returns ErrFIFOIndex
// without touching the bus.
func (c *Controller) ConfigureFIFOControl(fifo uint8, fn func(sfr.FIFOCONBits) sfr.FIFOCONBits) error {
	addr, ok := sfr.FIFOCONChecked(fifo)
	if !ok {
		return ErrFIFOIndex
	}
	return c.ModifySFR(addr, func(v uint32) uint32 {
		return uint32(fn(sfr.FIFOCONBits(v)))
	})
}

// DeviceID reads the DEVID register. Only the MCP2518FD implements it,
// the MCP2517FD reads back zero.
func (c *Controller) DeviceID() (id, rev uint8, err error) {
	v, err := c.ReadSFR(sfr.DEVID)
	if err != nil {
		return 0, 0, err
	}
	return uint8(v>>4) & 0xf, uint8(v) & 0xf, nil
}

// Mode returns the current operation mode as reported by C1CON.OPMOD.
func (c *Controller) Mode() (sfr.OperationMode, error) {
	v, err := c.ReadSFR(sfr.C1CON)
	if err != nil {
		return 0, err
	}
	return sfr.C1CONBits(v).OpMode(), nil
}

// RequestMode requests the operation mode and polls C1CON until the
// controller reports it or the poll budget runs out. A nil delay means time.Sleep.
func (c *Controller) RequestMode(ctx context.Context, mode sfr.OperationMode, poll PollPolicy, delay DelayFunc) error {
	if mode > sfr.ModeRestricted {
		return errors.Join(ErrInvalidSettings, errors.New("invalid operation mode"))
	} else if err := poll.validate("mode poll"); err != nil {
		return err
	}
	return c.transition(ctx, mode, nil, poll, delay, nil)
}

// transition writes the C1CON mode request (after applying mut) and polls for
// confirmation, reporting every unconfirmed attempt to hook.
func (c *Controller) transition(ctx context.Context, mode sfr.OperationMode, mut func(sfr.C1CONBits) sfr.C1CONBits, poll PollPolicy, delay DelayFunc, hook func(ModePollEvent)) error {
	err := c.ModifySFR(sfr.C1CON, func(v uint32) uint32 {
		con := sfr.C1CONBits(v).WithRequestMode(mode)
		if mut != nil {
			con = mut(con)
		}
		return uint32(con)
	})
	if err != nil {
		return withOp("mode-request", err)
	}
	c.debug("mode:request", slog.String("mode", mode.String()))
	_, err = c.poll(ctx, "mode-confirm", sfr.C1CON, poll, delay, func(v uint32, attempt int) (bool, error) {
		current := sfr.C1CONBits(v).OpMode()
		if current == mode {
			return true, nil
		}
		ev, err := c.modeDiagnostics(attempt, mode, current)
		if err != nil {
			return false, err
		}
		c.debug("mode:pending",
			slog.Int("attempt", ev.Attempt),
			slog.String("current", current.String()),
			slog.Int("tec", int(ev.TREC.TEC())),
			slog.Int("rec", int(ev.TREC.REC())),
			slog.String("bdiag0", hex32(uint32(ev.BDIAG0))),
			slog.String("bdiag1", hex32(uint32(ev.BDIAG1))),
		)
		if hook != nil {
			hook(ev)
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	c.info("mode:confirmed", slog.String("mode", mode.String()))
	return nil
}

func (c *Controller) modeDiagnostics(attempt int, requested, current sfr.OperationMode) (ev ModePollEvent, err error) {
	ev = ModePollEvent{Attempt: attempt, Requested: requested, Current: current}
	v, err := c.ReadSFR(sfr.C1TREC)
	if err != nil {
		return ev, err
	}
	ev.TREC = sfr.TRECBits(v)
	v, err = c.ReadSFR(sfr.C1BDIAG0)
	if err != nil {
		return ev, err
	}
	ev.BDIAG0 = sfr.BDIAG0Bits(v)
	v, err = c.ReadSFR(sfr.C1BDIAG1)
	if err != nil {
		return ev, err
	}
	ev.BDIAG1 = sfr.BDIAG1Bits(v)
	return ev, nil
}

// poll reads addr until ready returns true, at most p.Attempts times with
// p.Interval between reads. ready receives the 1-based attempt number.
// Bus and ready errors abort the poll. Exhausting the budget or a done
// context return a timeout phase *Error.
func (c *Controller) poll(ctx context.Context, op string, addr sfr.Address, p PollPolicy, delay DelayFunc, ready func(v uint32, attempt int) (bool, error)) (uint32, error) {
	if delay == nil {
		delay = time.Sleep
	}
	var v uint32
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if attempt > 1 {
			delay(p.Interval)
		}
		if err := ctx.Err(); err != nil {
			return v, timeoutErr(op, addr, err)
		}
		var err error
		v, err = c.ReadSFR(addr)
		if err != nil {
			return v, withOp(op, err)
		}
		ok, err := ready(v, attempt)
		if err != nil {
			return v, withOp(op, err)
		} else if ok {
			return v, nil
		}
	}
	c.warn("poll:timeout", slog.String("op", op), slog.String("sfr", addr.String()), slog.String("last", hex32(v)))
	return v, timeoutErr(op, addr, nil)
}
