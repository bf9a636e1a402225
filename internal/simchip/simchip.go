// Package simchip simulates the SPI side of a MCP2517FD: a register file
// with reset values, scripted oscillator and mode transitions and bus
// error injection. It implements drivers.SPI.
package simchip

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/sfr"
)

var (
	errNotSelected = errors.New("simchip: transfer with chip select deasserted")
	errMismatch    = errors.New("simchip: read and write buffers differ in length")
)

// Access is a register access as seen by the chip.
type Access struct {
	Instr mcp2517fd.Instruction
	Addr  sfr.Address
	Value uint32
}

// Chip is a simulated controller. The zero value is not usable, use New.
type Chip struct {
	// OSCReadyAfter is the number of OSC reads following a clock select
	// write that report the oscillator as not ready. A negative value
	// never reports ready.
	OSCReadyAfter int
	// ModeConfirmAfter is the number of C1CON reads following a mode request
	// that still report the previous mode. A negative value never confirms.
	ModeConfirmAfter int
	// Inject is called before every frame is executed. A non-nil error is
	// returned to the caller and the frame has no effect.
	Inject func(instr mcp2517fd.Instruction, addr sfr.Address) error

	regs       map[sfr.Address]uint32
	oscPending int
	modeWait   int
	selected   bool
	asserts    int
	deasserts  int
	log        []Access
}

// New returns a chip in its power-on state with the oscillator ready
// immediately and mode requests confirmed on the first read.
func New() *Chip {
	c := &Chip{}
	c.reset()
	return c
}

// Register reset values.
const (
	resetOSC     = 0x0000_0460
	resetIOCON   = 0x0000_0003
	resetC1CON   = 0x0498_0760
	resetFIFOCON = 0x0060_0400
)

func (c *Chip) reset() {
	c.regs = map[sfr.Address]uint32{
		sfr.OSC:      resetOSC,
		sfr.IOCON:    resetIOCON,
		sfr.C1CON:    resetC1CON,
		sfr.C1TXQCON: resetFIFOCON,
	}
	for m := uint8(1); m <= sfr.NumFIFO; m++ {
		c.regs[sfr.FIFOCON(m)] = resetFIFOCON
	}
	c.oscPending = 0
	c.modeWait = 0
}

// CS is the chip select pin of the chip. It is active low.
func (c *Chip) CS(level bool) {
	if !level {
		c.asserts++
		c.selected = true
		return
	}
	if c.selected {
		c.deasserts++
	}
	c.selected = false
}

// Selections returns the number of chip select assertions and deassertions.
func (c *Chip) Selections() (asserts, deasserts int) { return c.asserts, c.deasserts }

// Selected reports whether chip select is currently asserted.
func (c *Chip) Selected() bool { return c.selected }

// Log returns the executed accesses in order.
func (c *Chip) Log() []Access { return c.log }

// ClearLog discards the access log.
func (c *Chip) ClearLog() { c.log = c.log[:0] }

// Count returns the number of executed accesses of instr on addr.
func (c *Chip) Count(instr mcp2517fd.Instruction, addr sfr.Address) (n int) {
	for _, a := range c.log {
		if a.Instr == instr && a.Addr == addr {
			n++
		}
	}
	return n
}

// Reg returns the stored value of the register at addr.
func (c *Chip) Reg(addr sfr.Address) uint32 { return c.regs[addr] }

// SetReg sets the stored value of the register at addr without side effects.
func (c *Chip) SetReg(addr sfr.Address, v uint32) { c.regs[addr] = v }

// Transfer is not supported by the controller protocol and returns 0xff.
func (c *Chip) Transfer(b byte) (byte, error) {
	if !c.selected {
		return 0, errNotSelected
	}
	return 0xff, nil
}

// Tx executes a single frame. r may be nil.
func (c *Chip) Tx(w, r []byte) error {
	if !c.selected {
		return errNotSelected
	} else if r != nil && len(r) != len(w) {
		return errMismatch
	}
	f, err := mcp2517fd.DecodeFrame(w, nil)
	if err != nil {
		return err
	}
	if c.Inject != nil {
		if err := c.Inject(f.Instr, f.Addr); err != nil {
			return err
		}
	}
	for i := range r {
		r[i] = 0
	}
	acc := Access{Instr: f.Instr, Addr: f.Addr}
	switch f.Instr {
	case mcp2517fd.InstrReset:
		c.reset()
	case mcp2517fd.InstrRead:
		acc.Value = c.read(f.Addr)
		if len(r) >= 6 {
			binary.LittleEndian.PutUint32(r[2:], acc.Value)
		}
	case mcp2517fd.InstrWrite:
		v, ok := f.Word()
		if !ok {
			return errors.New("simchip: short write frame")
		}
		acc.Value = v
		c.write(f.Addr, v)
	default:
		return errors.New("simchip: unsupported instruction " + f.Instr.String())
	}
	c.log = append(c.log, acc)
	return nil
}

func (c *Chip) read(addr sfr.Address) uint32 {
	v := c.regs[addr]
	switch addr {
	case sfr.OSC:
		if c.oscPending != 0 {
			if c.oscPending > 0 {
				c.oscPending--
			}
			return v &^ (sfr.OSC_OSCRDY | sfr.OSC_PLLRDY | sfr.OSC_SCLKRDY)
		}
	case sfr.C1CON:
		if c.modeWait < 0 {
			break
		} else if c.modeWait > 0 {
			c.modeWait--
			break
		}
		con := sfr.C1CONBits(v)
		v = uint32(setOpMode(con, con.RequestedMode()))
		c.regs[addr] = v
	}
	return v
}

func (c *Chip) write(addr sfr.Address, v uint32) {
	switch addr {
	case sfr.OSC:
		// Status bits are read-only and reflect the selected clock.
		v &^= sfr.OSC_OSCRDY | sfr.OSC_PLLRDY | sfr.OSC_SCLKRDY
		v |= sfr.OSC_OSCRDY | sfr.OSC_SCLKRDY
		if sfr.OSCBits(v).PLLEnabled() {
			v |= sfr.OSC_PLLRDY
		}
		c.oscPending = c.OSCReadyAfter
	case sfr.C1CON:
		// OPMOD is read-only.
		old := sfr.C1CONBits(c.regs[addr])
		v = uint32(setOpMode(sfr.C1CONBits(v), old.OpMode()))
		c.modeWait = c.ModeConfirmAfter
	}
	c.regs[addr] = v
}

func setOpMode(con sfr.C1CONBits, m sfr.OperationMode) sfr.C1CONBits {
	mask := sfr.C1CONBits(sfr.C1CON_OPMOD.Mask())
	return con&^mask | sfr.C1CONBits(m)<<sfr.C1CON_OPMOD.Pos
}
