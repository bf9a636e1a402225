//go:build tinygo

package mcp2517fd

import (
	"device"
	"machine"
)

// BitBangPins is the wiring of a controller to GPIOs driven in software.
type BitBangPins struct {
	SCK, SDO, SDI, CS machine.Pin
	// Nops is the number of nop instructions per quarter clock period.
	Nops uint32
}

// NewBitBang returns a Controller on a bit-banged SPI bus. SCK and SDO are
// configured as outputs driven low, SDI as input and CS as a deasserted output.
func NewBitBang(pins BitBangPins) *Controller {
	pins.SCK.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pins.SDO.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pins.SDI.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	pins.CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pins.SCK.Low()
	pins.SDO.Low()
	nops := max(pins.Nops, 1)
	bus := &SPIbb{
		SCK: pins.SCK.Set,
		SDO: pins.SDO.Set,
		SDI: pins.SDI.Get,
		Delay: func() {
			for i := uint32(0); i < nops; i++ {
				device.Asm("nop")
			}
		},
	}
	return New(bus, pins.CS.Set)
}
