//go:build pico && !mcpnopio

package mcp2517fd

import (
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// PicoPins is the wiring of a controller to a Raspberry Pi Pico.
type PicoPins struct {
	SCK, SDO, SDI, CS machine.Pin
	// Frequency of SCK in Hz. Must not exceed 0.85 of SYSCLK/2.
	Frequency uint32
}

// DefaultPicoPins is the SPI0 wiring used by the bring-up firmware.
var DefaultPicoPins = PicoPins{
	SCK:       machine.GPIO18,
	SDO:       machine.GPIO19,
	SDI:       machine.GPIO16,
	CS:        machine.GPIO17,
	Frequency: 1_000_000,
}

// NewPico returns a Controller driven by a PIO state machine running SPI
// mode 0 on the given pins. Chip select is a plain GPIO.
func NewPico(pins PicoPins) (*Controller, error) {
	pins.CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pins.CS.High()
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	spi, err := piolib.NewSPI(sm, machine.SPIConfig{
		Frequency: pins.Frequency,
		SCK:       pins.SCK,
		SDO:       pins.SDO,
		SDI:       pins.SDI,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	return New(spi, pins.CS.Set), nil
}
