package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/internal/simchip"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// spidev adapts a periph SPI connection to drivers.SPI. Chip select is
// managed by the Controller through a GPIO.
type spidev struct {
	conn spi.Conn
}

func (s *spidev) Tx(w, r []byte) error {
	if r == nil {
		r = make([]byte, len(w))
	}
	return s.conn.Tx(w, r)
}

func (s *spidev) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.conn.Tx([]byte{b}, r[:])
	return r[0], err
}

// newController opens the bus selected by the persistent flags. The
// returned closer releases the bus.
func newController(logger *slog.Logger) (*mcp2517fd.Controller, func() error, error) {
	if simulate {
		chip := simchip.New()
		chip.OSCReadyAfter = 2
		chip.ModeConfirmAfter = 1
		c := mcp2517fd.New(chip, chip.CS)
		c.SetLogger(logger)
		logger.Info("using simulated controller")
		return c, func() error { return nil }, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph init: %w", err)
	}
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", spiDev, err)
	}
	conn, err := port.Connect(physic.Frequency(spiHz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("connect %s: %w", spiDev, err)
	}
	pin := gpioreg.ByName(csPin)
	if pin == nil {
		port.Close()
		return nil, nil, errors.New("unknown chip select pin " + csPin)
	}
	cs := func(level bool) {
		if err := pin.Out(gpio.Level(level)); err != nil {
			logger.Error("chip select", slog.String("pin", csPin), slog.String("err", err.Error()))
		}
	}
	c := mcp2517fd.New(&spidev{conn: conn}, cs)
	c.SetLogger(logger)
	logger.Debug("bus open", slog.String("dev", spiDev), slog.String("cs", csPin), slog.Int64("hz", spiHz))
	return c, port.Close, nil
}

func levelString(v any) string {
	if l, ok := v.(slog.Level); ok {
		return mcp2517fd.LevelString(l)
	}
	return fmt.Sprint(v)
}
