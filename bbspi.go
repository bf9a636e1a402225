package mcp2517fd

// InputPin returns the level of a digital input, i.e: machine.Pin.Get.
type InputPin func() (level bool)

// SPIbb is a bit-banged SPI mode 0 bus, MSB first. It is meant for
// bring-up on boards where the hardware SPI pins are taken, and for
// isolating SPI peripheral faults from wiring faults.
type SPIbb struct {
	SCK OutputPin
	SDO OutputPin
	SDI InputPin
	// Delay waits a quarter of the clock period. May be nil.
	Delay func()
}

// Tx clocks out w while clocking in r. A nil r discards the input. When w
// is shorter than r the remainder is clocked out as zeros.
func (s *SPIbb) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	for i := 0; i < n; i++ {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in := s.transfer(out)
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}

// Transfer clocks out a single byte and returns the byte clocked in.
func (s *SPIbb) Transfer(b byte) (byte, error) {
	return s.transfer(b), nil
}

func (s *SPIbb) transfer(b byte) (in byte) {
	for bit := 7; bit >= 0; bit-- {
		// Data is set up while SCK is low and sampled on the rising edge.
		s.SDO(b&(1<<bit) != 0)
		s.delay()
		s.SCK(true)
		s.delay()
		if s.SDI() {
			in |= 1 << bit
		}
		s.delay()
		s.SCK(false)
		s.delay()
	}
	return in
}

func (s *SPIbb) delay() {
	if s.Delay != nil {
		s.Delay()
	}
}
