package mcp2517fd

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/soypat/mcp2517fd/sfr"
)

// Settings configures the controller bring-up performed by Configure.
// The zero value is not valid, start from DefaultSettings.
type Settings struct {
	Oscillator Oscillator
	IO         IOConfiguration
	// TxQueue configures the transmit queue (FIFO 0). When nil the
	// queue is left disabled.
	TxQueue *TxQueue
	// RxFIFOs configures receive FIFOs 1..len(RxFIFOs) in order.
	RxFIFOs []RxFIFO
	// Mode is the operation mode requested at the end of bring-up.
	Mode           sfr.OperationMode
	OscillatorPoll PollPolicy
	ModePoll       PollPolicy
	// Logger overrides the Controller's logger for the duration of Configure.
	Logger *slog.Logger
	// OnModePoll is called for every mode poll that did not yet observe
	// the requested mode, after the diagnostic registers have been read.
	OnModePoll func(ModePollEvent)
}

// Oscillator selects the system clock source.
type Oscillator struct {
	// PLL multiplies the 4MHz crystal by 10. When set Configure also waits for PLL lock.
	PLL         bool
	SysClkDiv2  bool
	ClockOutDiv sfr.ClockOutDivider
}

// IOConfiguration holds the IOCON options. GPIO0 and GPIO1 are always
// configured as latched outputs. The zero value selects push-pull outputs.
type IOConfiguration struct {
	// StandbyPin drives the transceiver standby pin from GPIO0.
	StandbyPin         bool
	TXCANOpenDrain     bool
	SOFOnClockOut      bool
	InterruptOpenDrain bool
}

// TxQueue configures the transmit queue.
type TxQueue struct {
	// Priority of the queue among transmit FIFOs, 0 is the lowest and 31 the highest.
	Priority   uint8
	Retransmit sfr.Retransmit
	// Depth is the FSIZE encoding: the queue holds Depth+1 message objects.
	Depth   uint8
	Payload sfr.PayloadSize
}

// RxFIFO configures a receive FIFO.
type RxFIFO struct {
	// Depth is the FSIZE encoding: the FIFO holds Depth+1 message objects.
	Depth             uint8
	Payload           sfr.PayloadSize
	Timestamp         bool
	NotEmptyInterrupt bool
	OverflowInterrupt bool
}

// PollPolicy bounds a register poll.
type PollPolicy struct {
	// Interval is the delay between consecutive reads.
	Interval time.Duration
	// Attempts is the maximum number of reads. Must be at least 1.
	Attempts int
}

// Timeout returns the worst case time spent waiting between reads.
func (p PollPolicy) Timeout() time.Duration {
	if p.Attempts <= 1 {
		return 0
	}
	return time.Duration(p.Attempts-1) * p.Interval
}

func (p PollPolicy) validate(name string) error {
	if p.Attempts < 1 {
		return errors.New(name + ": attempts must be at least 1")
	} else if p.Interval < 0 {
		return errors.New(name + ": negative interval")
	}
	return nil
}

// ModePollEvent is the diagnostic snapshot taken on a mode poll that has
// not yet observed the requested mode.
type ModePollEvent struct {
	Attempt   int
	Requested sfr.OperationMode
	Current   sfr.OperationMode
	TREC      sfr.TRECBits
	BDIAG0    sfr.BDIAG0Bits
	BDIAG1    sfr.BDIAG1Bits
}

// DefaultSettings returns the settings of a bare bring-up: crystal
// clock without PLL, push-pull pins, no queues and Normal CAN FD mode.
func DefaultSettings() Settings {
	poll := PollPolicy{Interval: time.Millisecond, Attempts: 100}
	return Settings{
		Mode:           sfr.ModeNormalFD,
		OscillatorPoll: poll,
		ModePoll:       poll,
	}
}

const (
	objHeaderLen    = 8 // Message object ID and flags words.
	objTimestampLen = 4
	maxFieldFSIZE   = 31
	maxFieldTXPRI   = 31
)

// RAMUsage returns the bytes of message RAM taken by the configured
// transmit queue and receive FIFOs.
func (s *Settings) RAMUsage() int {
	n := 0
	if s.TxQueue != nil {
		n += objectsSize(s.TxQueue.Depth, s.TxQueue.Payload, false)
	}
	for _, rx := range s.RxFIFOs {
		n += objectsSize(rx.Depth, rx.Payload, rx.Timestamp)
	}
	return n
}

func objectsSize(depth uint8, payload sfr.PayloadSize, timestamp bool) int {
	obj := objHeaderLen + payload.Bytes()
	if timestamp {
		obj += objTimestampLen
	}
	return (int(depth) + 1) * obj
}

// Validate checks every field of s. The returned error wraps
// ErrInvalidSettings and every problem found.
func (s *Settings) Validate() error {
	var errs []error
	add := func(msg string) { errs = append(errs, errors.New(msg)) }
	if s.Oscillator.ClockOutDiv > sfr.ClockOutDiv10 {
		add("invalid clock output divider")
	}
	if s.Mode > sfr.ModeRestricted {
		add("invalid operation mode " + strconv.Itoa(int(s.Mode)))
	}
	if err := s.OscillatorPoll.validate("oscillator poll"); err != nil {
		errs = append(errs, err)
	}
	if err := s.ModePoll.validate("mode poll"); err != nil {
		errs = append(errs, err)
	}
	if q := s.TxQueue; q != nil {
		if q.Priority > maxFieldTXPRI {
			add("txq: priority exceeds 31")
		}
		if q.Retransmit > sfr.RetransmitUnlimited {
			add("txq: invalid retransmit policy")
		}
		if q.Depth > maxFieldFSIZE {
			add("txq: depth exceeds 31")
		}
		if q.Payload > sfr.Payload64 {
			add("txq: invalid payload size")
		}
	}
	if len(s.RxFIFOs) > sfr.NumFIFO {
		add("more than " + strconv.Itoa(sfr.NumFIFO) + " receive FIFOs")
	}
	for i, rx := range s.RxFIFOs {
		prefix := "fifo " + strconv.Itoa(i+1) + ": "
		if rx.Depth > maxFieldFSIZE {
			add(prefix + "depth exceeds 31")
		}
		if rx.Payload > sfr.Payload64 {
			add(prefix + "invalid payload size")
		}
	}
	if n := s.RAMUsage(); n > sfr.RAMSize {
		add("message RAM overflow: " + strconv.Itoa(n) + " > " + strconv.Itoa(sfr.RAMSize) + " bytes")
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidSettings}, errs...)...)
}
