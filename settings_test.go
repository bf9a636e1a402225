package mcp2517fd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soypat/mcp2517fd/sfr"
)

func TestDefaultSettingsValid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if s.TxQueue != nil || len(s.RxFIFOs) != 0 || s.Oscillator.PLL || s.IO.InterruptOpenDrain {
		t.Errorf("unexpected defaults %+v", s)
	}
	if s.Mode != sfr.ModeNormalFD {
		t.Errorf("default mode %s", s.Mode)
	}
	if s.OscillatorPoll.Timeout() != 99*time.Millisecond {
		t.Errorf("default oscillator poll timeout %s", s.OscillatorPoll.Timeout())
	}
}

func TestSettingsValidate(t *testing.T) {
	var tests = []struct {
		name   string
		modify func(*Settings)
		errstr string // empty if valid.
	}{
		{name: "zero attempts", modify: func(s *Settings) { s.OscillatorPoll.Attempts = 0 }, errstr: "oscillator poll"},
		{name: "negative interval", modify: func(s *Settings) { s.ModePoll.Interval = -1 }, errstr: "negative interval"},
		{name: "bad mode", modify: func(s *Settings) { s.Mode = 8 }, errstr: "operation mode"},
		{name: "bad divider", modify: func(s *Settings) { s.Oscillator.ClockOutDiv = 4 }, errstr: "divider"},
		{name: "txq priority", modify: func(s *Settings) { s.TxQueue = &TxQueue{Priority: 32} }, errstr: "priority"},
		{name: "txq depth", modify: func(s *Settings) { s.TxQueue = &TxQueue{Depth: 32} }, errstr: "depth"},
		{name: "txq payload", modify: func(s *Settings) { s.TxQueue = &TxQueue{Payload: 8} }, errstr: "payload"},
		{name: "txq retransmit", modify: func(s *Settings) { s.TxQueue = &TxQueue{Retransmit: 4} }, errstr: "retransmit"},
		{name: "txq max", modify: func(s *Settings) {
			s.TxQueue = &TxQueue{Priority: 31, Retransmit: sfr.RetransmitUnlimited, Depth: 31, Payload: sfr.Payload48}
		}},
		{name: "rx depth", modify: func(s *Settings) { s.RxFIFOs = []RxFIFO{{}, {Depth: 40}} }, errstr: "fifo 2: depth"},
		{name: "too many fifos", modify: func(s *Settings) { s.RxFIFOs = make([]RxFIFO, 32) }, errstr: "receive FIFOs"},
		{name: "31 fifos", modify: func(s *Settings) { s.RxFIFOs = make([]RxFIFO, 31) }},
		{name: "ram overflow", modify: func(s *Settings) {
			s.RxFIFOs = []RxFIFO{{Depth: 31, Payload: sfr.Payload64, Timestamp: true}}
		}, errstr: "message RAM overflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if tt.errstr == "" {
				if err != nil {
					t.Fatal("unexpected error", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("want ErrInvalidSettings, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errstr) {
				t.Errorf("error %q does not mention %q", err, tt.errstr)
			}
		})
	}
}

func TestRAMUsage(t *testing.T) {
	s := DefaultSettings()
	s.TxQueue = &TxQueue{Depth: 0, Payload: sfr.Payload8}
	s.RxFIFOs = []RxFIFO{
		{Depth: 1, Payload: sfr.Payload64, Timestamp: true},
		{Depth: 3, Payload: sfr.Payload12},
	}
	const want = 1*(8+8) + 2*(8+64+4) + 4*(8+12)
	if got := s.RAMUsage(); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
	// Exactly filling message RAM is valid: 32 objects of 64 bytes.
	s = DefaultSettings()
	s.TxQueue = &TxQueue{Depth: 27, Payload: sfr.Payload64}
	s.RxFIFOs = []RxFIFO{{Depth: 0, Payload: sfr.Payload8}}
	// 28*72 + 16 = 2032
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestPollPolicyTimeout(t *testing.T) {
	p := PollPolicy{Interval: time.Second, Attempts: 1}
	if p.Timeout() != 0 {
		t.Error("single attempt should never wait")
	}
	p.Attempts = 4
	if p.Timeout() != 3*time.Second {
		t.Error("got", p.Timeout())
	}
}
