package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/sfr"
	"github.com/spf13/cobra"
)

// Settings flags, shared by bringup and monitor.
var (
	modeName     string
	usePLL       bool
	pollAttempts int
	pollInterval time.Duration
	txqDepth     int
	payloadBytes int
	rxFIFOs      int
	rxDepth      int
	retries      uint
)

func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&modeName, "mode", sfr.ModeNormalFD.String(), "operation mode requested after bring-up")
	f.BoolVar(&usePLL, "pll", false, "enable the 10x PLL")
	addPollFlags(cmd)
	f.IntVar(&txqDepth, "txq", -1, "transmit queue depth in messages, -1 disables the queue")
	f.IntVar(&payloadBytes, "payload", 8, "payload bytes of every message object")
	f.IntVar(&rxFIFOs, "rx-fifos", 0, "number of receive FIFOs")
	f.IntVar(&rxDepth, "rx-depth", 8, "receive FIFO depth in messages")
	f.UintVar(&retries, "retries", 3, "bring-up attempts before giving up, at least 1")
}

func addPollFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&pollAttempts, "attempts", 100, "maximum reads per register poll")
	cmd.Flags().DurationVar(&pollInterval, "interval", time.Millisecond, "delay between poll reads")
}

// settingsFromFlags builds Settings from the command line.
func settingsFromFlags() (mcp2517fd.Settings, error) {
	s := mcp2517fd.DefaultSettings()
	mode, ok := sfr.ParseOperationMode(modeName)
	if !ok {
		return s, fmt.Errorf("unknown mode %q", modeName)
	}
	payload, ok := sfr.PayloadSizeFromBytes(payloadBytes)
	if !ok {
		return s, fmt.Errorf("invalid payload size %d", payloadBytes)
	}
	s.Mode = mode
	s.Oscillator.PLL = usePLL
	poll := mcp2517fd.PollPolicy{Interval: pollInterval, Attempts: pollAttempts}
	s.OscillatorPoll = poll
	s.ModePoll = poll
	if retries < 1 {
		return s, errors.New("retries must be at least 1")
	}
	if txqDepth > 32 || rxDepth > 32 {
		return s, errors.New("FIFO depth exceeds 32 messages")
	}
	if txqDepth > 0 {
		s.TxQueue = &mcp2517fd.TxQueue{
			Depth:      uint8(txqDepth - 1),
			Payload:    payload,
			Retransmit: sfr.RetransmitThree,
		}
	} else if txqDepth == 0 {
		return s, errors.New("transmit queue depth must be at least 1")
	}
	if rxFIFOs > 0 && rxDepth < 1 {
		return s, errors.New("receive FIFO depth must be at least 1")
	}
	for i := 0; i < rxFIFOs; i++ {
		s.RxFIFOs = append(s.RxFIFOs, mcp2517fd.RxFIFO{
			Depth:             uint8(rxDepth - 1),
			Payload:           payload,
			NotEmptyInterrupt: true,
			OverflowInterrupt: true,
		})
	}
	return s, s.Validate()
}

var bringupCmd = &cobra.Command{
	Use:   "bringup",
	Short: "reset and configure the controller",
	Long: `Reset the controller, wait for the oscillator, configure pins and FIFOs and
request the operation mode. On failure the SPI link is probed and bring-up retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settingsFromFlags()
		if err != nil {
			return err
		}
		logger := newLogger()
		c, closer, err := newController(logger)
		if err != nil {
			return err
		}
		defer closer()
		s.OnModePoll = func(ev mcp2517fd.ModePollEvent) {
			fmt.Fprintln(cmd.ErrOrStderr(), yellow("mode pending #%d: %s (tec=%d rec=%d)", ev.Attempt, ev.Current, ev.TREC.TEC(), ev.TREC.REC()))
		}
		err = bringup(cmd, c, s, logger)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), red("bring-up failed:"), err)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green("controller up in %s mode", s.Mode))
		return nil
	},
}

// bringup runs Configure with bounded retries. Between attempts the link
// is probed so a dead bus is reported distinctly from a misbehaving chip.
func bringup(cmd *cobra.Command, c *mcp2517fd.Controller, s mcp2517fd.Settings, logger *slog.Logger) error {
	ctx := cmd.Context()
	return retry.Do(func() error {
		return c.Configure(ctx, s, nil)
	},
		retry.Context(ctx),
		retry.Attempts(retries),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("bringup:retry", slog.Uint64("attempt", uint64(n+1)), slog.String("err", err.Error()))
			if perr := c.VerifySPICommunications(); perr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), red("link down:"), perr)
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), yellow("link up, retrying bring-up"))
			}
		}),
		retry.LastErrorOnly(true),
	)
}

func init() {
	addSettingsFlags(bringupCmd)
	rootCmd.AddCommand(bringupCmd)
}
