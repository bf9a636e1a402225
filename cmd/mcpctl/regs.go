package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/sfr"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read REG...",
	Short: "read registers by name or address",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closer, err := newController(newLogger())
		if err != nil {
			return err
		}
		defer closer()
		for _, arg := range args {
			addr, err := parseRegister(arg)
			if err != nil {
				return err
			}
			v, err := c.ReadSFR(addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s  %s\n", addr, green("%#08x", v), describe(addr, v))
		}
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write REG VALUE",
	Short: "write a register",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		v, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		c, closer, err := newController(newLogger())
		if err != nil {
			return err
		}
		defer closer()
		if err := c.WriteSFR(addr, v); err != nil {
			return err
		}
		got, err := c.ReadSFR(addr)
		if err != nil {
			return err
		}
		status := green("ok")
		if got != v {
			status = yellow("readback differs")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <- %#08x, read %#08x %s\n", addr, v, got, status)
		return nil
	},
}

var fifoResetCmd = &cobra.Command{
	Use:   "fifo-reset FIFO",
	Short: "reset a FIFO, 0 being the transmit queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return err
		}
		c, closer, err := newController(newLogger())
		if err != nil {
			return err
		}
		defer closer()
		err = c.ConfigureFIFOControl(uint8(n), func(f sfr.FIFOCONBits) sfr.FIFOCONBits {
			return f.WithReset(true)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sfr.FIFOCON(uint8(n)), green("reset requested"))
		return nil
	},
}

var (
	probeCount int
	probeEvery time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "check SPI communications, reading OSC and IOCON when the link is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closer, err := newController(newLogger())
		if err != nil {
			return err
		}
		defer closer()
		out := cmd.OutOrStdout()
		if id, rev, err := c.DeviceID(); err == nil {
			fmt.Fprintf(out, "devid=%d rev=%d\n", id, rev)
		}
		failed, err := probe(cmd.Context(), out, c, probeCount, probeEvery)
		if err != nil {
			return err
		} else if failed > 0 {
			return fmt.Errorf("%d of %d probes failed", failed, probeCount)
		}
		return nil
	},
}

// probe checks the link count times (forever if count <= 0). A passing
// check is followed by a read of OSC or IOCON, alternating, for display.
func probe(ctx context.Context, out io.Writer, c *mcp2517fd.Controller, count int, every time.Duration) (failed int, err error) {
	regs := [2]sfr.Address{sfr.OSC, sfr.IOCON}
	for i := 0; count <= 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return failed, ctx.Err()
			case <-time.After(every):
			}
		}
		addr := regs[i%2]
		if err := c.VerifySPICommunications(); err != nil {
			failed++
			fmt.Fprintln(out, red("%-6s fail", addr), err)
			continue
		}
		v, err := c.ReadSFR(addr)
		if err != nil {
			failed++
			fmt.Fprintln(out, red("%-6s fail", addr), err)
			continue
		}
		fmt.Fprintln(out, green("%-6s ok", addr), fmt.Sprintf("%#08x", v))
	}
	return failed, nil
}

var modeCmd = &cobra.Command{
	Use:   "mode [MODE]",
	Short: "print the operation mode or request a new one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closer, err := newController(newLogger())
		if err != nil {
			return err
		}
		defer closer()
		if len(args) == 1 {
			mode, ok := sfr.ParseOperationMode(args[0])
			if !ok {
				return fmt.Errorf("unknown mode %q", args[0])
			}
			poll := mcp2517fd.PollPolicy{Interval: pollInterval, Attempts: pollAttempts}
			if err := c.RequestMode(cmd.Context(), mode, poll, nil); err != nil {
				return err
			}
		}
		mode, err := c.Mode()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green(mode.String()))
		return nil
	},
}

func init() {
	probeCmd.Flags().IntVarP(&probeCount, "count", "n", 4, "number of reads, 0 runs until interrupted")
	probeCmd.Flags().DurationVar(&probeEvery, "every", time.Second, "delay between reads")
	addPollFlags(modeCmd)
	rootCmd.AddCommand(readCmd, writeCmd, fifoResetCmd, probeCmd, modeCmd)
}
