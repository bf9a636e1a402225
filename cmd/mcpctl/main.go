// Command mcpctl drives a MCP2517FD CAN FD controller attached to a Linux
// spidev bus, or a simulated one with --sim.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	yellow = color.New(color.FgHiYellow).SprintfFunc()
)

var rootCmd = &cobra.Command{
	Use:          "mcpctl",
	Short:        "MCP2517FD/MCP2518FD CAN FD controller tool",
	Long:         `Bring up, probe and inspect a MCP2517FD over spidev.`,
	SilenceUsage: true,
}

// Persistent flags.
var (
	spiDev    string
	csPin     string
	spiHz     int64
	simulate  bool
	verbosity int
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, os.Interrupt)
	go func() {
		<-quitChan
		cancel()
		// Failsafe if a bus call hangs.
		<-time.After(10 * time.Second)
		os.Exit(2)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&spiDev, "dev", "/dev/spidev0.0", "spidev device")
	pf.StringVar(&csPin, "cs", "GPIO8", "chip select GPIO name, driven manually")
	pf.Int64Var(&spiHz, "hz", 1_000_000, "SPI clock frequency in Hz")
	pf.BoolVar(&simulate, "sim", false, "use a simulated controller instead of spidev")
	pf.CountVarP(&verbosity, "verbose", "v", "log verbosity, -vv traces every register access")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbosity == 1:
		level = slog.LevelDebug
	case verbosity > 1:
		level = slog.LevelDebug - 1
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				a.Value = slog.StringValue(levelString(a.Value.Any()))
			}
			return a
		},
	}))
}
