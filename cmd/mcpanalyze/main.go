// Command mcpanalyze decodes Saleae binary digital captures of an SPI bus
// into MCP2517FD register operations.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
)

type Decoder struct {
	OmitRead    bool
	OmitWrite   bool
	OmitReset   bool
	KeepRepeats bool
	Timings     io.Writer
	logger      *slog.Logger
}

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(handler)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "mcpanalyze - Process Binary Saleae digital data files corresponding to MCP2517FD transactions.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	cs := flag.String("f-cs", "digital_0.bin", "Input filename: SPI CS data.")
	mosi := flag.String("f-mosi", "digital_1.bin", "Input filename: SPI SDI (host to controller) data.")
	clk := flag.String("f-clk", "digital_2.bin", "Input filename: SPI SCK data.")
	miso := flag.String("f-miso", "digital_3.bin", "Input filename: SPI SDO (controller to host) data. Empty omits read data.")
	output := flag.String("o-cmd", "-", "Output filename of decoded register operations, - for stdout.")
	timingsOutput := flag.String("o-time", "", "Output timing data to a file corresponding to output command history line-by-line.")
	omitRead := flag.Bool("omit-read", false, "Omit read operations in output.")
	omitWrite := flag.Bool("omit-write", false, "Omit write operations in output.")
	omitReset := flag.Bool("omit-reset", false, "Omit reset commands in output.")
	keepRepeats := flag.Bool("keep-repeats", false, "Do not collapse consecutive identical operations.")
	flag.Parse()

	dec := Decoder{
		OmitRead:    *omitRead,
		OmitWrite:   *omitWrite,
		OmitReset:   *omitReset,
		KeepRepeats: *keepRepeats,
		logger:      logger,
	}
	if dec.OmitRead && dec.OmitWrite {
		fatal(logger, "cannot omit both read and write operations")
	}
	start := time.Now()
	var out io.Writer = os.Stdout
	if *output != "-" {
		fp, err := os.Create(*output)
		if err != nil {
			fatal(logger, err.Error())
		}
		defer fp.Close()
		out = fp
	}
	if *timingsOutput != "" {
		fp, err := os.Create(*timingsOutput)
		if err != nil {
			fatal(logger, err.Error())
		}
		defer fp.Close()
		dec.Timings = fp
	}
	txs, err := scanFiles(*clk, *cs, *mosi, *miso)
	if err != nil {
		fatal(logger, err.Error())
	}
	if err := dec.Write(out, dec.Process(txs)); err != nil {
		fatal(logger, err.Error())
	}
	logger.Info("finished", slog.Int("transactions", len(txs)), slog.Duration("elapsed", time.Since(start)))
}

func fatal(logger *slog.Logger, msg string) {
	logger.Error(msg)
	os.Exit(1)
}

func scanFiles(fclk, fcs, fmosi, fmiso string) ([]analyzers.TxSPI, error) {
	clk, err := opendigital(fclk)
	if err != nil {
		return nil, err
	}
	cs, err := opendigital(fcs)
	if err != nil {
		return nil, err
	}
	mosi, err := opendigital(fmosi)
	if err != nil {
		return nil, err
	}
	miso := mosi
	if fmiso != "" {
		miso, err = opendigital(fmiso)
		if err != nil {
			return nil, err
		}
	}
	spi := analyzers.SPI{}
	txs, _ := spi.Scan(clk, cs, mosi, miso)
	if fmiso == "" {
		for i := range txs {
			txs[i].SDI = nil
		}
	}
	return txs, nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return saleae.ReadDigitalFile(fp)
}

// mcptx is a run of identical consecutive frames.
type mcptx struct {
	Num   int
	Frame mcp2517fd.Frame
	Err   error
	Start float64
}

func sameFrame(a, b mcp2517fd.Frame) bool {
	return a.Instr == b.Instr && a.Addr == b.Addr && bytes.Equal(a.Data, b.Data)
}

// Process decodes transactions and collapses consecutive repeats, which
// are typical of register polls.
func (dec *Decoder) Process(txs []analyzers.TxSPI) (out []mcptx) {
	for i := 0; i < len(txs); i++ {
		f, err := mcp2517fd.DecodeFrame(txs[i].SDO, txs[i].SDI)
		tx := mcptx{Num: 1, Frame: f, Err: err, Start: txs[i].StartTime()}
		for j := i + 1; err == nil && !dec.KeepRepeats && j < len(txs); j++ {
			next, nexterr := mcp2517fd.DecodeFrame(txs[j].SDO, txs[j].SDI)
			if nexterr != nil || !sameFrame(f, next) {
				break
			}
			tx.Num++
			i = j
		}
		if err != nil && dec.logger != nil {
			dec.logger.Warn("undecodable transaction", slog.Int("idx", i), slog.Int("len", len(txs[i].SDO)))
		}
		out = append(out, tx)
	}
	return out
}

func (dec *Decoder) omit(f mcp2517fd.Frame) bool {
	return (dec.OmitRead && f.Instr.IsRead()) ||
		(dec.OmitWrite && f.Instr.IsWrite()) ||
		(dec.OmitReset && f.Instr == mcp2517fd.InstrReset)
}

// Write prints one line per decoded run to w.
func (dec *Decoder) Write(w io.Writer, txs []mcptx) (err error) {
	for _, tx := range txs {
		if tx.Err != nil {
			_, err = fmt.Fprintf(w, "cmd×%2d invalid: %v\n", tx.Num, tx.Err)
		} else if dec.omit(tx.Frame) {
			continue
		} else {
			_, err = fmt.Fprintf(w, "cmd×%2d %s\n", tx.Num, tx.Frame.String())
		}
		if err != nil {
			return err
		}
		if dec.Timings != nil {
			fmt.Fprintf(dec.Timings, "t=%f\tdata=%#x\n", tx.Start, tx.Frame.Data)
		}
	}
	return nil
}
