package mcp2517fd

import (
	"bytes"
	"testing"

	"github.com/soypat/mcp2517fd/sfr"
)

func TestEncodeFrames(t *testing.T) {
	var tests = []struct {
		got  []byte
		want []byte
	}{
		{got: EncodeReset(nil), want: []byte{0x00, 0x00}},
		{got: EncodeRead(nil, sfr.OSC), want: []byte{0x3e, 0x00, 0, 0, 0, 0}},
		{got: EncodeRead(nil, sfr.C1CON), want: []byte{0x30, 0x00, 0, 0, 0, 0}},
		{got: EncodeRead(nil, sfr.FIFOCON(1)), want: []byte{0x30, 0x5c, 0, 0, 0, 0}},
		{got: EncodeWrite(nil, sfr.IOCON, 0x0300_0300), want: []byte{0x2e, 0x04, 0x00, 0x03, 0x00, 0x03}},
		{got: EncodeWrite(nil, sfr.C1TXQCON, 0x1122_3344), want: []byte{0x20, 0x50, 0x44, 0x33, 0x22, 0x11}},
	}
	for i, tt := range tests {
		if !bytes.Equal(tt.got, tt.want) {
			t.Errorf("case %d: got %x, want %x", i, tt.got, tt.want)
		}
	}
}

func TestEncodeAppends(t *testing.T) {
	buf := []byte{0xaa}
	buf = EncodeWrite(buf, sfr.OSC, 1)
	if len(buf) != 1+frameLen || buf[0] != 0xaa {
		t.Fatalf("expected append to existing buffer, got %x", buf)
	}
}

func TestHeaderLayout(t *testing.T) {
	for in := Instruction(0); in < 16; in++ {
		for _, addr := range []sfr.Address{0, 0x001, 0x0ff, 0x100, 0xabc, 0xfff} {
			hdr := cmd_header(in, addr)
			if Instruction(hdr>>12) != in {
				t.Errorf("instruction %d: got %d", in, hdr>>12)
			}
			if sfr.Address(hdr&0xfff) != addr {
				t.Errorf("address %#x: got %#x", addr, hdr&0xfff)
			}
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	const pattern = 0xdead_beef
	n := 0
	for addr := sfr.Address(0); addr <= 0xfff; addr += 4 {
		if !addr.Valid() {
			continue
		}
		n++
		value := pattern ^ uint32(addr)
		w := EncodeWrite(nil, addr, value)
		f, err := DecodeFrame(w, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, ok := f.Word()
		if f.Instr != InstrWrite || f.Addr != addr || !ok || got != value {
			t.Fatalf("write %s: decoded %s", addr, f)
		}

		// Read frame, controller answers on MISO after the header.
		mosi := EncodeRead(nil, addr)
		miso := make([]byte, len(mosi))
		_busOrder.PutUint32(miso[headerLen:], value)
		f, err = DecodeFrame(mosi, miso)
		if err != nil {
			t.Fatal(err)
		}
		got, ok = f.Word()
		if f.Instr != InstrRead || f.Addr != addr || !ok || got != value {
			t.Fatalf("read %s: decoded %s", addr, f)
		}
		got, err = DecodeWord(miso)
		if err != nil || got != value {
			t.Fatalf("DecodeWord %s: got %#x, %v", addr, got, err)
		}
	}
	if n < 100 {
		t.Fatal("too few valid registers", n)
	}
}

func TestDecodeFrameShort(t *testing.T) {
	_, err := DecodeFrame([]byte{0x30}, nil)
	if err == nil {
		t.Fatal("expected error for 1 byte frame")
	}
	f, err := DecodeFrame(EncodeReset(nil), nil)
	if err != nil || f.Instr != InstrReset || f.String() != "reset" {
		t.Fatalf("reset frame: %v %v", f, err)
	}
	_, err = DecodeWord([]byte{0x30, 0, 1})
	if err == nil {
		t.Fatal("expected short frame error")
	}
}

func TestFrameString(t *testing.T) {
	f, _ := DecodeFrame(EncodeWrite(nil, sfr.C1CON, 0x0400_0000), nil)
	const want = "write C1CON=0x04000000"
	if got := f.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
