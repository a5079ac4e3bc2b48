package filters

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestFlateRoundTrip(t *testing.T) {
	stream := []byte("BT /F1 12 Tf (compressed content) Tj ET")
	got, err := Default().Decode(context.Background(), deflate(t, stream), "FlateDecode")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, stream) {
		t.Fatalf("got %q, want %q", got, stream)
	}
}

func TestASCIIHex(t *testing.T) {
	got, err := Default().Decode(context.Background(), []byte("42 54 20 45 54>"), "ASCIIHexDecode")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "BT ET" {
		t.Fatalf("got %q", got)
	}
}

func TestChainedFilters(t *testing.T) {
	stream := []byte("0 0 100 100 re")
	hexed := make([]byte, 0)
	for _, b := range deflate(t, stream) {
		hexed = append(hexed, "0123456789abcdef"[b>>4], "0123456789abcdef"[b&0xf])
	}
	got, err := Default().Decode(context.Background(), hexed, "ASCIIHexDecode", "FlateDecode")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, stream) {
		t.Fatalf("got %q, want %q", got, stream)
	}
}

func TestUnknownFilter(t *testing.T) {
	if _, err := Default().Decode(context.Background(), nil, "JBIG2Decode"); err == nil {
		t.Fatal("expected error for unregistered filter")
	}
}

func TestSizeLimit(t *testing.T) {
	p := NewPipeline(Limits{MaxDecodedSize: 8}, NewFlateDecoder())
	data := deflate(t, bytes.Repeat([]byte("x"), 1024))
	if _, err := p.Decode(context.Background(), data, "FlateDecode"); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Default().Decode(ctx, []byte("00"), "ASCIIHexDecode"); err == nil {
		t.Fatal("expected context error")
	}
}
