// Package filters decodes the stream filters a content stream may arrive
// wrapped in. The engine performs no document I/O; the document-access
// collaborator hands over page bytes that may still be deflated, and this
// pipeline inflates them before tokenization.
package filters

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Decoder reverses one named stream filter.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte) ([]byte, error)
}

// Limits bounds decode work against hostile streams.
type Limits struct {
	// MaxDecodedSize caps the inflated size; zero means unlimited.
	MaxDecodedSize int64
}

// Pipeline applies a chain of named filters in order.
type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline builds a pipeline over the given decoders.
func NewPipeline(limits Limits, decoders ...Decoder) *Pipeline {
	m := make(map[string]Decoder, len(decoders))
	for _, d := range decoders {
		m[d.Name()] = d
	}
	return &Pipeline{decoders: m, limits: limits}
}

// Default returns a pipeline with the filters page streams actually use.
func Default() *Pipeline {
	return NewPipeline(Limits{MaxDecodedSize: 64 << 20}, NewFlateDecoder(), NewASCIIHexDecoder())
}

// Decode runs input through filterNames in order.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames ...string) ([]byte, error) {
	data := input
	for _, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, ok := p.decoders[name]
		if !ok {
			return nil, errors.Errorf("filters: unknown filter %q", name)
		}
		out, err := dec.Decode(ctx, data)
		if err != nil {
			return nil, errors.Wrapf(err, "filters: %s", name)
		}
		if p.limits.MaxDecodedSize > 0 && int64(len(out)) > p.limits.MaxDecodedSize {
			return nil, errors.Errorf("filters: %s output exceeds %d bytes", name, p.limits.MaxDecodedSize)
		}
		data = out
	}
	return data, nil
}

type flateDecoder struct{}

// NewFlateDecoder implements FlateDecode. PDF wraps the deflate stream in
// a zlib envelope, but files written by broken producers ship the raw
// deflate bytes, so that is tried second.
func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(ctx context.Context, in []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(in)); err == nil {
		defer r.Close()
		out, err := io.ReadAll(r)
		if err == nil {
			return out, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type asciiHexDecoder struct{}

// NewASCIIHexDecoder implements ASCIIHexDecode.
func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte) ([]byte, error) {
	// Strip whitespace and the optional '>' terminator.
	trimmed := make([]byte, 0, len(in))
	for _, c := range in {
		switch c {
		case ' ', '\t', '\r', '\n', '\f', 0x00:
			continue
		case '>':
			goto done
		default:
			trimmed = append(trimmed, c)
		}
	}
done:
	if len(trimmed)%2 == 1 {
		trimmed = append(trimmed, '0')
	}
	out := make([]byte, hex.DecodedLen(len(trimmed)))
	n, err := hex.Decode(out, trimmed)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
