// Package ifsample reads and writes IF sample files.
//
// Two formats are understood:
//
//   - "2bit": one byte per sample, bit 1 is the sign (1 = positive) and bit 0
//     is the magnitude (1 = 3, 0 = 1). Upper bits are ignored.
//   - "int8": signed 8-bit real samples, quantized to 2 bits with a magnitude
//     threshold.
package ifsample

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gps-correlator/internal/mixer"
)

type Format int

const (
	Format2Bit Format = iota
	FormatInt8
)

func (f Format) String() string {
	switch f {
	case Format2Bit:
		return "2bit"
	case FormatInt8:
		return "int8"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "2bit":
		return Format2Bit, nil
	case "int8":
		return FormatInt8, nil
	default:
		return 0, fmt.Errorf("unknown sample format %q", s)
	}
}

// DefaultThreshold is the int8 magnitude threshold used when none is set.
const DefaultThreshold = 16

// Decode unpacks one 2bit byte.
func Decode(b byte) mixer.Sample {
	return mixer.Sample{Sign: b >> 1 & 1, Mag: b & 1}
}

// Encode packs a sample into the 2bit byte layout.
func Encode(s mixer.Sample) byte {
	return (s.Sign&1)<<1 | s.Mag&1
}

// Quantize maps a real sample to 2 bits. Zero counts as positive; a magnitude
// strictly above threshold sets the magnitude bit.
func Quantize(v int8, threshold int8) mixer.Sample {
	var s mixer.Sample
	m := int(v)
	if m >= 0 {
		s.Sign = 1
	} else {
		m = -m
	}
	if m > int(threshold) {
		s.Mag = 1
	}
	return s
}

type Options struct {
	Format Format
	// Threshold applies to int8 input; zero selects DefaultThreshold.
	Threshold int8
	// Loop restarts at the beginning of the data when it runs out.
	Loop bool
}

// Reader serves samples from an in-memory or mapped byte slice.
type Reader struct {
	data   []byte
	pos    int
	opts   Options
	close  func() error
	closed bool
}

func NewReader(data []byte, opts Options) *Reader {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Reader{data: data, opts: opts}
}

// Open maps or reads the file at path.
func Open(path string, opts Options) (*Reader, error) {
	data, closeFn, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("open samples %s: %w", path, err)
	}
	r := NewReader(data, opts)
	r.close = closeFn
	return r, nil
}

// Len is the number of samples in the underlying data.
func (r *Reader) Len() int { return len(r.data) }

func (r *Reader) ReadSamples(dst []mixer.Sample) (int, error) {
	if r.closed {
		return 0, errors.New("reader is closed")
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(dst) {
		if r.pos >= len(r.data) {
			if !r.opts.Loop {
				break
			}
			r.pos = 0
		}
		k := min(len(dst)-n, len(r.data)-r.pos)
		src := r.data[r.pos : r.pos+k]
		switch r.opts.Format {
		case FormatInt8:
			for i, b := range src {
				dst[n+i] = Quantize(int8(b), r.opts.Threshold)
			}
		default:
			for i, b := range src {
				dst[n+i] = Decode(b)
			}
		}
		n += k
		r.pos += k
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	closeFn := r.close
	r.data, r.close, r.closed = nil, nil, true
	if closeFn == nil {
		return nil
	}
	return closeFn()
}
