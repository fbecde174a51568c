package ifsample

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"gps-correlator/internal/mixer"
)

// Writer produces a 2bit sample file.
type Writer struct {
	c      io.Closer
	w      *bufio.Writer
	n      int64
	closed bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create samples %s: %w", path, err)
	}
	w := NewWriter(f)
	w.c = f
	return w, nil
}

func (w *Writer) WriteSamples(s []mixer.Sample) error {
	if w.closed {
		return errors.New("sample writer is closed")
	}
	for _, v := range s {
		if err := w.w.WriteByte(Encode(v)); err != nil {
			return err
		}
	}
	w.n += int64(len(s))
	return nil
}

// Count is the number of samples written so far.
func (w *Writer) Count() int64 { return w.n }

func (w *Writer) Flush() error {
	if w.closed {
		return nil
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.w.Flush()
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
