// Package trace reads and writes the per-sample verification files: the
// prompt code as one 0/1 value per line, and the carrier replica as one
// "I Q" integer pair per line.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// IQ is one carrier replica sample.
type IQ struct {
	I, Q int
}

type PromptWriter struct {
	c io.Closer
	w *bufio.Writer
}

func NewPromptWriter(w io.Writer) *PromptWriter {
	return &PromptWriter{w: bufio.NewWriter(w)}
}

func CreatePrompt(path string) (*PromptWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create prompt trace: %w", err)
	}
	pw := NewPromptWriter(f)
	pw.c = f
	return pw, nil
}

func (pw *PromptWriter) Write(bit uint8) error {
	_, err := pw.w.WriteString(strconv.Itoa(int(bit & 1)))
	if err != nil {
		return err
	}
	return pw.w.WriteByte('\n')
}

func (pw *PromptWriter) Close() error {
	return closeBoth(pw.w, pw.c)
}

type CarrierWriter struct {
	c io.Closer
	w *bufio.Writer
}

func NewCarrierWriter(w io.Writer) *CarrierWriter {
	return &CarrierWriter{w: bufio.NewWriter(w)}
}

func CreateCarrier(path string) (*CarrierWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create carrier trace: %w", err)
	}
	cw := NewCarrierWriter(f)
	cw.c = f
	return cw, nil
}

func (cw *CarrierWriter) Write(s IQ) error {
	_, err := fmt.Fprintf(cw.w, "%d %d\n", s.I, s.Q)
	return err
}

func (cw *CarrierWriter) Close() error {
	return closeBoth(cw.w, cw.c)
}

func closeBoth(w *bufio.Writer, c io.Closer) error {
	err := w.Flush()
	if c != nil {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadPrompt reads a prompt code file. Blank lines are skipped.
func ReadPrompt(r io.Reader) ([]uint8, error) {
	var out []uint8
	err := eachLine(r, func(n int, line string) error {
		switch line {
		case "0":
			out = append(out, 0)
		case "1":
			out = append(out, 1)
		default:
			return fmt.Errorf("line %d: invalid prompt sample %q", n, line)
		}
		return nil
	})
	return out, err
}

// ReadCarrier reads a carrier I/Q file. Blank lines are skipped.
func ReadCarrier(r io.Reader) ([]IQ, error) {
	var out []IQ
	err := eachLine(r, func(n int, line string) error {
		f := strings.Fields(line)
		if len(f) != 2 {
			return fmt.Errorf("line %d: expected 2 fields, got %d", n, len(f))
		}
		i, err := strconv.Atoi(f[0])
		if err != nil {
			return fmt.Errorf("line %d: invalid I: %w", n, err)
		}
		q, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("line %d: invalid Q: %w", n, err)
		}
		out = append(out, IQ{I: i, Q: q})
		return nil
	})
	return out, err
}

func eachLine(r io.Reader, fn func(n int, line string) error) error {
	if r == nil {
		return errors.New("reader is nil")
	}
	s := bufio.NewScanner(r)
	n := 0
	for s.Scan() {
		n++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return s.Err()
}
