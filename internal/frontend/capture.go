package frontend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"gps-correlator/internal/ifsample"
	"gps-correlator/internal/mixer"
)

// Stream converts interleaved unsigned 8-bit I/Q bytes into channel
// samples. Only the in-phase byte is used.
type Stream struct {
	r         *bufio.Reader
	threshold int8
	buf       []byte
}

func NewStream(r io.Reader, threshold int8) *Stream {
	return &Stream{r: bufio.NewReaderSize(r, 1<<16), threshold: threshold}
}

func (s *Stream) ReadSamples(dst []mixer.Sample) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	need := 2 * len(dst)
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]
	n, err := io.ReadFull(s.r, b)
	pairs := n / 2
	for i := 0; i < pairs; i++ {
		dst[i] = ifsample.Quantize(int8(int(b[2*i])-128), s.threshold)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		if pairs > 0 {
			return pairs, nil
		}
		err = io.EOF
	}
	return pairs, err
}

// Capture runs rtl_sdr and streams its output.
type Capture struct {
	*Stream

	cmd  *exec.Cmd
	once sync.Once
	err  error
}

var startCommand = func(ctx context.Context, name string, args ...string) (*exec.Cmd, io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return cmd, out, nil
}

// StartCapture launches rtl_sdr with CaptureArgs(p). The process stops when
// ctx is cancelled or Close is called.
func StartCapture(ctx context.Context, p CaptureParams, threshold int8) (*Capture, error) {
	cmd, out, err := startCommand(ctx, "rtl_sdr", CaptureArgs(p)...)
	if err != nil {
		return nil, fmt.Errorf("start rtl_sdr: %w", err)
	}
	return &Capture{Stream: NewStream(out, threshold), cmd: cmd}, nil
}

func (c *Capture) Close() error {
	c.once.Do(func() {
		if c.cmd == nil || c.cmd.Process == nil {
			return
		}
		_ = c.cmd.Process.Kill()
		err := c.cmd.Wait()
		var ee *exec.ExitError
		if err != nil && !errors.As(err, &ee) {
			c.err = err
		}
	})
	return c.err
}
