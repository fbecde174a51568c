package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"gps-correlator/internal/channel"
	"gps-correlator/internal/engine"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record cycle is relative to it again).
// - Data lines are: <cycle>,<ie>,<ip>,<il>,<qe>,<qp>,<ql>,<epoch>,<carrier>,<code>
//   where cycle is the engine cycle of the report and the rest are the
//   latched channel values in decimal.

const numFields = 4 + int(channel.NumIntegrators)

type Record struct {
	// Start marks a START line; the other fields are zero.
	Start bool

	Cycle     uint64
	Accums    [channel.NumIntegrators]int32
	Epoch     uint16
	Carrier   uint32
	CodePhase uint32
}

// FromReport converts an engine report.
func FromReport(r engine.Report) Record {
	return Record{
		Cycle:     r.Cycle,
		Accums:    r.Accums,
		Epoch:     r.Epoch,
		Carrier:   r.Carrier,
		CodePhase: r.CodePhase,
	}
}

// Report converts back to an engine report. Records only hold dump data, so
// NewData is set.
func (r Record) Report() engine.Report {
	return engine.Report{
		Cycle:     r.Cycle,
		NewData:   true,
		Accums:    r.Accums,
		Epoch:     r.Epoch,
		Carrier:   r.Carrier,
		CodePhase: r.CodePhase,
	}
}

func (r Record) Get(i channel.Integrator) int32 { return r.Accums[i] }

func (r Record) line() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(r.Cycle, 10))
	for _, v := range r.Accums {
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(int64(v), 10))
	}
	fmt.Fprintf(&b, ",%d,%d,%d", r.Epoch, r.Carrier, r.CodePhase)
	return b.String()
}

func parseLine(line string) (Record, error) {
	f := strings.Split(line, ",")
	if len(f) != numFields {
		return Record{}, fmt.Errorf("invalid record line (want %d fields, got %d): %q", numFields, len(f), line)
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}

	var r Record
	var err error
	if r.Cycle, err = strconv.ParseUint(f[0], 10, 64); err != nil {
		return Record{}, fmt.Errorf("invalid record cycle %q: %w", f[0], err)
	}
	for i := range r.Accums {
		v, err := strconv.ParseInt(f[1+i], 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("invalid record %s %q: %w", channel.Integrator(i), f[1+i], err)
		}
		r.Accums[i] = int32(v)
	}
	rest := f[1+len(r.Accums):]
	epoch, err := strconv.ParseUint(rest[0], 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("invalid record epoch %q: %w", rest[0], err)
	}
	carrier, err := strconv.ParseUint(rest[1], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid record carrier %q: %w", rest[1], err)
	}
	code, err := strconv.ParseUint(rest[2], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid record code phase %q: %w", rest[2], err)
	}
	r.Epoch, r.Carrier, r.CodePhase = uint16(epoch), uint32(carrier), uint32(code)
	return r, nil
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ExpandPath replaces strftime patterns in path with values for now.
func ExpandPath(path string, now time.Time) (string, error) {
	if !strings.Contains(path, "%") {
		return path, nil
	}
	out, err := strftime.Format(path, now)
	if err != nil {
		return "", fmt.Errorf("record path %q: %w", path, err)
	}
	return out, nil
}

type Writer struct {
	path   string
	f      *os.File
	w      *bufio.Writer
	closed bool
	// OnlyNew skips reports that carry no new dump.
	OnlyNew bool
}

// CreateWriter creates the log at path after strftime expansion. Missing
// parent directories are created.
func CreateWriter(path string, now time.Time) (*Writer, error) {
	p, err := ExpandPath(path, now)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{path: p, f: f, w: bw}, nil
}

// Path is the expanded path of the log.
func (ww *Writer) Path() string { return ww.path }

// Comment writes a '#' line.
func (ww *Writer) Comment(text string) error {
	if ww.closed {
		return errors.New("record writer is closed")
	}
	for _, l := range strings.Split(text, "\n") {
		if _, err := fmt.Fprintf(ww.w, "# %s\n", l); err != nil {
			return err
		}
	}
	return nil
}

func (ww *Writer) WriteRecord(r Record) error {
	if ww.closed {
		return errors.New("record writer is closed")
	}
	if r.Start {
		_, err := ww.w.WriteString("START\n")
		return err
	}
	_, err := ww.w.WriteString(r.line() + "\n")
	return err
}

// Publish writes one engine report.
func (ww *Writer) Publish(r engine.Report) error {
	if ww.OnlyNew && !r.NewData {
		return nil
	}
	return ww.WriteRecord(FromReport(r))
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
