package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-logfmt/logfmt"
)

// LogEntry is one logfmt line as written by the process logger. Lines that
// are not logfmt keep their text in Msg.
type LogEntry struct {
	Time   string            `json:"time,omitempty"`
	Level  string            `json:"level,omitempty"`
	Msg    string            `json:"msg"`
	Fields map[string]string `json:"fields,omitempty"`

	raw string
	lvl log.Level
}

func parseLogLine(line string) LogEntry {
	e := LogEntry{Msg: line, raw: line, lvl: log.InfoLevel}
	d := logfmt.NewDecoder(strings.NewReader(line))
	if !d.ScanRecord() {
		return e
	}
	var msg string
	var haveMsg bool
	fields := map[string]string{}
	for d.ScanKeyval() {
		k, v := string(d.Key()), string(d.Value())
		switch k {
		case log.TimestampKey:
			e.Time = v
		case log.LevelKey:
			e.Level = v
		case log.MessageKey:
			msg, haveMsg = v, true
		default:
			fields[k] = v
		}
	}
	if d.Err() != nil || !haveMsg {
		return LogEntry{Msg: line, raw: line, lvl: log.InfoLevel}
	}
	e.Msg = msg
	if len(fields) > 0 {
		e.Fields = fields
	}
	if lvl, err := log.ParseLevel(e.Level); err == nil {
		e.lvl = lvl
	}
	return e
}

// LogBuffer keeps the most recent log lines for /api/logs. It is an
// io.Writer meant to sit behind the logger built by internal/logging.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	entries []LogEntry
	pending []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines}
}

// Write splits p into lines. A trailing fragment is held until its newline
// arrives.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := append(b.pending, p...)
	for {
		line, after, found := bytes.Cut(rest, []byte{'\n'})
		if !found {
			break
		}
		b.add(string(bytes.TrimRight(line, "\r")))
		rest = after
	}
	b.pending = append([]byte(nil), rest...)
	return len(p), nil
}

func (b *LogBuffer) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	b.entries = append(b.entries, parseLogLine(line))
	if over := len(b.entries) - b.max; over > 0 {
		b.entries = b.entries[over:]
		b.dropped += uint64(over)
	}
}

// Entries returns up to tail of the newest entries at or above floor.
func (b *LogBuffer) Entries(tail int, floor log.Level) (entries []LogEntry, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.entries) - 1; i >= 0 && len(entries) < tail; i-- {
		if b.entries[i].lvl >= floor {
			entries = append(entries, b.entries[i])
		}
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, b.dropped
}

// Snapshot returns the raw text of the newest tail lines.
func (b *LogBuffer) Snapshot(tail int) (lines []string, dropped uint64) {
	entries, dropped := b.Entries(tail, log.DebugLevel)
	for _, e := range entries {
		lines = append(lines, e.raw)
	}
	return lines, dropped
}

type LogsResponse struct {
	NowUTC  string     `json:"now_utc"`
	Dropped uint64     `json:"dropped"`
	Entries []LogEntry `json:"entries"`
}

// Handler serves GET /api/logs. Query parameters: tail (1..5000, default
// 200), level (minimum level) and format=text for the raw lines.
func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()

		tail := 200
		if s := strings.TrimSpace(q.Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			tail = v
		}
		floor := log.DebugLevel
		if s := strings.TrimSpace(q.Get("level")); s != "" {
			lvl, err := log.ParseLevel(strings.ToLower(s))
			if err != nil {
				http.Error(w, fmt.Sprintf("unknown level %q", s), http.StatusBadRequest)
				return
			}
			floor = lvl
		}

		entries, dropped := b.Entries(tail, floor)
		w.Header().Set("Cache-Control", "no-store")

		if strings.EqualFold(q.Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if dropped > 0 {
				fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			for _, e := range entries {
				fmt.Fprintln(w, e.raw)
			}
			return
		}

		if entries == nil {
			entries = []LogEntry{}
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Dropped: dropped,
			Entries: entries,
		})
	})
}
