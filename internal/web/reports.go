package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"gps-correlator/internal/engine"
)

// ReportBroadcaster fans out engine reports to any listeners (e.g. SSE).
// It keeps the most recent report so new subscribers get an immediate sample.
type ReportBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan engine.Report
	nextID   int
	last     engine.Report
	haveLast bool
}

func NewReportBroadcaster() *ReportBroadcaster {
	return &ReportBroadcaster{subs: make(map[int]chan engine.Report)}
}

func (b *ReportBroadcaster) Subscribe(buffer int) (int, <-chan engine.Report) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan engine.Report, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.haveLast {
		ch <- b.last
	}
	b.mu.Unlock()
	return id, ch
}

func (b *ReportBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *ReportBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish never blocks; slow subscribers miss reports.
func (b *ReportBroadcaster) Publish(r engine.Report) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = r
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- r:
		default:
		}
	}
	return nil
}

// Handler streams reports as server-sent events. With ?new=1 only reports
// carrying a fresh dump are sent.
func (b *ReportBroadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		onlyNew := r.URL.Query().Get("new") == "1"

		id, ch := b.Subscribe(32)
		defer b.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case rep, ok := <-ch:
				if !ok {
					return
				}
				if onlyNew && !rep.NewData {
					continue
				}
				bts, err := json.Marshal(rep)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: report\ndata: %s\n\n", bts); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}
