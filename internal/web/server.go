package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"
)

// Handlers groups the optional parts of the HTTP surface. Nil fields are
// left unrouted.
type Handlers struct {
	Logs    *LogBuffer
	Reports *ReportBroadcaster
	Control Controller
	Metrics http.Handler
}

func Handler(status *Status, h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	if h.Control != nil {
		mux.Handle("/api/control", ControlHandler(h.Control))
	}
	if h.Reports != nil {
		mux.Handle("/api/reports", h.Reports.Handler())
	}
	if h.Logs != nil {
		mux.Handle("/api/logs", h.Logs.Handler())
	}
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics)
	}
	mux.Handle("/api/about", AboutHandler(status))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>GPS correlator</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>GPS correlator</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a> and <a href=\"/api/reports\">/api/reports</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>run_id=%s\nprn=%d\ninput=%s\nuptime_sec=%d",
			html.EscapeString(snap.Info.RunID), snap.Info.PRN, html.EscapeString(snap.Info.Input), snap.UptimeSec)
		if e := snap.Engine; e != nil {
			_, _ = fmt.Fprintf(w, "\ncycle=%d\ndumps=%d\nreports=%d", e.Cycle, e.Dumps, e.Reports)
			if e.HasLast {
				_, _ = fmt.Fprintf(w, "\naccums=%v\nepoch=%d", e.Last.Accums, e.Last.Epoch)
			}
		}
		if t := snap.Tracking; t != nil {
			_, _ = fmt.Fprintf(w, "\ncarrier_hz=%.3f\ncode_hz=%.3f\nphase_locked=%t", t.CarrierHz, t.CodeHz, t.PhaseLocked)
		}
		_, _ = fmt.Fprintf(w, "</pre></body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
