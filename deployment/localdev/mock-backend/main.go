package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mock execution backend plus an OpenAI-compatible completions stub for
// local development. Scans advance initializing -> running -> completed on a
// timer.

type scan struct {
	ID        string
	StartedAt time.Time
	Cancelled bool
}

type scanStore struct {
	mu    sync.Mutex
	seq   int
	scans map[string]*scan
}

func (s *scanStore) create() *scan {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sc := &scan{ID: fmt.Sprintf("scan-%d", s.seq), StartedAt: time.Now()}
	s.scans[sc.ID] = sc
	return sc
}

func (s *scanStore) get(id string) (*scan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	return sc, ok
}

func main() {
	store := &scanStore{scans: make(map[string]*scan)}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/scan/execute", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req struct {
			Code      string `json:"code"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			writeJSON(w, map[string]any{"success": false, "error": "code is required"})
			return
		}
		sc := store.create()
		writeJSON(w, map[string]any{"success": true, "scan_id": sc.ID})
	})

	mux.HandleFunc("/api/scan/status/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/scan/status/")
		sc, ok := store.get(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if sc.Cancelled {
			writeJSON(w, map[string]any{"status": "error", "progress_percent": 0, "error": "scan cancelled"})
			return
		}
		elapsed := time.Since(sc.StartedAt)
		switch {
		case elapsed < 2*time.Second:
			writeJSON(w, map[string]any{"status": "initializing", "progress_percent": 0, "message": "loading daily candles"})
		case elapsed < 8*time.Second:
			progress := 100 * float64(elapsed-2*time.Second) / float64(6*time.Second)
			writeJSON(w, map[string]any{"status": "running", "progress_percent": progress, "message": "evaluating candidates"})
		default:
			writeJSON(w, map[string]any{
				"status":           "completed",
				"progress_percent": 100,
				"total_found":      2,
				"results": []map[string]any{
					{"symbol": "ABCD", "date": "2024-01-16", "close": 12.40, "volume": 2_400_000, "gap_pct": 4.2 + rand.Float64()},
					{"symbol": "WXYZ", "date": "2024-01-16", "close": 7.85, "volume": 1_100_000, "gap_pct": 3.1 + rand.Float64()},
				},
			})
		}
	})

	mux.HandleFunc("/api/scan/cancel/", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/scan/cancel/")
		sc, ok := store.get(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		sc.Cancelled = true
		writeJSON(w, map[string]any{"success": true})
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		content := "Here is the scanner:\n```python\n" +
			"# gap and go\ngap_min = 2.0\nvolume_min = 500000\n\n" +
			"def scan(daily):\n    candidates = daily.filter(\"volume >= volume_min\")\n" +
			"    candidates.eval(\"gap_pct >= gap_min\")\n    return candidates\n" +
			"```\n"
		writeJSON(w, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	})

	logger := log.New(log.Writer(), "backend-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8765",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8765")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
