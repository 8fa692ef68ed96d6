// Package api provides the HTTP server and handlers.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/chat"
	"github.com/lanhub/lanhub/internal/huberr"
	"github.com/lanhub/lanhub/internal/hubfs"
	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/metrics"
	"github.com/lanhub/lanhub/internal/presence"
	"github.com/lanhub/lanhub/internal/scan"
)

// Server is the HTTP server binding the file store, presence registry and
// chat broadcaster behind the transfer endpoints and real-time channel.
type Server struct {
	store         *hubfs.Store
	registry      *presence.Registry
	chat          *chat.Broadcaster
	scanner       *scan.Scanner
	maxUploadSize int64
}

// NewServer creates a new server.
func NewServer(store *hubfs.Store, registry *presence.Registry, broadcaster *chat.Broadcaster, scanner *scan.Scanner, maxUploadSize int64) *Server {
	return &Server{
		store:         store,
		registry:      registry,
		chat:          broadcaster,
		scanner:       scanner,
		maxUploadSize: maxUploadSize,
	}
}

// Routes builds the full handler chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)
	mux.HandleFunc("GET /files", s.handleFiles)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("GET /peers", s.handlePeers)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)

	return recoverMiddleware(logging.Middleware(metricsMiddleware(mux)))
}

// recoverMiddleware converts handler panics into 500 responses so a bad
// request never takes down the serving task.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError,
					map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		// Label downloads by endpoint, not by file name, to keep the
		// metric cardinality bounded.
		path := r.URL.Path
		if strings.HasPrefix(path, "/download/") {
			path = "/download"
		}
		metrics.RecordRequest(r.Method, path, rw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response", zap.Error(err))
	}
}

// writeError maps error kinds to HTTP responses carrying a textual message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, huberr.ErrNotFound):
		status = http.StatusNotFound
	case huberr.IsValidation(err):
		status = http.StatusBadRequest
	case huberr.IsTransfer(err):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
