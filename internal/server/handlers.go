package server

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/version"
)

// Status is the body of the status endpoint.
type Status struct {
	Status    string              `json:"status"`
	Version   string              `json:"version"`
	Clients   int                 `json:"clients"`
	Errors    []errors.TaskError  `json:"errors"`
	Tasks     []build.TaskMetrics `json:"tasks,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := Status{
		Status:    "ok",
		Version:   version.GetVersion(),
		Errors:    s.opts.Errors.GetErrors(),
		Timestamp: time.Now().UTC(),
	}
	if len(status.Errors) > 0 {
		status.Status = "error"
	}
	if s.opts.Hub != nil {
		status.Clients = s.opts.Hub.Clients()
	}
	if s.opts.Metrics != nil {
		status.Tasks = s.opts.Metrics.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode status response")
	}
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack keeps websocket upgrades working through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Warn(r.Context(), nil, "Request failed", fields...)
			return
		}
		s.logger.Debug(r.Context(), "Request", fields...)
	})
}
