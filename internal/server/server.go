// Package server exposes the timing pipeline over HTTP: a JSON endpoint for
// one-shot timing resolution, a WebSocket feed for live reading sessions,
// and the usual health and metrics endpoints.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eliasvob/readsync/internal/health"
	"github.com/eliasvob/readsync/internal/observe"
	"github.com/eliasvob/readsync/internal/offset"
	"github.com/eliasvob/readsync/internal/orchestrator"
	"github.com/eliasvob/readsync/pkg/provider/asr"
)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithHealthCheckers registers readiness checks (e.g. the cache backend).
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.health = health.New(checkers...) }
}

// WithMetrics replaces the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPollInterval sets the highlight cadence of WebSocket sessions.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// Server routes readsync's HTTP surface.
type Server struct {
	orch         *orchestrator.Orchestrator
	offsets      offset.Store
	metrics      *observe.Metrics
	health       *health.Handler
	pollInterval time.Duration
}

// New creates a Server around the given orchestrator and offset store.
func New(orch *orchestrator.Orchestrator, offsets offset.Store, opts ...Option) *Server {
	s := &Server{
		orch:    orch,
		offsets: offsets,
		metrics: observe.DefaultMetrics(),
		health:  health.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the full HTTP handler, observability middleware included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/timings", s.handleTimings)
	mux.HandleFunc("GET /v1/sync", s.handleSync)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// errorBody is the JSON error envelope: {"error": {"code", "message"}}.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError emits the JSON error envelope with the given status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeTimingError maps a timing resolution failure onto the wire error
// taxonomy: rate_limited (429 plus Retry-After), payload_too_large (413),
// internal_error (500).
func writeTimingError(w http.ResponseWriter, err error) {
	var perr *asr.Error
	switch asr.CodeOf(err) {
	case asr.CodeRateLimited:
		if errors.As(err, &perr) && perr.RetryAfter > 0 {
			w.Header().Set("Retry-After", retryAfterValue(perr.RetryAfter))
		}
		writeError(w, http.StatusTooManyRequests, string(asr.CodeRateLimited),
			"transcription backend is rate limiting requests")
	case asr.CodePayloadTooLarge:
		writeError(w, http.StatusRequestEntityTooLarge, string(asr.CodePayloadTooLarge),
			"narration audio exceeds the size limit")
	default:
		writeError(w, http.StatusInternalServerError, string(asr.CodeInternal),
			"timing resolution failed")
	}
}

// retryAfterValue formats a Retry-After header as whole seconds, at least 1.
func retryAfterValue(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
