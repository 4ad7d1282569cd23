// Package server exposes the monitor over HTTP: a health probe, the latest
// reading snapshot and the websocket subscriber feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mjasion/balena-home/heatexchanger/monitor"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// StatusSource is the monitor state the server reports on
type StatusSource interface {
	State() monitor.State
	Latest() (monitor.Cycle, bool)
	Interval() time.Duration
}

// Feed serves websocket subscribers
type Feed interface {
	http.Handler
	Subscribers() int
}

// Sizer reports the number of samples waiting for remote write
type Sizer interface {
	Size() int
}

// Options configure a Server. Feed and Buffer are optional.
type Options struct {
	Port    int
	Monitor StatusSource
	Feed    Feed
	Buffer  Sizer
	Now     func() time.Time
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Status          string     `json:"status"`
	State           string     `json:"state"`
	LastCycle       *time.Time `json:"lastCycle,omitempty"`
	BufferedSamples int        `json:"bufferedSamples"`
	Subscribers     int        `json:"subscribers"`
}

// ReadingsResponse is the /readings response body
type ReadingsResponse struct {
	Timestamp        time.Time          `json:"timestamp"`
	Temperatures     map[string]float64 `json:"temperatures"`
	Efficiency       *float64           `json:"efficiency,omitempty"`
	EfficiencyReason string             `json:"efficiencyReason,omitempty"`
}

// Server is the HTTP surface of the service
type Server struct {
	monitor    StatusSource
	feed       Feed
	buffer     Sizer
	now        func() time.Time
	httpServer *http.Server
	logger     *zap.Logger
}

// New creates a server listening on opts.Port once started
func New(opts Options, logger *zap.Logger) *Server {
	s := &Server{
		monitor: opts.Monitor,
		feed:    opts.Feed,
		buffer:  opts.Buffer,
		now:     opts.Now,
		logger:  logger,
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with recovery and CORS middleware
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/health", otelhttp.NewHandler(http.HandlerFunc(s.handleHealth), "GET /health")).Methods(http.MethodGet)
	r.Handle("/readings", otelhttp.NewHandler(http.HandlerFunc(s.handleReadings), "GET /readings")).Methods(http.MethodGet)
	if s.feed != nil {
		r.Handle("/ws", s.feed).Methods(http.MethodGet)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.monitor.State()
	status := HealthStatus{
		Status: "healthy",
		State:  state.String(),
	}
	if s.buffer != nil {
		status.BufferedSamples = s.buffer.Size()
	}
	if s.feed != nil {
		status.Subscribers = s.feed.Subscribers()
	}

	code := http.StatusOK
	if cycle, ok := s.monitor.Latest(); ok {
		ts := cycle.Timestamp
		status.LastCycle = &ts
		if s.now().Sub(ts) > monitor.StaleFactor*s.monitor.Interval() {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	if state == monitor.Stopped {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	cycle, ok := s.monitor.Latest()
	if !ok {
		http.Error(w, "no readings yet", http.StatusNotFound)
		return
	}

	resp := ReadingsResponse{
		Timestamp:    cycle.Timestamp,
		Temperatures: cycle.Readings.Temperatures(),
	}
	if p, ok := cycle.Efficiency.Percent(); ok {
		resp.Efficiency = &p
	} else {
		resp.EfficiencyReason = cycle.Efficiency.Reason()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
