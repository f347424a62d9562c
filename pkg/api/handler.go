// Package api exposes a running tracking engine over local HTTP and
// provides the client the CLI uses to talk to it.
//
// Endpoints:
//
//	GET  /api/stats           current Report
//	POST /api/tracking/start  start tracking, returns the Report
//	POST /api/tracking/pause  pause tracking, returns the Report
//	POST /api/reset           clear all aggregates, returns the Report
//	GET  /api/events          push notifications as server-sent events
//	GET  /api/health          liveness
//
// Failures are answered with {"error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
	"github.com/0xmhha/tab-monitor/pkg/stats"
	"github.com/0xmhha/tab-monitor/pkg/tracker"
)

// DefaultHeartbeat is the keep-alive interval of the event stream.
const DefaultHeartbeat = 30 * time.Second

// Controller is the engine surface served over HTTP. *tracker.Engine
// implements it.
type Controller interface {
	GetStats(ctx context.Context) (stats.Report, error)
	StartTracking(ctx context.Context) error
	PauseTracking(ctx context.Context) error
	ResetData(ctx context.Context) error
	Subscribe() *notify.Subscription
	Unsubscribe(id string)
}

// ErrorResponse is the response body for errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response body of /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Handler provides HTTP endpoints for a Controller.
type Handler struct {
	ctl       Controller
	heartbeat time.Duration
	log       logger.Logger
}

// NewHandler creates a handler. A heartbeat <= 0 uses DefaultHeartbeat.
func NewHandler(ctl Controller, heartbeat time.Duration, log logger.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{
		ctl:       ctl,
		heartbeat: heartbeat,
		log:       logger.ForComponent(log, "api"),
	}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stats", h.Stats)
	mux.HandleFunc("POST /api/tracking/start", h.control(h.ctl.StartTracking))
	mux.HandleFunc("POST /api/tracking/pause", h.control(h.ctl.PauseTracking))
	mux.HandleFunc("POST /api/reset", h.control(h.ctl.ResetData))
	mux.HandleFunc("GET /api/events", h.Events)
	mux.HandleFunc("GET /api/health", h.Health)

	return mux
}

// Stats returns the current report.
// GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.ctl.GetStats(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// control runs a state-changing call and answers with the fresh report.
func (h *Handler) control(op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context()); err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.Stats(w, r)
	}
}

// Events streams push notifications until the client disconnects.
// GET /api/events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming not supported"})
		return
	}

	sub := h.ctl.Subscribe()
	defer h.ctl.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	h.log.Debug("event stream opened", "subscription", sub.ID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("event stream closed", "subscription", sub.ID)
			return

		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()

		case msg, ok := <-sub.C:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("failed to marshal notification",
					"event_type", msg.EventType,
					"error", err)
				continue
			}

			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.EventType, data)
			flusher.Flush()
		}
	}
}

// Health reports that the server is up.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, tracker.ErrEngineUnavailable) || errors.Is(err, tracker.ErrEngineClosed) {
		status = http.StatusServiceUnavailable
	}

	h.log.Warn("engine call failed", "status", status, "error", err)
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode JSON response", "error", err)
	}
}

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	server   *http.Server
	listener net.Listener
	log      logger.Logger
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Addr is the address to listen on, e.g. "127.0.0.1:7878". Port 0
	// picks a free port; see Addr.
	Addr string

	// Controller is the engine to expose.
	Controller Controller

	// ReadTimeout bounds reading a request. Default: 30s.
	ReadTimeout time.Duration

	// Heartbeat is the event stream keep-alive interval.
	Heartbeat time.Duration
}

// NewServer binds the listen address and builds the server.
func NewServer(cfg ServerConfig, log logger.Logger) (*Server, error) {
	if cfg.Controller == nil {
		return nil, ErrMissingController
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	handler := NewHandler(cfg.Controller, cfg.Heartbeat, log)

	// Request contexts end on Shutdown, which closes open event streams.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           handler.Routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: /api/events is long-lived.
		BaseContext: func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)

	return &Server{
		listener: listener,
		log:      logger.ForComponent(log, "api"),
		server:   srv,
	}, nil
}

// Start serves requests. It blocks until Stop and then returns nil.
func (s *Server) Start() error {
	s.log.Info("api server listening", "addr", s.Addr())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}
