// Package health serves the liveness and metrics endpoints of a peer process.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger checks the connection to the session medium. The Redis transport
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides HTTP health check and metrics endpoints.
type Server struct {
	session string
	pinger  Pinger
	metrics http.Handler
	logger  *log.Logger

	server *http.Server
}

// NewServer creates a health server. pinger and metrics may be nil: without a
// pinger the broker is not checked, without metrics /metrics is not mounted.
func NewServer(session string, pinger Pinger, metrics http.Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		session: session,
		pinger:  pinger,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the router serving /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthCheckHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start listens on addr and serves in the background. It returns once the
// listener is bound, so a port clash is reported to the caller.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("[Health] Server error: %v", err)
		}
	}()

	s.logger.Printf("[Health] Listening on %s", ln.Addr())
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// healthCheckHandler returns 200 while the broker answers, 503 otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:  "healthy",
		Session: s.session,
	}
	code := http.StatusOK

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.pinger.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Redis = "disconnected"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			response.Redis = "connected"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// Response is the JSON body of /healthz.
type Response struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Redis   string `json:"redis,omitempty"`
	Error   string `json:"error,omitempty"`
}
