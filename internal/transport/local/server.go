// Package local hosts an ephemeral metered endpoint for demos and
// end-to-end tests: scoped acquisition of a running service with readiness
// polling and guaranteed teardown. It is a stand-in, not a hosting model.
package local

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultReadinessTimeout = 10 * time.Second

// Server is an in-process HTTP host for a sample metered endpoint.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	url    string
	hc     *http.Client
	logger *zap.Logger
}

// NewServer creates the host with its routes mounted.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Get("/", helloHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv:    &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second},
		hc:     &http.Client{Timeout: time.Second},
		logger: logger,
	}
}

// helloHandler is the sample paywalled endpoint: greets the caller by name.
func helloHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "World"
	}
	fmt.Fprintf(w, "Hello %s", name)
}

// Start binds a loopback port, serves in the background and polls readiness
// until the host answers or the context expires. Returns the base URL.
func (s *Server) Start(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("local server: listen: %w", err)
	}
	s.ln = ln
	s.url = "http://" + ln.Addr().String()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Local server stopped", zap.Error(err))
		}
	}()

	if err := s.waitReady(ctx); err != nil {
		_ = s.srv.Close()
		return "", err
	}

	s.logger.Info("Local metered endpoint ready", zap.String("url", s.url))
	return s.url, nil
}

// URL returns the base URL once started.
func (s *Server) URL() string { return s.url }

// Shutdown drains connections and releases the port.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("local server: shutdown: %w", err)
	}
	return nil
}

// waitReady polls the health endpoint until it answers 200.
func (s *Server) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("local server: not ready: %w", ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/healthz", nil)
			if err != nil {
				return fmt.Errorf("local server: %w", err)
			}
			resp, err := s.hc.Do(req)
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}
