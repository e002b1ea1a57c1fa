// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

/*
Package server implements the HTTP metrics endpoint, serving the metrics
gathered from a Prometheus registry in text exposition format at “/metrics”.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thediveo/lxkns/log"
)

// MetricsPath is the URL path of the metrics endpoint.
const MetricsPath = "/metrics"

// DefaultShutdownTimeout is the time granted to in-flight requests when
// shutting down the server.
const DefaultShutdownTimeout = 5 * time.Second

// Server serves the metrics endpoint.
type Server struct {
	listener        net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewOption represents options to New when creating a new metrics server.
type NewOption func(*Server)

// WithShutdownTimeout sets the time granted to in-flight requests when
// shutting down. Zero or negative durations are ignored.
func WithShutdownTimeout(d time.Duration) NewOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New returns a metrics Server for the specified gatherer, already listening
// on the specified address, such as “0.0.0.0:8000”. It returns an error if
// the address cannot be bound to.
func New(addr string, gatherer prometheus.Gatherer, opts ...NewOption) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      errorLogger{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	s := &Server{
		listener: listener,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve serves metrics requests until the passed context gets cancelled, then
// gracefully shuts down. Serve must be called only once.
func (s *Server) Serve(ctx context.Context) error {
	log.Infof("serving metrics at http://%s%s", s.listener.Addr(), MetricsPath)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(s.listener)
	}()
	select {
	case err := <-serveErr:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(shutdownCtx)
	if serr := <-serveErr; serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		log.Errorf("metrics server failed: %s", serr.Error())
	}
	if err != nil {
		return fmt.Errorf("cannot shut down metrics server: %w", err)
	}
	log.Infof("metrics server stopped")
	return nil
}

// errorLogger passes the errors of the promhttp handler on to our logging.
type errorLogger struct{}

func (errorLogger) Println(v ...interface{}) {
	log.Errorf("metrics endpoint: %s", fmt.Sprint(v...))
}
