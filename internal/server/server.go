package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/udpreplay/internal/config"
	apperrors "github.com/zsiec/udpreplay/internal/errors"
	"github.com/zsiec/udpreplay/internal/replay"
)

// StatusSource exposes the live state of a replay run.
type StatusSource interface {
	Snapshot() replay.Stats
	Running() bool
}

// Server serves Prometheus metrics and run status over plain HTTP.
type Server struct {
	config       *config.MetricsConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Entry
	errorHandler *apperrors.ErrorHandler
	status       StatusSource
	started      time.Time

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server instance. status may be nil until a run starts.
func New(cfg *config.MetricsConfig, log *logrus.Entry, status StatusSource) *Server {
	log = log.WithField("component", "server")
	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
		status:       status,
		started:      time.Now(),
	}
	s.setupRoutes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.ListenAddr, strconv.Itoa(s.config.Port))
}

// Start binds the listen address and serves in the background. It returns
// once the socket is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"addr": ln.Addr().String(),
		"path": s.config.Path,
	}).Info("Starting metrics server")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Metrics server error")
		}
	}()
	return nil
}

// ListenAddr returns the bound address, or "" before Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("Shutting down metrics server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)

	s.router.Handle(s.config.Path, promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// Router returns the router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}
