// Package service exposes the fetch core over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/illmade-knight/go-gdcache/pkg/request"
	"github.com/rs/zerolog"
)

// Config holds the HTTP surface configuration.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	HTTPPort    string `yaml:"http_port"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:    "info",
		HTTPPort:    ":8080",
		ServiceName: "gdcache",
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.HTTPPort == "" {
		return &ConfigError{Field: "HTTPPort", Message: "cannot be empty"}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "LogLevel", Message: err.Error()}
	}
	return nil
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Fetcher is the part of the orchestrator the server reads through.
type Fetcher interface {
	Levels(ctx context.Context, req request.LevelsRequest) (*fetch.Result[[]model.PartialLevel], error)
	Level(ctx context.Context, req request.LevelRequest) (*fetch.Result[model.Level], error)
}

// Server serves cached levels over HTTP.
type Server struct {
	Logger     zerolog.Logger
	HTTPPort   string
	fetcher    Fetcher
	httpServer *http.Server
	mux        *http.ServeMux
	actualAddr string
	mu         sync.RWMutex
}

// NewServer creates a server and registers its routes.
func NewServer(cfg *Config, fetcher Fetcher, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("service config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	s := &Server{
		Logger:   logger.Level(level).With().Str("component", "Server").Str("service", cfg.ServiceName).Logger(),
		HTTPPort: cfg.HTTPPort,
		fetcher:  fetcher,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/healthz", HealthzHandler)
	s.mux.HandleFunc("GET /levels", s.handleLevels)
	s.mux.HandleFunc("GET /levels/{id}", s.handleLevel)
	s.httpServer = &http.Server{Addr: cfg.HTTPPort, Handler: s.mux}
	return s, nil
}

// Start initiates the HTTP server in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.HTTPPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.HTTPPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.Logger.Info().Str("address", s.actualAddr).Msg("HTTP server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info().Msg("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("Error during HTTP server shutdown.")
		return err
	}
	s.Logger.Info().Msg("HTTP server stopped.")
	return nil
}

// GetHTTPPort returns the port the server is listening on.
func (s *Server) GetHTTPPort() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, port, err := net.SplitHostPort(s.actualAddr)
	if err != nil {
		return s.HTTPPort
	}
	return ":" + port
}

// Mux returns the underlying ServeMux.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// HealthzHandler responds to health check probes.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
