package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/silo"
)

// Config configures the HTTP server.
type Config struct {
	Addr string
	// Mode is the gin mode: "debug", "release" or "test".
	Mode           string
	PProf          bool
	ExposeMetrics  bool
	PrintAccessLog bool
	// MaxBodyBytes bounds the size of query bodies. Zero disables the limit.
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// ArrowBatchSize is the number of rows per Arrow record batch.
	ArrowBatchSize int
	// SectionLength is the genome section length of detailed info.
	SectionLength int
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8081",
		Mode:            gin.ReleaseMode,
		PrintAccessLog:  true,
		MaxBodyBytes:    1 << 20,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server exposes a database over HTTP.
type Server struct {
	db       *silo.DB
	cfg      Config
	logger   *silo.Logger
	metrics  *PrometheusCollector
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for access logs and internal errors.
func WithLogger(l *silo.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records request metrics on pc and serves g on /metrics when
// Config.ExposeMetrics is set.
func WithMetrics(pc *PrometheusCollector, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = pc
		s.gatherer = g
	}
}

// New creates a server for db.
func New(db *silo.DB, cfg Config, opts ...Option) *Server {
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	s := &Server{
		db:       db,
		cfg:      cfg,
		logger:   silo.NoopLogger(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(s.cfg.Mode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(s.recovery(), requestID())
	if s.cfg.PrintAccessLog {
		r.Use(s.accessLog())
	}
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}

	if s.cfg.PProf {
		pprof.Register(r, "/debug/pprof")
	}
	if s.cfg.ExposeMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/query", s.handleQuery)
	r.GET("/info", s.handleInfo)
	r.GET("/lineageDefinition/:column", s.handleLineageDefinition)
	r.GET("/health", s.handleHealth)

	r.NoRoute(s.handleNotFound)
	r.NoMethod(s.handleMethodNotAllowed)
	return r
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.InfoContext(ctx, "http server stopped")
	return nil
}
