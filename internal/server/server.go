package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kahosan/mosdash/internal/aggregator"
	"github.com/kahosan/mosdash/internal/control"
	"github.com/kahosan/mosdash/internal/hub"
	"github.com/kahosan/mosdash/internal/store"
)

// Options wires the backend dependencies. Hub and Aggregator are optional;
// without them the live stream and stats endpoints answer 503.
type Options struct {
	Port       int
	LogPath    string
	StrictLog  bool
	Store      *store.Store
	Control    *control.Controller
	Hub        *hub.Hub
	Aggregator *aggregator.Aggregator
	Logger     zerolog.Logger
}

// Server holds the Gin engine and dependencies of the backend.
type Server struct {
	engine     *gin.Engine
	store      *store.Store
	control    *control.Controller
	hub        *hub.Hub
	aggregator *aggregator.Aggregator
	logPath    string
	strictLog  bool
	port       int
	logger     zerolog.Logger
}

// New creates the backend HTTP server.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	logger := opts.Logger.With().Str("component", "server").Logger()
	engine.Use(requestLogger(logger), gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:     engine,
		store:      opts.Store,
		control:    opts.Control,
		hub:        opts.Hub,
		aggregator: opts.Aggregator,
		logPath:    opts.LogPath,
		strictLog:  opts.StrictLog,
		port:       opts.Port,
		logger:     logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	for _, d := range []store.Dir{store.DirConfig, store.DirRule} {
		s.engine.GET("/"+string(d), s.listFiles(d))
		s.engine.GET("/"+string(d)+"/:file", s.readFile(d))
		s.engine.POST("/"+string(d)+"/:file", s.writeFile(d))
	}

	s.engine.GET("/log", s.handleLog)
	s.engine.GET("/log/stream", s.handleWebSocket)

	// GET is kept for clients of the first release.
	for _, a := range control.Actions {
		s.engine.GET("/"+string(a), s.runAction(a))
		s.engine.POST("/"+string(a), s.runAction(a))
	}

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/api/stats", s.handleStats)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
