// Package issuer is the HTTP service handing out short lived session
// credentials to voice clients, so the provider key stays on the server.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babelforce/rtvoice-go/credentials"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	config       Config
	logger       *slog.Logger
	echo         *echo.Echo
	minter       Minter
	shutdownOnce sync.Once
	shutdown     chan struct{}
	done         chan struct{}

	issued atomic.Int64
	failed atomic.Int64
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(cfg Config, minter Minter) (*Server, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid issuer config: %w", err)
	}
	if minter == nil {
		minter = NewMinter(cfg)
	}

	s := &Server{
		config:   cfg,
		logger:   slog.Default().With(slog.String("component", "issuer")),
		minter:   minter,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	s.RegisterRoutes(e)
	s.echo = e

	return s, nil
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/credentials", s.Issue)
	e.GET("/healthz", s.Health)
}

// Handler exposes the routes for embedding into another server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Issue handles POST /v1/credentials.
func (s *Server) Issue(c echo.Context) error {
	var req credentials.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.Voice == "" {
		req.Voice = s.config.Voice
	}
	if len(s.config.Voices) > 0 && !slices.Contains(s.config.Voices, req.Voice) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unsupported voice: %q", req.Voice)})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.Timeout)
	defer cancel()

	res, err := s.minter.Mint(ctx, req.Voice)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("failed to issue credential", slog.String("voice", req.Voice), slog.Any("err", err))
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "credential unavailable"})
	}

	s.issued.Add(1)
	s.logger.Info("credential issued", slog.String("voice", req.Voice), slog.Any("provider", s.config.Provider))
	return c.JSON(http.StatusOK, res)
}

// Health handles GET /healthz.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Stats())
}

func (s *Server) Stats() map[string]interface{} {
	return map[string]interface{}{
		"status":   "ok",
		"provider": s.config.Provider,
		"issued":   s.issued.Load(),
		"failed":   s.failed.Load(),
	}
}

// Run serves until ctx is done or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.config.Addr))
		if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	defer s.tearDown()

	select {
	case <-ctx.Done():
		return nil
	case <-s.shutdown:
		return nil
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.shutdownOnce.Do(func() { close(s.shutdown) })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

func (s *Server) tearDown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown http server", slog.Any("err", err))
	}

	s.logger.Info("shut down")
	close(s.done)
}
