// Package api wires the HTTP surface: the info lookup, the download stream,
// history, health diagnostics, and the websocket progress feed.
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/fetchbox/fetchbox/internal/api/middleware"
	"github.com/fetchbox/fetchbox/internal/config"
	"github.com/fetchbox/fetchbox/internal/delivery"
	"github.com/fetchbox/fetchbox/internal/history"
	"github.com/fetchbox/fetchbox/internal/pipeline"
	"github.com/fetchbox/fetchbox/internal/progress"
	"github.com/fetchbox/fetchbox/internal/toolbox"
	"github.com/fetchbox/fetchbox/internal/websocket"
)

// Server handles HTTP requests for the FetchBox API.
type Server struct {
	echo   *echo.Echo
	db     *sql.DB
	hub    *websocket.Hub
	logger zerolog.Logger
	cfg    *config.Config

	resolver       *toolbox.Resolver
	runner         *pipeline.Runner
	streamer       *delivery.Streamer
	historyService *history.Service
}

// NewServer creates a new API server instance.
func NewServer(db *sql.DB, hub *websocket.Hub, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		db:     db,
		hub:    hub,
		logger: logger,
		cfg:    cfg,
	}

	s.resolver = toolbox.NewResolver(toolbox.Config{
		Dir:            cfg.Tools.Dir,
		ExtractorName:  cfg.Tools.Extractor,
		TranscoderName: cfg.Tools.Transcoder,
	}, logger)

	s.runner = pipeline.NewRunner(pipeline.Config{
		Dir:           cfg.Downloads.Dir,
		MaxConcurrent: cfg.Downloads.MaxConcurrent,
		AudioBitrate:  cfg.Downloads.AudioBitrate,
	}, s.resolver, logger)

	s.streamer = delivery.NewStreamer(logger)
	s.streamer.SetProgress(progress.NewManager(hub, logger))
	s.historyService = history.NewService(db, logger)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(middleware.CORS(s.cfg.Server.AllowedOrigins))
	s.echo.Use(middleware.SecurityHeaders())

	s.echo.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// The download stream is already-compressed media with an exact
			// content length; websocket upgrades must not be wrapped either.
			return c.Path() == "/api/download" ||
				c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/status", s.getStatus)
	api.GET("/health", s.getHealth)
	api.GET("/info", s.getInfo)
	api.GET("/download", s.getDownload)

	historyHandlers := history.NewHandlers(s.historyService)
	historyHandlers.RegisterRoutes(api.Group("/history"))

	s.echo.GET("/ws", s.hub.HandleWebSocket)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance (for serving static files).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// History returns the history service, shared with in-process trackers.
func (s *Server) History() *history.Service {
	return s.historyService
}

// getStatus is the liveness route.
func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":  true,
		"msg": "fetchbox server is alive",
	})
}
