package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/broadcast"
	apperrors "github.com/farhanreizha/yt-live-chat-scraper/internal/errors"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/platform/config"
)

// chatBroadcaster is the part of the fan-out layer the HTTP surface needs.
type chatBroadcaster interface {
	Subscribe(streamID string, conn *websocket.Conn) error
	Unsubscribe(conn *websocket.Conn)
	Status(streamID string) broadcast.StreamStatus
}

// streamResolver turns channel handles into live video ids.
type streamResolver interface {
	LiveVideoID(ctx context.Context, handle string) (string, error)
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	broadcaster chatBroadcaster
	resolver    streamResolver
	limits      *ConnectionLimits
	startTime   time.Time
}

func NewServer(cfg *config.Config, broadcaster chatBroadcaster, resolver streamResolver) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		broadcaster: broadcaster,
		resolver:    resolver,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRate,
			cfg.ConnectionBurst,
		),
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
