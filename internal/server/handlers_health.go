package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/platform/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

// handleReadiness reports whether the instance can take new subscriptions.
// There is no external datastore to probe; readiness degrades only when the
// connection capacity is exhausted.
func (s *Server) handleReadiness(c echo.Context) error {
	global := s.limits.Global()
	if global.Current() >= global.Max() {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":      "unhealthy",
			"connections": global.Current(),
			"max":         global.Max(),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ready",
		"connections": global.Current(),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
