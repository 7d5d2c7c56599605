package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleStreamStatus reports whether a stream is being ingested and how
// many clients are subscribed to it.
func (s *Server) handleStreamStatus(c echo.Context) error {
	streamID := c.Param("stream")
	status := s.broadcaster.Status(streamID)

	return c.JSON(http.StatusOK, map[string]any{
		"stream":      streamID,
		"ingesting":   status.Ingesting,
		"subscribers": status.Subscribers,
	})
}
