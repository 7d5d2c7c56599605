package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/farhanreizha/yt-live-chat-scraper/internal/errors"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/metrics"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/platform/logging"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/resolve"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // overlays and bots connect from arbitrary origins
	},
}

// handleWebSocket subscribes a client to a stream's chat. The :stream
// parameter is either an 11 character video id or a channel handle, which
// gets resolved to the channel's current live stream first.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.WebSocketRejectedConnections.WithLabelValues(string(reason)).Inc()
		if reason == LimitReasonRate {
			return c.String(http.StatusTooManyRequests, "Too many connection attempts")
		}
		return c.String(http.StatusServiceUnavailable, "Connection limit reached")
	}

	released := false
	release := func() {
		if !released {
			released = true
			s.limits.Release(ip)
		}
	}
	defer release()

	streamID, err := s.resolveStreamID(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	connID := logging.NewCorrelationID()
	logger := logging.WithConn(connID).With("stream_id", streamID, "remote_ip", ip)
	logger.Info("WebSocket client connected")

	if err := s.broadcaster.Subscribe(streamID, conn); err != nil {
		logger.Warn("Subscription rejected", "error", err)
		// Rejected subscriptions are notified and closed by the broadcaster,
		// but a timed-out Subscribe returns with the connection untouched and
		// possibly still queued behind the attach. Unsubscribe drops it from
		// that queue so a late attach cannot register a dead connection.
		s.broadcaster.Unsubscribe(conn)
		_ = conn.Close()
		return nil
	}

	// Read pump: inbound frames are ignored, reading only serves to detect
	// the close handshake and pong frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.broadcaster.Unsubscribe(conn)
	release()
	logger.Info("WebSocket client disconnected")

	return nil
}

func (s *Server) resolveStreamID(c echo.Context) (string, error) {
	stream := c.Param("stream")
	if resolve.IsVideoID(stream) {
		return stream, nil
	}

	id, err := s.resolver.LiveVideoID(c.Request().Context(), stream)
	switch {
	case errors.Is(err, resolve.ErrChannelNotFound):
		return "", apperrors.NotFoundError("channel not found").WithContext("channel", stream)
	case errors.Is(err, resolve.ErrNotLive):
		return "", apperrors.NotFoundError("channel is not live").WithContext("channel", stream)
	case err != nil:
		return "", apperrors.ExternalError("failed to resolve channel", err).WithContext("channel", stream)
	}
	return id, nil
}
