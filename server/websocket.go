package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/articulate/session"
)

// Middleware to require WebSocket upgrade on /ws
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// progressHandler streams the session's stage events as JSON frames until the
// browser disconnects.
func (s *Server) progressHandler() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		defer ws.Close()
		sess, ok := ws.Locals(sessionLocal).(*session.Session)
		if !ok {
			return
		}
		logger := s.logger.With().Str("sessionId", sess.ID).Logger()
		logger.Debug().Msg("progress socket connected")

		sub := s.hub.Subscribe(sess.ID)
		defer sub.Close()

		// The browser never sends anything; reads only detect the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				logger.Debug().Msg("progress socket closed")
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := ws.WriteJSON(ev); err != nil {
					logger.Warn().Err(err).Msg("progress write failed")
					return
				}
			}
		}
	})
}
