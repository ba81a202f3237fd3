package ws

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/emberfall/emberfall-api/internal/realtime"
)

// Upgrade gates the realtime route to websocket upgrade requests.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler runs the read/write pump pair for one realtime connection. The
// connection authenticates itself in-band with an authenticate frame; the
// transport stays open on auth failure so the client can retry.
func Handler(hub *realtime.Hub, logger *zap.Logger) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		conn := hub.Accept()
		defer hub.Release(conn.ID())

		done := make(chan struct{})
		go writePump(c, conn, done)

		readPump(c, hub, conn, logger)

		// Release closes the outbound channel, unblocking the writer.
		hub.Release(conn.ID())
		<-done
	})
}

func readPump(c *websocket.Conn, hub *realtime.Hub, conn *realtime.Connection, logger *zap.Logger) {
	ctx := context.Background()
	for {
		var frame realtime.ClientFrame
		if err := c.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case realtime.FrameAuthenticate:
			if err := hub.Authenticate(ctx, conn.ID(), frame.Credential); err != nil {
				logger.Debug("realtime auth failed",
					zap.String("connection_id", conn.ID()),
					zap.Error(err))
			}
		case realtime.FrameSubscribe:
			if err := hub.Subscribe(ctx, conn.ID(), frame.TicketID); err != nil {
				logger.Debug("realtime subscribe rejected",
					zap.String("connection_id", conn.ID()),
					zap.String("ticket_id", frame.TicketID),
					zap.Error(err))
			}
		case realtime.FrameUnsubscribe:
			hub.Unsubscribe(conn.ID(), frame.TicketID)
		default:
			logger.Debug("unknown realtime frame",
				zap.String("connection_id", conn.ID()),
				zap.String("type", frame.Type))
		}
	}
}

func writePump(c *websocket.Conn, conn *realtime.Connection, done chan<- struct{}) {
	defer close(done)
	for frame := range conn.Out() {
		if err := c.WriteJSON(frame); err != nil {
			// reader sees the broken transport and triggers release
			continue
		}
	}
	_ = c.Close()
}
