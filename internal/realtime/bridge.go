package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/emberfall/emberfall-api/internal/events"
)

// BindDispatcher subscribes the hub to message events so anything the
// lifecycle service persists reaches live ticket viewers.
func BindDispatcher(dispatcher events.Dispatcher, hub *Hub, logger *zap.Logger) {
	dispatcher.Subscribe(events.EventTicketMessageAdded, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketMessageAddedPayload)
		if !ok {
			logger.Warn("unexpected payload for message event", zap.String("event_id", event.ID))
			return nil
		}
		hub.Publish(event.TicketID, payload.Message)
		return nil
	})
}
