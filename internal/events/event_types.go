package events

import (
	"time"

	"github.com/emberfall/emberfall-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventTicketAssigned      EventType = "ticket.assigned"
	EventTicketMessageAdded  EventType = "ticket.message_added"
)

// Event represents a domain event emitted by services. TicketID routes
// realtime fan-out to the right ticket room.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticketId"`
	ActorID   string      `json:"actorId"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assigneeId,omitempty"`
}

// TicketMessageAddedPayload carries the full persisted message so
// subscribers can deliver it without another store read.
type TicketMessageAddedPayload struct {
	Message domain.TicketMessage `json:"message"`
}
