package domain

import "time"

// MaxMessageLength bounds a single chat message after trimming.
const MaxMessageLength = 1000

// TicketMessage captures one entry in a ticket's chat thread. Messages are
// immutable once created; ordering is by CreatedAt with insertion order
// breaking ties.
type TicketMessage struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticketId"`
	SenderID        string    `json:"senderId"`
	Message         string    `json:"message"`
	ImageURL        *string   `json:"imageUrl,omitempty"`
	IsSystemMessage bool      `json:"isSystemMessage"`
	CreatedAt       time.Time `json:"createdAt"`
}
