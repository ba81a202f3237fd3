package dto

import "github.com/emberfall/emberfall-api/internal/domain"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	ImageURL    *string               `json:"imageUrl"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Message  string  `json:"message"`
	ImageURL *string `json:"imageUrl"`
}

// UpdateTicketRequest carries staff-editable fields; absent fields stay
// unchanged.
type UpdateTicketRequest struct {
	Status   *domain.TicketStatus   `json:"status"`
	Priority *domain.TicketPriority `json:"priority"`
	Category *domain.TicketCategory `json:"category"`
}

// AssignTicketRequest payload. Null assigneeId clears the assignment.
type AssignTicketRequest struct {
	AssigneeID *string `json:"assigneeId"`
}

// TicketDetailResponse is a ticket with its full thread, oldest first.
type TicketDetailResponse struct {
	domain.Ticket
	Messages []domain.TicketMessage `json:"messages"`
}
