package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsActive reports whether the status belongs to the active dashboard group.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketCategory enumerates request categories.
type TicketCategory string

const (
	TicketCategoryGeneral   TicketCategory = "general"
	TicketCategoryTechnical TicketCategory = "technical"
	TicketCategoryAccount   TicketCategory = "account"
	TicketCategoryBilling   TicketCategory = "billing"
	TicketCategoryOther     TicketCategory = "other"
)

// Valid reports whether the category is a known value.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryGeneral, TicketCategoryTechnical, TicketCategoryAccount,
		TicketCategoryBilling, TicketCategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. UserID is set at creation
// and never changes afterwards.
type Ticket struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	Category    TicketCategory `json:"category"`
	AssignedTo  *string        `json:"assignedTo"`
	ImageURL    *string        `json:"imageUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// ViewableBy is the single visibility predicate shared by ticket reads,
// message posting and realtime subscriptions: the owner sees their own
// tickets, staff see everything.
func (t *Ticket) ViewableBy(identity Identity) bool {
	return t.UserID == identity.ID || identity.Role.IsStaff()
}

// TicketOverview is a ticket annotated with creator and assignee details
// for the staff dashboard. The extra fields are joined at read time, never
// stored on the ticket row.
type TicketOverview struct {
	Ticket
	CreatorUsername  string  `json:"creatorUsername"`
	CreatorRole      Role    `json:"creatorRole"`
	CreatorVIPLevel  int     `json:"creatorVipLevel"`
	AssigneeUsername *string `json:"assigneeUsername,omitempty"`
	AssigneeRole     *Role   `json:"assigneeRole,omitempty"`
}
