package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/emberfall/emberfall-api/internal/domain"
	"github.com/emberfall/emberfall-api/internal/events"
	"github.com/emberfall/emberfall-api/internal/repository"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

const maxTitleLength = 200

// TicketService is the single place ticket and message business rules are
// enforced; handlers never touch the repositories directly.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	ImageURL    *string
}

// PostMessageInput describes a user-authored chat message.
type PostMessageInput struct {
	Message  string
	ImageURL *string
}

// TicketUpdateInput carries the staff-editable ticket fields; nil means
// leave unchanged.
type TicketUpdateInput struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Category *domain.TicketCategory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket opens a new ticket owned by the caller. Status and assignee
// are forced regardless of input.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperrors.NewValidationError("title must be 1-200 characters", nil)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}

	category := input.Category
	if category == "" {
		category = domain.TicketCategoryGeneral
	}
	if !category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		UserID:      identity.ID,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		Category:    category,
		AssignedTo:  nil,
		ImageURL:    input.ImageURL,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  identity.ID,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Category: ticket.Category,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// GetTicket returns a ticket plus its full thread, oldest message first.
// Visible to the owner and to any staff role.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !ticket.ViewableBy(identity) {
		return nil, nil, apperrors.NewForbidden("not authorized for ticket")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// ListUserTickets returns the caller's own tickets, any status.
func (s *TicketService) ListUserTickets(ctx context.Context, identity domain.Identity) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByUser(ctx, identity.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListStaffTickets returns every ticket annotated with creator and assignee
// account details. Staff only.
func (s *TicketService) ListStaffTickets(ctx context.Context, identity domain.Identity) ([]domain.TicketOverview, error) {
	if !identity.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	overviews, err := s.tickets.ListOverview(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return overviews, nil
}

// AssignTicket sets or clears the ticket assignee. The assignee must
// resolve to a staff account; the data layer does not enforce that, so it
// is checked here.
func (s *TicketService) AssignTicket(ctx context.Context, identity domain.Identity, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	if !identity.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if assigneeID != nil {
		assignee, err := s.users.GetByID(ctx, *assigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("assignee", map[string]any{"user_id": *assigneeID})
			}
			return nil, apperrors.MapError(err)
		}
		if !assignee.Role.IsStaff() {
			return nil, apperrors.NewValidationError("assignee must be staff", map[string]any{"user_id": *assigneeID})
		}
	}

	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.AssignedTo = assigneeID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  identity.ID,
		Payload:  events.TicketAssignedPayload{AssigneeID: assigneeID},
	})
	return ticket, nil
}

// PostMessage appends a user-authored message to the ticket thread and
// notifies live viewers. The store write is the durability boundary:
// a failed realtime publish is logged and swallowed, never rolled back.
func (s *TicketService) PostMessage(ctx context.Context, identity domain.Identity, ticketID string, input PostMessageInput) (*domain.TicketMessage, error) {
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.ViewableBy(identity) {
		return nil, apperrors.NewForbidden("not authorized for ticket")
	}

	text := strings.TrimSpace(input.Message)
	if text == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return nil, apperrors.NewValidationError("message exceeds 1000 characters", nil)
	}

	msg := &domain.TicketMessage{
		TicketID:        ticket.ID,
		SenderID:        identity.ID,
		Message:         text,
		ImageURL:        input.ImageURL,
		IsSystemMessage: false,
	}
	if err := s.persistAndBroadcast(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateTicket changes status/priority/category. Only staff move a ticket
// through its lifecycle; any enumerated status is a legal target from any
// current status. A status change appends a system message to the thread.
func (s *TicketService) UpdateTicket(ctx context.Context, identity domain.Identity, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if !identity.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}

	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		ticket.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Category != nil {
		if !input.Category.Valid() {
			return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
		}
		ticket.Category = *input.Category
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if input.Status != nil && ticket.Status != oldStatus {
		s.appendSystemMessage(ctx, ticket, identity.ID, fmt.Sprintf("ticket marked %s", ticket.Status))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  identity.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, nil
}

// ListStaff returns staff identities for the assignment picker. Staff only.
func (s *TicketService) ListStaff(ctx context.Context, identity domain.Identity) ([]domain.Identity, error) {
	if !identity.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	users, err := s.users.ListStaff(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	identities := make([]domain.Identity, 0, len(users))
	for i := range users {
		identities = append(identities, users[i].Identity())
	}
	return identities, nil
}

func (s *TicketService) fetchTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// persistAndBroadcast writes the message, bumps the ticket's updated_at and
// pushes the message to live subscribers.
func (s *TicketService) persistAndBroadcast(ctx context.Context, msg *domain.TicketMessage) error {
	if err := s.messages.Create(ctx, msg); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tickets.Touch(ctx, msg.TicketID); err != nil {
		s.logger.Warn("failed to touch ticket", zap.String("ticket_id", msg.TicketID), zap.Error(err))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: msg.TicketID,
		ActorID:  msg.SenderID,
		Payload:  events.TicketMessageAddedPayload{Message: *msg},
	})
	return nil
}

// appendSystemMessage records a lifecycle notice in the thread so live
// viewers see the transition. Failures are logged only; the ticket update
// already succeeded.
func (s *TicketService) appendSystemMessage(ctx context.Context, ticket *domain.Ticket, actorID, text string) {
	msg := &domain.TicketMessage{
		TicketID:        ticket.ID,
		SenderID:        actorID,
		Message:         text,
		IsSystemMessage: true,
	}
	if err := s.persistAndBroadcast(ctx, msg); err != nil {
		s.logger.Warn("failed to append system message",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

// publishEvent dispatches best-effort; a delivery failure never reaches the
// caller because the durable write already happened.
func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
