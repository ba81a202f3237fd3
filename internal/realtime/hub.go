package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/emberfall/emberfall-api/internal/auth"
	"github.com/emberfall/emberfall-api/internal/domain"
	"github.com/emberfall/emberfall-api/internal/observability"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

// TicketAccess is the slice of the ticket store the hub needs to authorize
// subscriptions. Satisfied by repository.TicketRepository.
type TicketAccess interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// Connection is one live realtime client. A connection starts
// unauthenticated, may bind an identity once, accumulates subscriptions and
// ends released; released is terminal. All fields are guarded by the hub
// registry lock.
type Connection struct {
	id            string
	identity      *domain.Identity
	subscriptions map[string]struct{}
	out           chan ServerFrame
	released      bool
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Out is the outbound frame stream the transport writer drains. The channel
// is closed when the connection is released.
func (c *Connection) Out() <-chan ServerFrame {
	return c.out
}

// Hub multiplexes per-ticket message rooms over persistent connections. The
// registry (connections plus the ticket subscription index) is the hub's
// only shared state and every access goes through mu.
type Hub struct {
	resolver   auth.IdentityResolver
	tickets    TicketAccess
	logger     *zap.Logger
	metrics    *observability.Metrics
	bufferSize int

	mu    sync.RWMutex
	conns map[string]*Connection
	subs  map[string]map[string]*Connection
}

// NewHub constructs the hub.
func NewHub(resolver auth.IdentityResolver, tickets TicketAccess, logger *zap.Logger, metrics *observability.Metrics, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		resolver:   resolver,
		tickets:    tickets,
		logger:     logger,
		metrics:    metrics,
		bufferSize: bufferSize,
		conns:      make(map[string]*Connection),
		subs:       make(map[string]map[string]*Connection),
	}
}

// Accept registers a new unauthenticated connection.
func (h *Hub) Accept() *Connection {
	conn := &Connection{
		id:            uuid.NewString(),
		subscriptions: make(map[string]struct{}),
		out:           make(chan ServerFrame, h.bufferSize),
	}

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug("connection accepted", zap.String("connection_id", conn.id))
	return conn
}

// Authenticate resolves the credential and binds the identity to the
// connection. Failure leaves the connection open and unauthenticated so the
// client may retry.
func (h *Hub) Authenticate(ctx context.Context, connID, credential string) error {
	identity, err := h.resolver.Resolve(ctx, credential)
	if err != nil {
		h.sendTo(connID, errorFrame("authentication failed"))
		return err
	}

	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return apperrors.NewNotFound("connection", nil)
	}
	conn.identity = identity
	h.mu.Unlock()

	h.sendTo(connID, authSuccessFrame())
	h.logger.Debug("connection authenticated",
		zap.String("connection_id", connID),
		zap.String("user_id", identity.ID))
	return nil
}

// Subscribe adds the connection to a ticket room. Requires prior
// authentication and visibility of the ticket (owner or staff); idempotent
// when already subscribed. Never blocks waiting for access.
func (h *Hub) Subscribe(ctx context.Context, connID, ticketID string) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	var identity *domain.Identity
	if ok {
		identity = conn.identity
	}
	h.mu.RUnlock()

	if !ok {
		return apperrors.NewNotFound("connection", nil)
	}
	if identity == nil {
		h.sendTo(connID, errorFrame("authentication required"))
		return apperrors.NewUnauthenticated("authentication required")
	}

	ticket, err := h.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.sendTo(connID, errorFrame("ticket not found"))
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		h.sendTo(connID, errorFrame("subscription failed"))
		return apperrors.MapError(err)
	}
	if !ticket.ViewableBy(*identity) {
		h.sendTo(connID, errorFrame("not authorized for ticket"))
		return apperrors.NewForbidden("not authorized for ticket")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// the connection may have been released during the store read
	conn, ok = h.conns[connID]
	if !ok {
		return apperrors.NewNotFound("connection", nil)
	}
	if _, exists := conn.subscriptions[ticketID]; exists {
		return nil
	}
	conn.subscriptions[ticketID] = struct{}{}
	room := h.subs[ticketID]
	if room == nil {
		room = make(map[string]*Connection)
		h.subs[ticketID] = room
	}
	room[connID] = conn
	h.metrics.SubscriptionDelta(1)
	return nil
}

// Unsubscribe removes the connection from a ticket room; no-op if absent.
func (h *Hub) Unsubscribe(connID, ticketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if _, exists := conn.subscriptions[ticketID]; !exists {
		return
	}
	delete(conn.subscriptions, ticketID)
	h.removeFromRoom(ticketID, connID)
	h.metrics.SubscriptionDelta(-1)
}

// Publish fans a persisted message out to every connection subscribed to
// its ticket. Delivery is best-effort and at-most-once: a subscriber whose
// buffer is full has the frame dropped rather than delaying the rest.
func (h *Hub) Publish(ticketID string, msg domain.TicketMessage) {
	frame := ServerFrame{Type: FrameNewMessage, Message: msg}

	var dropped int64
	h.mu.RLock()
	for _, conn := range h.subs[ticketID] {
		if !h.trySendLocked(conn, frame) {
			dropped++
		}
	}
	h.mu.RUnlock()

	h.metrics.RecordPublish(dropped)
	if dropped > 0 {
		h.logger.Warn("dropped realtime frames",
			zap.String("ticket_id", ticketID),
			zap.Int64("dropped", dropped))
	}
}

// Release removes the connection and all its subscriptions. Safe to call
// more than once; all later operations on the id are no-ops.
func (h *Hub) Release(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)
	for ticketID := range conn.subscriptions {
		h.removeFromRoom(ticketID, connID)
		h.metrics.SubscriptionDelta(-1)
	}
	conn.released = true
	close(conn.out)
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	h.logger.Debug("connection released", zap.String("connection_id", connID))
}

// removeFromRoom must be called with mu held for writing.
func (h *Hub) removeFromRoom(ticketID, connID string) {
	room := h.subs[ticketID]
	if room == nil {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.subs, ticketID)
	}
}

// trySendLocked performs a non-blocking send. Must be called with mu held
// (read or write); the released flag and channel close both happen under
// the write lock, so a send here can never hit a closed channel.
func (h *Hub) trySendLocked(conn *Connection, frame ServerFrame) bool {
	if conn.released {
		return false
	}
	select {
	case conn.out <- frame:
		return true
	default:
		return false
	}
}

const (
	controlSendTimeout = time.Second
	controlSendRetry   = 5 * time.Millisecond
)

// sendTo delivers auth and subscribe outcomes. Unlike publish fan-out these
// frames are not droppable: a full buffer is retried until the writer drains
// it, the connection goes away or the timeout passes. The lock is never held
// across a wait.
func (h *Hub) sendTo(connID string, frame ServerFrame) {
	deadline := time.Now().Add(controlSendTimeout)
	for {
		h.mu.RLock()
		conn, ok := h.conns[connID]
		sent := ok && h.trySendLocked(conn, frame)
		h.mu.RUnlock()

		if sent || !ok {
			return
		}
		if time.Now().After(deadline) {
			h.logger.Warn("control frame not delivered",
				zap.String("connection_id", connID),
				zap.String("type", frame.Type))
			return
		}
		time.Sleep(controlSendRetry)
	}
}
