package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberfall/emberfall-api/internal/domain"
)

// Postgres rejects a malformed uuid literal with 22P02 before the query
// runs. Lookups by a client-supplied id fold that into ErrNoRows: an id that
// cannot exist behaves like one that does not.
const pgInvalidTextRepresentation = "22P02"

func normalizeIDError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return pgx.ErrNoRows
	}
	return err
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Touch(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Ticket, error)
	ListOverview(ctx context.Context) ([]domain.TicketOverview, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, user_id, title, description, status, priority, category, assigned_to, image_url, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, title, description, status, priority, category, assigned_to, image_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTo,
		ticket.ImageURL,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update persists mutable ticket fields. user_id is deliberately absent from
// the statement: ownership never changes after creation.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, category=$3, assigned_to=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTo,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return err
	}
	return nil
}

func (r *ticketRepository) Touch(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.AssignedTo,
		&ticket.ImageURL,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, normalizeIDError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id=$1 ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListOverview returns every ticket joined with creator and assignee
// account details for the staff dashboard.
func (r *ticketRepository) ListOverview(ctx context.Context) ([]domain.TicketOverview, error) {
	const query = `
        SELECT t.id, t.user_id, t.title, t.description, t.status, t.priority, t.category,
               t.assigned_to, t.image_url, t.created_at, t.updated_at,
               creator.username, creator.role, creator.vip_level,
               assignee.username, assignee.role
        FROM tickets t
        JOIN users creator ON creator.id = t.user_id
        LEFT JOIN users assignee ON assignee.id = t.assigned_to
        ORDER BY t.updated_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketOverview
	for rows.Next() {
		var overview domain.TicketOverview
		if err := rows.Scan(
			&overview.ID,
			&overview.UserID,
			&overview.Title,
			&overview.Description,
			&overview.Status,
			&overview.Priority,
			&overview.Category,
			&overview.AssignedTo,
			&overview.ImageURL,
			&overview.CreatedAt,
			&overview.UpdatedAt,
			&overview.CreatorUsername,
			&overview.CreatorRole,
			&overview.CreatorVIPLevel,
			&overview.AssigneeUsername,
			&overview.AssigneeRole,
		); err != nil {
			return nil, err
		}
		result = append(result, overview)
	}
	return result, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.UserID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Category,
			&ticket.AssignedTo,
			&ticket.ImageURL,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
