package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RugileVa/TiGets/internal/domain"
)

const ticketColumns = `id, user_id, state, valid_from, valid_to, event_name, address, cost, version, created_at, updated_at`

// PostgresTicketRepository implements TicketRepository using PostgreSQL
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

// Create creates a new ticket
func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		ticket.ID,
		ticket.UserID,
		ticket.State.String(),
		ticket.ValidFrom,
		ticket.ValidTo,
		ticket.EventName,
		ticket.Address,
		ticket.Cost,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket by ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a ticket and locks its row
func (r *PostgresTicketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresTicketRepository) getOne(ctx context.Context, query, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, nil
	}
	ticket, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// Update persists a ticket guarded by its version
func (r *PostgresTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	query := `
		UPDATE tickets
		SET user_id = $3, state = $4, cost = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		ticket.ID,
		ticket.Version,
		ticket.UserID,
		ticket.State.String(),
		ticket.Cost,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}
	ticket.Version++
	return nil
}

// List returns tickets matching filter
func (r *PostgresTicketRepository) List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.OwnerID != "" {
		if !validID(filter.OwnerID) {
			return []*domain.Ticket{}, nil
		}
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, filter.State.String())
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	ticket := &domain.Ticket{}
	var state string
	err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&state,
		&ticket.ValidFrom,
		&ticket.ValidTo,
		&ticket.EventName,
		&ticket.Address,
		&ticket.Cost,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ticket.State = domain.TicketState(state)
	return ticket, nil
}
