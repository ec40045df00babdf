package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RugileVa/TiGets/internal/domain"
)

// PostgresTransferRepository implements TransferRepository using PostgreSQL
type PostgresTransferRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransferRepository creates a new PostgresTransferRepository
func NewPostgresTransferRepository(pool *pgxpool.Pool) *PostgresTransferRepository {
	return &PostgresTransferRepository{pool: pool}
}

// Create appends a transfer
func (r *PostgresTransferRepository) Create(ctx context.Context, t *domain.Transfer) error {
	query := `
		INSERT INTO transfers (id, ticket_id, buyer_id, seller_id, kind, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		t.ID,
		t.TicketID,
		t.BuyerID,
		t.SellerID,
		string(t.Kind),
		t.Cost,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// ListByTicketID returns a ticket's transfers in insertion order
func (r *PostgresTransferRepository) ListByTicketID(ctx context.Context, ticketID string) ([]*domain.Transfer, error) {
	query := `
		SELECT id, ticket_id, buyer_id, seller_id, kind, cost, created_at
		FROM transfers
		WHERE ticket_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	if !validID(ticketID) {
		return []*domain.Transfer{}, nil
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	transfers := make([]*domain.Transfer, 0)
	for rows.Next() {
		t := &domain.Transfer{}
		var kind string
		if err := rows.Scan(&t.ID, &t.TicketID, &t.BuyerID, &t.SellerID, &kind, &t.Cost, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		t.Kind = domain.TransferKind(kind)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
