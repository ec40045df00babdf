package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RugileVa/TiGets/internal/domain"
)

// Transactor runs a unit of work in one database transaction. Repository
// calls made with the ctx passed to fn join that transaction. Nested calls
// reuse the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TicketRepository defines the interface for ticket data access
type TicketRepository interface {
	// Create creates a new ticket
	Create(ctx context.Context, ticket *domain.Ticket) error
	// GetByID retrieves a ticket by ID, nil if absent
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate retrieves a ticket and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	// Update persists owner, state and cost if the stored version still equals
	// ticket.Version, then bumps the version. Returns domain.ErrConcurrentModification otherwise.
	Update(ctx context.Context, ticket *domain.Ticket) error
	// List returns tickets matching filter, newest first
	List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user. Duplicate usernames or emails map to domain conflict errors.
	Create(ctx context.Context, user *domain.User) error
	// GetByID retrieves a user by ID, nil if absent
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByUsername retrieves a user by username, nil if absent
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByIDForUpdate retrieves a user and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error)
	// UpdateBalance overwrites a user's balance
	UpdateBalance(ctx context.Context, userID string, balance decimal.Decimal, updatedAt time.Time) error
}

// TransferRepository defines the interface for the append-only transfer log
type TransferRepository interface {
	// Create appends a transfer
	Create(ctx context.Context, transfer *domain.Transfer) error
	// ListByTicketID returns a ticket's transfers in insertion order
	ListByTicketID(ctx context.Context, ticketID string) ([]*domain.Transfer, error)
}

// OutboxRepository defines the interface for the transactional outbox
type OutboxRepository interface {
	// Create stores a pending message
	Create(ctx context.Context, msg *domain.OutboxMessage) error
	// ClaimPending locks up to limit pending messages, skipping rows other relays hold
	ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	// ClaimRetryable locks up to limit failed messages that still have retries left
	ClaimRetryable(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	// MarkAsPublished marks a message as published
	MarkAsPublished(ctx context.Context, id string, at time.Time) error
	// MarkAsFailed records a failed publish attempt
	MarkAsFailed(ctx context.Context, id string, errMsg string) error
	// DeletePublishedBefore purges published messages older than before
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}
