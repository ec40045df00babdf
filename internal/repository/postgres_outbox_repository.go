package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RugileVa/TiGets/internal/domain"
)

var errOutboxMessageNotFound = errors.New("outbox message not found")

const outboxColumns = `
	id, aggregate_type, aggregate_id, event_type,
	payload, headers, topic, partition_key, status,
	retry_count, max_retries, last_error,
	created_at, published_at`

// PostgresOutboxRepository implements OutboxRepository using PostgreSQL
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgresOutboxRepository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// Create creates a new outbox message
func (r *PostgresOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	query := `
		INSERT INTO outbox (
			id, aggregate_type, aggregate_id, event_type,
			payload, headers, topic, partition_key, status,
			retry_count, max_retries, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		msg.ID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		headers,
		msg.Topic,
		msg.PartitionKey,
		string(msg.Status),
		msg.RetryCount,
		msg.MaxRetries,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// ClaimPending locks pending messages for the caller's transaction
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	return r.query(ctx, query, limit)
}

// ClaimRetryable locks failed messages that can still be retried
func (r *PostgresOutboxRepository) ClaimRetryable(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox
		WHERE status = 'failed' AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	return r.query(ctx, query, limit)
}

func (r *PostgresOutboxRepository) query(ctx context.Context, query string, limit int) ([]*domain.OutboxMessage, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}
	defer rows.Close()

	return scanOutboxMessages(rows)
}

// MarkAsPublished marks a message as successfully published
func (r *PostgresOutboxRepository) MarkAsPublished(ctx context.Context, id string, at time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE outbox SET status = 'published', published_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message as published: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errOutboxMessageNotFound
	}
	return nil
}

// MarkAsFailed marks a message as failed and counts the attempt
func (r *PostgresOutboxRepository) MarkAsFailed(ctx context.Context, id string, errMsg string) error {
	result, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE outbox SET status = 'failed', last_error = $2, retry_count = retry_count + 1 WHERE id = $1`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message as failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errOutboxMessageNotFound
	}
	return nil
}

// DeletePublishedBefore deletes old published messages
func (r *PostgresOutboxRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM outbox WHERE status = 'published' AND published_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published messages: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanOutboxMessages(rows pgx.Rows) ([]*domain.OutboxMessage, error) {
	var messages []*domain.OutboxMessage

	for rows.Next() {
		msg := &domain.OutboxMessage{}
		var (
			status    string
			lastError *string
		)
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.Headers,
			&msg.Topic,
			&msg.PartitionKey,
			&status,
			&msg.RetryCount,
			&msg.MaxRetries,
			&lastError,
			&msg.CreatedAt,
			&msg.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}

		msg.Status = domain.OutboxStatus(status)
		if lastError != nil {
			msg.LastError = *lastError
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}
	return messages, nil
}

var _ OutboxRepository = (*PostgresOutboxRepository)(nil)
