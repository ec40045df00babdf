package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const (
	AggregateTicket         = "ticket"
	EventTicketTransferred  = "ticket.transferred"
	DefaultOutboxMaxRetries = 5
)

// OutboxMessage is an event stored in the same transaction as the state
// change it describes, waiting to be relayed to Kafka.
type OutboxMessage struct {
	ID            string            `json:"id"`
	AggregateType string            `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	EventType     string            `json:"event_type"`
	Payload       []byte            `json:"payload"`
	Headers       map[string]string `json:"headers,omitempty"` // trace context
	Topic         string            `json:"topic"`
	PartitionKey  string            `json:"partition_key"`
	Status        OutboxStatus      `json:"status"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	LastError     string            `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	PublishedAt   *time.Time        `json:"published_at,omitempty"`
}

// NewOutboxMessage creates a new pending outbox message
func NewOutboxMessage(aggregateType, aggregateID, eventType, topic string, payload interface{}, now time.Time) (*OutboxMessage, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payloadBytes,
		Topic:         topic,
		PartitionKey:  aggregateID,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultOutboxMaxRetries,
		CreatedAt:     now,
	}, nil
}

// TransferOutboxMessage wraps a transfer into a ticket.transferred message
// keyed by ticket so a ticket's history stays ordered within a partition.
func TransferOutboxMessage(t *Transfer, eventName, topic string, now time.Time) (*OutboxMessage, error) {
	return NewOutboxMessage(AggregateTicket, t.TicketID, EventTicketTransferred, topic, NewTicketTransferredEvent(t, eventName), now)
}

// CanRetry checks if the message can be retried
func (m *OutboxMessage) CanRetry() bool {
	return m.Status == OutboxStatusFailed && m.RetryCount < m.MaxRetries
}
