package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RugileVa/TiGets/internal/clock"
	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/internal/metrics"
	"github.com/RugileVa/TiGets/internal/repository"
	"github.com/RugileVa/TiGets/pkg/kafka"
	"github.com/RugileVa/TiGets/pkg/logger"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

// Publisher sends a record to the message broker. *kafka.Producer satisfies it.
type Publisher interface {
	Produce(ctx context.Context, msg *kafka.Message) error
}

// OutboxWorkerConfig contains configuration for the outbox relay
type OutboxWorkerConfig struct {
	// PollInterval is the interval between polling for pending messages
	PollInterval time.Duration
	// BatchSize is the number of messages claimed per poll
	BatchSize int
	// RetryInterval is the interval between retrying failed messages
	RetryInterval time.Duration
	// CleanupInterval is the interval between cleanup of old published messages
	CleanupInterval time.Duration
	// Retention is how long published messages are kept
	Retention time.Duration
}

// DefaultOutboxWorkerConfig returns default configuration
func DefaultOutboxWorkerConfig() *OutboxWorkerConfig {
	return &OutboxWorkerConfig{
		PollInterval:    500 * time.Millisecond,
		BatchSize:       100,
		RetryInterval:   5 * time.Second,
		CleanupInterval: time.Hour,
		Retention:       7 * 24 * time.Hour,
	}
}

// withDefaults fills unset or non-positive fields, since a ticker panics on
// a non-positive interval
func withDefaults(config *OutboxWorkerConfig) *OutboxWorkerConfig {
	def := DefaultOutboxWorkerConfig()
	if config == nil {
		return def
	}
	c := *config
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	return &c
}

// OutboxWorker relays ticket transfer events from the outbox table to Kafka
type OutboxWorker struct {
	outboxRepo repository.OutboxRepository
	transactor repository.Transactor
	publisher  Publisher
	clock      clock.Clock
	config     *OutboxWorkerConfig
	log        *logger.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(
	outboxRepo repository.OutboxRepository,
	transactor repository.Transactor,
	publisher Publisher,
	clk clock.Clock,
	config *OutboxWorkerConfig,
) *OutboxWorker {
	config = withDefaults(config)
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &OutboxWorker{
		outboxRepo: outboxRepo,
		transactor: transactor,
		publisher:  publisher,
		clock:      clk,
		config:     config,
		log:        logger.Get().With(zap.String("component", "outbox_worker")),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the poll, retry and cleanup loops
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("starting outbox worker",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	w.wg.Add(3)
	go w.loop(ctx, w.config.PollInterval, func(ctx context.Context) { w.relay(ctx, false) })
	go w.loop(ctx, w.config.RetryInterval, func(ctx context.Context) { w.relay(ctx, true) })
	go w.loop(ctx, w.config.CleanupInterval, w.cleanup)

	return nil
}

// Stop stops the worker and waits for in-flight batches
func (w *OutboxWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("stopping outbox worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("outbox worker stopped")
}

// IsRunning reports whether the loops are active
func (w *OutboxWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *OutboxWorker) loop(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (w *OutboxWorker) relay(ctx context.Context, retry bool) {
	if _, err := w.ProcessBatch(ctx, retry); err != nil {
		w.log.Error("outbox batch failed", zap.Bool("retry", retry), zap.Error(err))
	}
}

func (w *OutboxWorker) cleanup(ctx context.Context) {
	deleted, err := w.outboxRepo.DeletePublishedBefore(ctx, w.clock.Now().Add(-w.config.Retention))
	if err != nil {
		w.log.Error("failed to clean up published outbox messages", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.log.Info("cleaned up published outbox messages", zap.Int64("deleted", deleted))
	}
}

// ProcessBatch claims one batch of pending (or, with retry set, retryable
// failed) messages, publishes them and records the outcome in the same
// transaction that holds the row locks. It returns the number published.
func (w *OutboxWorker) ProcessBatch(ctx context.Context, retry bool) (int, error) {
	published := 0
	err := w.transactor.WithTx(ctx, func(ctx context.Context) error {
		claim := w.outboxRepo.ClaimPending
		if retry {
			claim = w.outboxRepo.ClaimRetryable
		}
		messages, err := claim(ctx, w.config.BatchSize)
		if err != nil {
			return err
		}

		failed := 0
		for _, msg := range messages {
			if err := w.publish(ctx, msg); err != nil {
				failed++
				w.log.Warn("failed to publish outbox message",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Int("attempt", msg.RetryCount+1),
					zap.Int("max_retries", msg.MaxRetries),
					zap.Error(err),
				)
				if markErr := w.outboxRepo.MarkAsFailed(ctx, msg.ID, err.Error()); markErr != nil {
					return markErr
				}
				continue
			}
			if err := w.outboxRepo.MarkAsPublished(ctx, msg.ID, w.clock.Now()); err != nil {
				return err
			}
			published++
		}

		metrics.RecordOutbox(string(domain.OutboxStatusPublished), published)
		metrics.RecordOutbox(string(domain.OutboxStatusFailed), failed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

// publish sends msg to Kafka under the trace context captured when the
// message was written
func (w *OutboxWorker) publish(ctx context.Context, msg *domain.OutboxMessage) error {
	ctx = telemetry.ExtractMap(ctx, msg.Headers)
	ctx, span := telemetry.StartSpan(ctx, "worker.outbox.publish")
	defer span.End()

	headers := make(map[string]string, len(msg.Headers)+4)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["event_type"] = msg.EventType
	headers["aggregate_type"] = msg.AggregateType
	headers["aggregate_id"] = msg.AggregateID
	headers["content_type"] = "application/json"

	err := w.publisher.Produce(ctx, &kafka.Message{
		Topic:     msg.Topic,
		Key:       []byte(msg.PartitionKey),
		Value:     msg.Payload,
		Headers:   headers,
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		telemetry.SetSpanError(ctx, err)
	}
	return err
}
