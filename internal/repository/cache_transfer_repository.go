package repository

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/pkg/redis"
)

const (
	transferListKeyPrefix = "ticket:transfers:"
	transferGenKeyPrefix  = "ticket:transfers:gen:"

	// DefaultTransferCacheTTL bounds staleness if an invalidation is lost
	DefaultTransferCacheTTL = 10 * time.Minute
)

// cachedTransfers is the cache entry for one ticket's history. Generation is
// the ticket's generation counter as read before the database load; an entry
// whose generation no longer matches the counter is ignored.
type cachedTransfers struct {
	Generation string             `json:"generation"`
	Transfers  []*domain.Transfer `json:"transfers"`
}

// CachedTransferRepository wraps TransferRepository with a Redis read-through
// cache of each ticket's history. Appends bump the ticket's generation counter
// once the surrounding transaction commits, which retires both the current
// entry and any entry a concurrent reader writes from an older snapshot.
type CachedTransferRepository struct {
	repo  TransferRepository
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedTransferRepository creates a new CachedTransferRepository
func NewCachedTransferRepository(repo TransferRepository, cache *redis.Client, ttl time.Duration) *CachedTransferRepository {
	if ttl <= 0 {
		ttl = DefaultTransferCacheTTL
	}
	return &CachedTransferRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// Create appends a transfer and invalidates the ticket's cached history
func (r *CachedTransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	if err := r.repo.Create(ctx, transfer); err != nil {
		return err
	}

	ticketID := transfer.TicketID
	AfterCommit(ctx, func() {
		ctx := context.WithoutCancel(ctx)
		// the counter has no expiry: if it vanished, an old entry could match again
		if err := r.cache.Client().Incr(ctx, transferGenKeyPrefix+ticketID).Err(); err != nil {
			r.cache.Del(ctx, transferListKeyPrefix+ticketID)
		}
	})
	return nil
}

// ListByTicketID returns the ticket's history from cache, loading it on a miss.
// Concurrent misses for the same ticket share one database read.
func (r *CachedTransferRepository) ListByTicketID(ctx context.Context, ticketID string) ([]*domain.Transfer, error) {
	key := transferListKeyPrefix + ticketID

	generation, cached, err := r.lookup(ctx, ticketID)
	if err == nil && cached != nil {
		return cached, nil
	}

	v, err, _ := r.group.Do(key+"@"+generation, func() (interface{}, error) {
		transfers, err := r.repo.ListByTicketID(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		r.cacheTransfers(ctx, key, generation, transfers)
		return transfers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Transfer), nil
}

// lookup reads the entry and the generation counter in one round trip. It
// returns the cached history only when the entry is current.
func (r *CachedTransferRepository) lookup(ctx context.Context, ticketID string) (string, []*domain.Transfer, error) {
	vals, err := r.cache.Client().MGet(ctx, transferListKeyPrefix+ticketID, transferGenKeyPrefix+ticketID).Result()
	if err != nil {
		return "", nil, err
	}

	generation, _ := vals[1].(string)
	raw, ok := vals[0].(string)
	if !ok || raw == "" {
		return generation, nil, nil
	}

	var entry cachedTransfers
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Generation != generation {
		return generation, nil, nil
	}
	if entry.Transfers == nil {
		entry.Transfers = []*domain.Transfer{}
	}
	return generation, entry.Transfers, nil
}

func (r *CachedTransferRepository) cacheTransfers(ctx context.Context, key, generation string, transfers []*domain.Transfer) {
	data, err := json.Marshal(cachedTransfers{Generation: generation, Transfers: transfers})
	if err != nil {
		return
	}
	r.cache.Set(ctx, key, string(data), r.ttl)
}

var _ TransferRepository = (*CachedTransferRepository)(nil)
