package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RugileVa/TiGets/internal/domain"
)

// memoryStore backs the in-memory repositories. Transactions are serialized
// and rolled back on error, which is enough to exercise the service's
// transactional behavior without a database.
type memoryStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	tickets   map[string]domain.Ticket
	users     map[string]domain.User
	transfers []domain.Transfer
	outbox    []domain.OutboxMessage

	failTransferCreate error
	failOutboxCreate   error
}

type memoryTxKey struct{}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tickets: make(map[string]domain.Ticket),
		users:   make(map[string]domain.User),
	}
}

func (s *memoryStore) snapshot() *memoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := &memoryStore{
		tickets:   make(map[string]domain.Ticket, len(s.tickets)),
		users:     make(map[string]domain.User, len(s.users)),
		transfers: append([]domain.Transfer(nil), s.transfers...),
		outbox:    append([]domain.OutboxMessage(nil), s.outbox...),
	}
	for k, v := range s.tickets {
		cp.tickets[k] = v
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	return cp
}

func (s *memoryStore) restore(cp *memoryStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets, s.users, s.transfers, s.outbox = cp.tickets, cp.users, cp.transfers, cp.outbox
}

// WithTx implements repository.Transactor
func (s *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	before := s.snapshot()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		s.restore(before)
		return err
	}
	return nil
}

func (s *memoryStore) addUser(username string, balance string) *domain.User {
	u := domain.User{
		ID:       "user-" + username,
		Username: username,
		Email:    username + "@example.com",
		Balance:  decimal.RequireFromString(balance),
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return &u
}

func (s *memoryStore) user(id string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memoryStore) ticket(id string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

func (s *memoryStore) putTicket(t *domain.Ticket) {
	s.mu.Lock()
	s.tickets[t.ID] = *t
	s.mu.Unlock()
}

func (s *memoryStore) transfersOf(ticketID string) []domain.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transfer
	for _, t := range s.transfers {
		if t.TicketID == ticketID {
			out = append(out, t)
		}
	}
	return out
}

// MockTicketRepository is an in-memory TicketRepository
type MockTicketRepository struct{ store *memoryStore }

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	m.store.putTicket(ticket)
	return nil
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	t, ok := m.store.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MockTicketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.tickets[ticket.ID]
	if !ok || stored.Version != ticket.Version {
		return domain.ErrConcurrentModification
	}
	ticket.Version++
	m.store.tickets[ticket.ID] = *ticket
	return nil
}

func (m *MockTicketRepository) List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.Ticket
	for _, t := range m.store.tickets {
		if filter.Matches(&t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockUserRepository is an in-memory UserRepository
type MockUserRepository struct{ store *memoryStore }

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	m.store.users[user.ID] = *user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return m.GetByID(ctx, id)
}

func (m *MockUserRepository) UpdateBalance(ctx context.Context, userID string, balance decimal.Decimal, updatedAt time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	u, ok := m.store.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = balance
	u.UpdatedAt = updatedAt
	m.store.users[userID] = u
	return nil
}

// MockTransferRepository is an in-memory TransferRepository
type MockTransferRepository struct{ store *memoryStore }

func (m *MockTransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	if m.store.failTransferCreate != nil {
		return m.store.failTransferCreate
	}
	m.store.mu.Lock()
	m.store.transfers = append(m.store.transfers, *transfer)
	m.store.mu.Unlock()
	return nil
}

func (m *MockTransferRepository) ListByTicketID(ctx context.Context, ticketID string) ([]*domain.Transfer, error) {
	var out []*domain.Transfer
	for _, t := range m.store.transfersOf(ticketID) {
		t := t
		out = append(out, &t)
	}
	return out, nil
}

// MockOutboxRepository is an in-memory OutboxRepository
type MockOutboxRepository struct{ store *memoryStore }

func (m *MockOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	if m.store.failOutboxCreate != nil {
		return m.store.failOutboxCreate
	}
	m.store.mu.Lock()
	m.store.outbox = append(m.store.outbox, *msg)
	m.store.mu.Unlock()
	return nil
}

func (m *MockOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	return nil, errors.New("not used")
}

func (m *MockOutboxRepository) ClaimRetryable(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	return nil, errors.New("not used")
}

func (m *MockOutboxRepository) MarkAsPublished(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *MockOutboxRepository) MarkAsFailed(ctx context.Context, id string, errMsg string) error {
	return nil
}

func (m *MockOutboxRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
