package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/RugileVa/TiGets/internal/clock"
	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/internal/metrics"
	"github.com/RugileVa/TiGets/internal/repository"
	"github.com/RugileVa/TiGets/pkg/logger"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

const defaultTransferTopic = "ticket.transfers"

// TicketService defines the interface for marketplace ticket operations
type TicketService interface {
	// Import validates a draft and stores it as a new ticket owned by username
	Import(ctx context.Context, username string, draft *domain.TicketDraft) (*domain.Ticket, error)
	// Buy transfers a ticket on the market to username and settles the balances
	Buy(ctx context.Context, username, ticketID string) (*Purchase, error)
	// Move sets the market state of a ticket owned by username
	Move(ctx context.Context, username, ticketID string, state domain.TicketState) (*domain.Ticket, error)
	// GetTicketsOnTheMarket lists the tickets username has up for sale
	GetTicketsOnTheMarket(ctx context.Context, username string) ([]*domain.Ticket, error)
	// GetUserTickets lists every ticket username owns
	GetUserTickets(ctx context.Context, username string) ([]*domain.Ticket, error)
	// GetTicket retrieves a ticket by ID
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
}

// Purchase is the outcome of a successful Buy
type Purchase struct {
	Ticket   *domain.Ticket
	Transfer *domain.Transfer
	Buyer    *domain.User
}

// TicketServiceConfig contains configuration for ticket service
type TicketServiceConfig struct {
	TransferTopic string
	// OutboxMaxRetries caps relay attempts per transfer event
	OutboxMaxRetries int
}

// ticketService implements TicketService
type ticketService struct {
	ticketRepo      repository.TicketRepository
	userRepo        repository.UserRepository
	transferService TransferService
	outboxRepo      repository.OutboxRepository
	transactor      repository.Transactor
	clock           clock.Clock
	transferTopic   string
	maxRetries      int
}

// NewTicketService creates a new TicketService. outboxRepo may be nil, in
// which case no transfer events are emitted.
func NewTicketService(
	ticketRepo repository.TicketRepository,
	userRepo repository.UserRepository,
	transferService TransferService,
	outboxRepo repository.OutboxRepository,
	transactor repository.Transactor,
	clk clock.Clock,
	cfg *TicketServiceConfig,
) TicketService {
	topic, maxRetries := defaultTransferTopic, domain.DefaultOutboxMaxRetries
	if cfg != nil && cfg.TransferTopic != "" {
		topic = cfg.TransferTopic
	}
	if cfg != nil && cfg.OutboxMaxRetries > 0 {
		maxRetries = cfg.OutboxMaxRetries
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &ticketService{
		ticketRepo:      ticketRepo,
		userRepo:        userRepo,
		transferService: transferService,
		outboxRepo:      outboxRepo,
		transactor:      transactor,
		clock:           clk,
		transferTopic:   topic,
		maxRetries:      maxRetries,
	}
}

// Import validates the draft, then writes the ticket, its origin transfer and
// the transfer event in one transaction.
func (s *ticketService) Import(ctx context.Context, username string, draft *domain.TicketDraft) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.import")
	defer span.End()

	if username == "" {
		span.SetStatus(codes.Error, "missing username")
		return nil, domain.ErrMissingUsername
	}
	if draft == nil {
		span.SetStatus(codes.Error, "missing draft")
		return nil, domain.ErrMissingTicket
	}

	now := s.clock.Now()
	if err := draft.Validate(now); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "user not found")
		return nil, domain.ErrUserNotFound
	}

	ticket := domain.NewTicket(user.ID, draft, now)
	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("user_id", user.ID),
	)

	err = s.transactor.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ticketRepo.Create(ctx, ticket); err != nil {
			return err
		}
		transfer, err := s.transferService.Create(ctx, user.ID, &user.ID, ticket.ID, ticket.Cost)
		if err != nil {
			return err
		}
		return s.publishTransfer(ctx, transfer, ticket.EventName, now)
	})
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}

	metrics.RecordImport()
	logger.Get().Info("ticket imported",
		zap.String("ticket_id", ticket.ID),
		zap.String("username", username),
		zap.String("event_name", ticket.EventName),
		zap.String("cost", ticket.Cost.StringFixed(2)),
	)

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// Buy runs the purchase in one transaction. The ticket row is locked first,
// then both balances in ascending user ID order, and every rule is checked
// against the locked rows.
func (s *ticketService) Buy(ctx context.Context, username, ticketID string) (*Purchase, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.buy")
	defer span.End()

	start := time.Now()

	if username == "" {
		span.SetStatus(codes.Error, "missing username")
		return nil, domain.ErrMissingUsername
	}
	if ticketID == "" {
		span.SetStatus(codes.Error, "missing ticket id")
		return nil, domain.ErrMissingTicketID
	}

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("username", username),
	)

	var purchase *Purchase
	err := s.transactor.WithTx(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return domain.ErrTicketNotFound
		}
		if !ticket.IsOnMarket() {
			return domain.ErrTicketOffMarket
		}

		now := s.clock.Now()
		if ticket.HasEnded(now) {
			return domain.ErrEventEnded
		}

		owner, err := s.userRepo.GetByID(ctx, ticket.UserID)
		if err != nil {
			return err
		}
		if owner == nil {
			return domain.ErrOwnerNotFound
		}

		buyer, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if buyer == nil {
			return domain.ErrUserNotFound
		}
		if buyer.ID == owner.ID {
			return domain.ErrAlreadyOwner
		}

		buyer, owner, err = s.lockPair(ctx, buyer.ID, owner.ID)
		if err != nil {
			return err
		}
		if !buyer.CanAfford(ticket.Cost) {
			return domain.ErrInsufficientFunds
		}

		price := ticket.Cost
		buyer.Debit(price, now)
		owner.Credit(price, now)
		ticket.TransferTo(buyer.ID, now)

		if err := s.userRepo.UpdateBalance(ctx, buyer.ID, buyer.Balance, now); err != nil {
			return err
		}
		if err := s.userRepo.UpdateBalance(ctx, owner.ID, owner.Balance, now); err != nil {
			return err
		}
		if err := s.ticketRepo.Update(ctx, ticket); err != nil {
			return err
		}

		transfer, err := s.transferService.Create(ctx, buyer.ID, &owner.ID, ticket.ID, price)
		if err != nil {
			return err
		}
		if err := s.publishTransfer(ctx, transfer, ticket.EventName, now); err != nil {
			return err
		}

		purchase = &Purchase{Ticket: ticket, Transfer: transfer, Buyer: buyer}
		return nil
	})
	if err != nil {
		metrics.RecordPurchase(purchaseResult(err), decimal.Zero, time.Since(start))
		if domain.KindOf(err) == "" {
			telemetry.SetSpanError(ctx, err)
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	metrics.RecordPurchase(metrics.ResultSuccess, purchase.Transfer.Cost, time.Since(start))
	logger.Get().Info("ticket sold",
		zap.String("ticket_id", purchase.Ticket.ID),
		zap.String("buyer_id", purchase.Transfer.BuyerID),
		zap.Stringp("seller_id", purchase.Transfer.SellerID),
		zap.String("cost", purchase.Transfer.Cost.StringFixed(2)),
	)

	span.SetStatus(codes.Ok, "")
	return purchase, nil
}

// lockPair locks both users in ascending ID order so that two purchases
// touching the same pair of accounts cannot deadlock.
func (s *ticketService) lockPair(ctx context.Context, buyerID, ownerID string) (buyer, owner *domain.User, err error) {
	first, second := buyerID, ownerID
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*domain.User, 2)
	for _, id := range []string{first, second} {
		u, err := s.userRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if u == nil {
			if id == ownerID {
				return nil, nil, domain.ErrOwnerNotFound
			}
			return nil, nil, domain.ErrUserNotFound
		}
		locked[id] = u
	}
	return locked[buyerID], locked[ownerID], nil
}

// Move sets the state of a ticket. Any state may follow any other.
func (s *ticketService) Move(ctx context.Context, username, ticketID string, state domain.TicketState) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.move")
	defer span.End()

	if username == "" {
		return nil, domain.ErrMissingUsername
	}
	if ticketID == "" {
		return nil, domain.ErrMissingTicketID
	}
	if !state.IsValid() {
		span.SetStatus(codes.Error, "invalid state")
		return nil, domain.ErrInvalidTicketState
	}

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("state", state.String()),
	)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if ticket == nil {
		span.SetStatus(codes.Error, "ticket not found")
		return nil, domain.ErrTicketNotFound
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "user not found")
		return nil, domain.ErrUserNotFound
	}
	if !ticket.IsOwnedBy(user.ID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotTicketOwner
	}

	ticket.MoveTo(state, s.clock.Now())
	if err := s.ticketRepo.Update(ctx, ticket); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordStateMove(state.String())
	logger.Get().Info("ticket state moved",
		zap.String("ticket_id", ticket.ID),
		zap.String("username", username),
		zap.String("state", state.String()),
	)

	return ticket, nil
}

// GetTicketsOnTheMarket lists the user's tickets that are for sale
func (s *ticketService) GetTicketsOnTheMarket(ctx context.Context, username string) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.get_on_market")
	defer span.End()

	return s.listFor(ctx, username, domain.OnMarketFor)
}

// GetUserTickets lists every ticket the user owns
func (s *ticketService) GetUserTickets(ctx context.Context, username string) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.get_user_tickets")
	defer span.End()

	return s.listFor(ctx, username, domain.OwnedBy)
}

func (s *ticketService) listFor(ctx context.Context, username string, filterFor func(ownerID string) domain.TicketFilter) ([]*domain.Ticket, error) {
	if username == "" {
		return nil, domain.ErrMissingUsername
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	tickets, err := s.ticketRepo.List(ctx, filterFor(user.ID))
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if tickets == nil {
		tickets = []*domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket retrieves a ticket by ID
func (s *ticketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.get")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrMissingTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrTicketNotFound
	}
	return ticket, nil
}

// publishTransfer stores the transfer event in the outbox of the current transaction
func (s *ticketService) publishTransfer(ctx context.Context, transfer *domain.Transfer, eventName string, now time.Time) error {
	if s.outboxRepo == nil {
		return nil
	}
	msg, err := domain.TransferOutboxMessage(transfer, eventName, s.transferTopic, now)
	if err != nil {
		return err
	}
	msg.Headers = telemetry.InjectMap(ctx)
	msg.MaxRetries = s.maxRetries
	return s.outboxRepo.Create(ctx, msg)
}

func purchaseResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrConcurrentModification):
		return metrics.ResultConflict
	case domain.KindOf(err) != "":
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
