package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/RugileVa/TiGets/internal/clock"
	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/internal/repository"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

// TransferService defines the interface for the ticket transfer log
type TransferService interface {
	// Create appends a transfer. A nil or self seller marks the ticket's origin.
	Create(ctx context.Context, buyerID string, sellerID *string, ticketID string, cost decimal.Decimal) (*domain.Transfer, error)
	// GetTransfers returns a ticket's history in insertion order
	GetTransfers(ctx context.Context, ticketID string) ([]*domain.Transfer, error)
}

// transferService implements TransferService
type transferService struct {
	transferRepo repository.TransferRepository
	clock        clock.Clock
}

// NewTransferService creates a new TransferService
func NewTransferService(transferRepo repository.TransferRepository, clk clock.Clock) TransferService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &transferService{
		transferRepo: transferRepo,
		clock:        clk,
	}
}

// Create appends a transfer record
func (s *transferService) Create(ctx context.Context, buyerID string, sellerID *string, ticketID string, cost decimal.Decimal) (*domain.Transfer, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.transfer.create")
	defer span.End()

	if ticketID == "" {
		span.SetStatus(codes.Error, "missing ticket id")
		return nil, domain.ErrMissingTicketID
	}

	kind := domain.TransferKindSale
	if sellerID == nil || *sellerID == buyerID {
		kind = domain.TransferKindOrigin
	}

	transfer := domain.NewTransfer(kind, ticketID, buyerID, sellerID, cost, s.clock.Now())
	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("transfer_kind", string(kind)),
	)

	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return transfer, nil
}

// GetTransfers returns every transfer of a ticket
func (s *transferService) GetTransfers(ctx context.Context, ticketID string) ([]*domain.Transfer, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.transfer.get_transfers")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrMissingTicketID
	}

	transfers, err := s.transferRepo.ListByTicketID(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}

	span.SetAttributes(attribute.Int("count", len(transfers)))
	return transfers, nil
}
