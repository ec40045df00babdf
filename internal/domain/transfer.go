package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferKind distinguishes the first record of a ticket from resales
type TransferKind string

const (
	// TransferKindOrigin is written on import. Buyer and seller are both the importer.
	TransferKindOrigin TransferKind = "origin"
	// TransferKindSale is written on every purchase
	TransferKindSale TransferKind = "sale"
)

// Transfer is an immutable entry in a ticket's ownership history
type Transfer struct {
	ID        string          `json:"id"`
	TicketID  string          `json:"ticket_id"`
	BuyerID   string          `json:"buyer_id"`
	SellerID  *string         `json:"seller_id,omitempty"`
	Kind      TransferKind    `json:"kind"`
	Cost      decimal.Decimal `json:"cost"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewTransfer creates a transfer record. A nil seller is allowed.
func NewTransfer(kind TransferKind, ticketID, buyerID string, sellerID *string, cost decimal.Decimal, now time.Time) *Transfer {
	return &Transfer{
		ID:        uuid.New().String(),
		TicketID:  ticketID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Kind:      kind,
		Cost:      cost,
		CreatedAt: now,
	}
}

// NewOriginTransfer records the import of ticket by its owner
func NewOriginTransfer(ticket *Ticket, now time.Time) *Transfer {
	owner := ticket.UserID
	return NewTransfer(TransferKindOrigin, ticket.ID, owner, &owner, ticket.Cost, now)
}

// NewSaleTransfer records a purchase from seller to buyer
func NewSaleTransfer(ticketID, buyerID, sellerID string, cost decimal.Decimal, now time.Time) *Transfer {
	return NewTransfer(TransferKindSale, ticketID, buyerID, &sellerID, cost, now)
}

// TicketTransferredEvent is the payload published for every transfer
type TicketTransferredEvent struct {
	EventID    string       `json:"event_id"`
	TransferID string       `json:"transfer_id"`
	TicketID   string       `json:"ticket_id"`
	Kind       TransferKind `json:"kind"`
	BuyerID    string       `json:"buyer_id"`
	SellerID   *string      `json:"seller_id,omitempty"`
	Cost       string       `json:"cost"`
	EventName  string       `json:"event_name,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewTicketTransferredEvent builds the event payload for t
func NewTicketTransferredEvent(t *Transfer, eventName string) *TicketTransferredEvent {
	return &TicketTransferredEvent{
		EventID:    uuid.New().String(),
		TransferID: t.ID,
		TicketID:   t.TicketID,
		Kind:       t.Kind,
		BuyerID:    t.BuyerID,
		SellerID:   t.SellerID,
		Cost:       t.Cost.StringFixed(2),
		EventName:  eventName,
		OccurredAt: t.CreatedAt,
	}
}
