package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketState is the market state of a ticket
type TicketState string

const (
	TicketStateOnMarket  TicketState = "on_market"
	TicketStateOffMarket TicketState = "off_market"
)

// IsValid checks if the state is a known TicketState
func (s TicketState) IsValid() bool {
	switch s {
	case TicketStateOnMarket, TicketStateOffMarket:
		return true
	}
	return false
}

// String returns the string representation of TicketState
func (s TicketState) String() string {
	return string(s)
}

// ParseTicketState converts external input into a TicketState
func ParseTicketState(raw string) (TicketState, error) {
	s := TicketState(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrInvalidTicketState
	}
	return s, nil
}

// Ticket is a resellable admission to an event
type Ticket struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	State     TicketState     `json:"state"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   time.Time       `json:"valid_to"`
	EventName string          `json:"event_name"`
	Address   string          `json:"address"`
	Cost      decimal.Decimal `json:"cost"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TicketDraft is a ticket as submitted for import, before it has an id or owner
type TicketDraft struct {
	ValidFrom time.Time
	ValidTo   time.Time
	EventName string
	Address   string
	Cost      decimal.Decimal
	State     TicketState
}

// Validate checks the draft against now. Checks run in a fixed order so the
// first failing rule is the one reported.
func (d *TicketDraft) Validate(now time.Time) error {
	if d.ValidFrom.After(d.ValidTo) {
		return ErrInvalidValidity
	}
	if !d.ValidTo.After(now) {
		return ErrTicketExpired
	}
	if d.Cost.IsNegative() {
		return ErrNegativeCost
	}
	if d.State != "" && !d.State.IsValid() {
		return ErrInvalidTicketState
	}
	return nil
}

// NewTicket creates a ticket owned by ownerID from a validated draft.
// A draft without a state goes straight on the market.
func NewTicket(ownerID string, draft *TicketDraft, now time.Time) *Ticket {
	state := draft.State
	if state == "" {
		state = TicketStateOnMarket
	}
	return &Ticket{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		State:     state,
		ValidFrom: draft.ValidFrom,
		ValidTo:   draft.ValidTo,
		EventName: strings.TrimSpace(draft.EventName),
		Address:   strings.TrimSpace(draft.Address),
		Cost:      draft.Cost,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOnMarket reports whether the ticket can currently be bought
func (t *Ticket) IsOnMarket() bool {
	return t.State != TicketStateOffMarket
}

// HasEnded reports whether the ticket's validity window has closed at now
func (t *Ticket) HasEnded(now time.Time) bool {
	return !now.Before(t.ValidTo)
}

// IsOwnedBy checks ticket ownership
func (t *Ticket) IsOwnedBy(userID string) bool {
	return t.UserID == userID
}

// TransferTo hands the ticket to a buyer and takes it off the market
func (t *Ticket) TransferTo(buyerID string, now time.Time) {
	t.UserID = buyerID
	t.State = TicketStateOffMarket
	t.UpdatedAt = now
}

// MoveTo sets the market state
func (t *Ticket) MoveTo(state TicketState, now time.Time) {
	t.State = state
	t.UpdatedAt = now
}

// TicketFilter selects tickets. Zero-valued fields do not constrain.
type TicketFilter struct {
	OwnerID string
	State   TicketState
}

// OnMarketFor is the filter for a user's tickets that are up for sale
func OnMarketFor(ownerID string) TicketFilter {
	return TicketFilter{OwnerID: ownerID, State: TicketStateOnMarket}
}

// OwnedBy is the filter for every ticket a user holds
func OwnedBy(ownerID string) TicketFilter {
	return TicketFilter{OwnerID: ownerID}
}

// Matches evaluates the filter in memory
func (f TicketFilter) Matches(t *Ticket) bool {
	if f.OwnerID != "" && t.UserID != f.OwnerID {
		return false
	}
	if f.State != "" && t.State != f.State {
		return false
	}
	return true
}
