package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RugileVa/TiGets/internal/domain"
)

// ImportTicketRequest represents the request to import a ticket into the caller's wallet
type ImportTicketRequest struct {
	EventName string          `json:"event_name" binding:"required,max=255"`
	Address   string          `json:"address" binding:"max=500"`
	ValidFrom time.Time       `json:"valid_from" binding:"required"`
	ValidTo   time.Time       `json:"valid_to" binding:"required"`
	Cost      decimal.Decimal `json:"cost"`
	State     string          `json:"state"` // on_market, off_market; empty imports on the market
}

// Validate checks request shape. Time rules are left to the domain, which knows "now".
func (r *ImportTicketRequest) Validate() (bool, string) {
	if strings.TrimSpace(r.EventName) == "" {
		return false, "Event name is required"
	}
	if !r.Cost.Equal(r.Cost.Round(2)) {
		return false, "Cost cannot have more than 2 decimal places"
	}
	if r.State != "" {
		if _, err := domain.ParseTicketState(r.State); err != nil {
			return false, "State must be on_market or off_market"
		}
	}
	return true, ""
}

// ToDraft converts the request into a domain draft
func (r *ImportTicketRequest) ToDraft() *domain.TicketDraft {
	draft := &domain.TicketDraft{
		ValidFrom: r.ValidFrom,
		ValidTo:   r.ValidTo,
		EventName: r.EventName,
		Address:   r.Address,
		Cost:      r.Cost,
	}
	if state, err := domain.ParseTicketState(r.State); err == nil {
		draft.State = state
	}
	return draft
}

// MoveTicketRequest represents the request to put a ticket on or off the market
type MoveTicketRequest struct {
	State string `json:"state" binding:"required"`
}

// ParseState returns the requested state
func (r *MoveTicketRequest) ParseState() (domain.TicketState, error) {
	return domain.ParseTicketState(r.State)
}

// TicketResponse represents a ticket
type TicketResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	State     string `json:"state"`
	EventName string `json:"event_name"`
	Address   string `json:"address"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
	Cost      string `json:"cost"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// FromTicket converts a domain ticket to its response form
func FromTicket(t *domain.Ticket) *TicketResponse {
	return &TicketResponse{
		ID:        t.ID,
		OwnerID:   t.UserID,
		State:     t.State.String(),
		EventName: t.EventName,
		Address:   t.Address,
		ValidFrom: t.ValidFrom.Format(time.RFC3339),
		ValidTo:   t.ValidTo.Format(time.RFC3339),
		Cost:      t.Cost.StringFixed(2),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

// FromTickets converts a slice, never returning nil
func FromTickets(tickets []*domain.Ticket) []*TicketResponse {
	out := make([]*TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, FromTicket(t))
	}
	return out
}

// PurchaseResponse is returned after a successful buy
type PurchaseResponse struct {
	Ticket  *TicketResponse `json:"ticket"`
	Balance string          `json:"balance"`
}
