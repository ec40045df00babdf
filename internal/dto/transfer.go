package dto

import (
	"time"

	"github.com/RugileVa/TiGets/internal/domain"
)

// TransferResponse represents one entry of a ticket's history
type TransferResponse struct {
	ID        string  `json:"id"`
	TicketID  string  `json:"ticket_id"`
	Kind      string  `json:"kind"`
	BuyerID   string  `json:"buyer_id"`
	SellerID  *string `json:"seller_id,omitempty"`
	Cost      string  `json:"cost"`
	CreatedAt string  `json:"created_at"`
}

// FromTransfers converts transfers preserving their order
func FromTransfers(transfers []*domain.Transfer) []*TransferResponse {
	out := make([]*TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, &TransferResponse{
			ID:        t.ID,
			TicketID:  t.TicketID,
			Kind:      string(t.Kind),
			BuyerID:   t.BuyerID,
			SellerID:  t.SellerID,
			Cost:      t.Cost.StringFixed(2),
			CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return out
}
