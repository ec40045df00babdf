package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/RugileVa/TiGets/internal/dto"
	"github.com/RugileVa/TiGets/internal/service"
	"github.com/RugileVa/TiGets/pkg/response"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

// TicketHandler handles ticket and transfer HTTP requests
type TicketHandler struct {
	ticketService   service.TicketService
	transferService service.TransferService
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(ticketService service.TicketService, transferService service.TransferService) *TicketHandler {
	return &TicketHandler{
		ticketService:   ticketService,
		transferService: transferService,
	}
}

// Import handles POST /tickets
func (h *TicketHandler) Import(c *gin.Context) {
	username, ok := requireUsername(c)
	if !ok {
		return
	}

	var req dto.ImportTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	ticket, err := h.ticketService.Import(c.Request.Context(), username, req.ToDraft())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, dto.FromTicket(ticket))
}

// ListMine handles GET /tickets
func (h *TicketHandler) ListMine(c *gin.Context) {
	username, ok := requireUsername(c)
	if !ok {
		return
	}

	tickets, err := h.ticketService.GetUserTickets(c.Request.Context(), username)
	if err != nil {
		handleError(c, err)
		return
	}

	response.List(c, dto.FromTickets(tickets), len(tickets))
}

// ListOnMarket handles GET /users/:username/tickets/market
func (h *TicketHandler) ListOnMarket(c *gin.Context) {
	tickets, err := h.ticketService.GetTicketsOnTheMarket(c.Request.Context(), c.Param("username"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.List(c, dto.FromTickets(tickets), len(tickets))
}

// Get handles GET /tickets/:id
func (h *TicketHandler) Get(c *gin.Context) {
	ticket, err := h.ticketService.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.FromTicket(ticket))
}

// Buy handles POST /tickets/:id/buy
func (h *TicketHandler) Buy(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.buy")
	defer span.End()

	username, ok := requireUsername(c)
	if !ok {
		return
	}

	ticketID := c.Param("id")
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	purchase, err := h.ticketService.Buy(ctx, username, ticketID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, &dto.PurchaseResponse{
		Ticket:  dto.FromTicket(purchase.Ticket),
		Balance: purchase.Buyer.Balance.StringFixed(2),
	})
}

// Move handles PUT /tickets/:id/state
func (h *TicketHandler) Move(c *gin.Context) {
	username, ok := requireUsername(c)
	if !ok {
		return
	}

	var req dto.MoveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	state, err := req.ParseState()
	if err != nil {
		handleError(c, err)
		return
	}

	ticket, err := h.ticketService.Move(c.Request.Context(), username, c.Param("id"), state)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.FromTicket(ticket))
}

// Transfers handles GET /tickets/:id/transfers
func (h *TicketHandler) Transfers(c *gin.Context) {
	transfers, err := h.transferService.GetTransfers(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.List(c, dto.FromTransfers(transfers), len(transfers))
}
