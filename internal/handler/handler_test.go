package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/internal/dto"
	"github.com/RugileVa/TiGets/internal/service"
	"github.com/RugileVa/TiGets/pkg/middleware"
)

// MockTicketService is a mock implementation of TicketService
type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) Import(ctx context.Context, username string, draft *domain.TicketDraft) (*domain.Ticket, error) {
	args := m.Called(ctx, username, draft)
	if t := args.Get(0); t != nil {
		return t.(*domain.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTicketService) Buy(ctx context.Context, username, ticketID string) (*service.Purchase, error) {
	args := m.Called(ctx, username, ticketID)
	if p := args.Get(0); p != nil {
		return p.(*service.Purchase), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTicketService) Move(ctx context.Context, username, ticketID string, state domain.TicketState) (*domain.Ticket, error) {
	args := m.Called(ctx, username, ticketID, state)
	if t := args.Get(0); t != nil {
		return t.(*domain.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTicketService) GetTicketsOnTheMarket(ctx context.Context, username string) ([]*domain.Ticket, error) {
	args := m.Called(ctx, username)
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetUserTickets(ctx context.Context, username string) ([]*domain.Ticket, error) {
	args := m.Called(ctx, username)
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID)
	if t := args.Get(0); t != nil {
		return t.(*domain.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTransferService is a mock implementation of TransferService
type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) Create(ctx context.Context, buyerID string, sellerID *string, ticketID string, cost decimal.Decimal) (*domain.Transfer, error) {
	args := m.Called(ctx, buyerID, sellerID, ticketID, cost)
	if t := args.Get(0); t != nil {
		return t.(*domain.Transfer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransferService) GetTransfers(ctx context.Context, ticketID string) ([]*domain.Transfer, error) {
	args := m.Called(ctx, ticketID)
	return args.Get(0).([]*domain.Transfer), args.Error(1)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int `json:"total"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func setupTicketTestRouter(h *TicketHandler, username string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	if username != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyUserID, "user-"+username)
			c.Set(middleware.ContextKeyUsername, username)
			c.Next()
		})
	}

	api := router.Group("/api/v1")
	{
		api.POST("/tickets", h.Import)
		api.GET("/tickets", h.ListMine)
		api.GET("/tickets/:id", h.Get)
		api.POST("/tickets/:id/buy", h.Buy)
		api.PUT("/tickets/:id/state", h.Move)
		api.GET("/tickets/:id/transfers", h.Transfers)
		api.GET("/users/:username/tickets/market", h.ListOnMarket)
	}
	return router
}

func sampleTicket(owner string, state domain.TicketState) *domain.Ticket {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	return &domain.Ticket{
		ID:        "ticket-1",
		UserID:    owner,
		State:     state,
		ValidFrom: now,
		ValidTo:   now.Add(3 * time.Hour),
		EventName: "Jazz Night",
		Address:   "Kaunas",
		Cost:      decimal.RequireFromString("25"),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTicketHandler_Import(t *testing.T) {
	validBody := map[string]interface{}{
		"event_name": "Jazz Night",
		"address":    "Kaunas",
		"valid_from": "2026-08-01T20:00:00Z",
		"valid_to":   "2026-08-01T23:00:00Z",
		"cost":       "25.00",
	}

	t.Run("created", func(t *testing.T) {
		svc := new(MockTicketService)
		svc.On("Import", mock.Anything, "alice", mock.MatchedBy(func(d *domain.TicketDraft) bool {
			return d.EventName == "Jazz Night" && d.Cost.Equal(decimal.NewFromInt(25))
		})).Return(sampleTicket("user-alice", domain.TicketStateOnMarket), nil)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "alice"), http.MethodPost, "/api/v1/tickets", validBody)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decode(t, w)
		assert.True(t, env.Success)
		var ticket dto.TicketResponse
		require.NoError(t, json.Unmarshal(env.Data, &ticket))
		assert.Equal(t, "25.00", ticket.Cost)
		assert.Equal(t, "on_market", ticket.State)
		svc.AssertExpectations(t)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockTicketService)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), ""), http.MethodPost, "/api/v1/tickets", validBody)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "Import", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad body", func(t *testing.T) {
		svc := new(MockTicketService)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "alice"), http.MethodPost, "/api/v1/tickets", map[string]string{"address": "x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("domain validation maps to 400", func(t *testing.T) {
		svc := new(MockTicketService)
		svc.On("Import", mock.Anything, "alice", mock.Anything).Return(nil, domain.ErrTicketExpired)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "alice"), http.MethodPost, "/api/v1/tickets", validBody)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, "ticket has expired", env.Error.Message)
	})
}

func TestTicketHandler_Buy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: domain.ErrTicketNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "off market", err: domain.ErrTicketOffMarket, wantStatus: http.StatusUnprocessableEntity, wantCode: "RULE_VIOLATION"},
		{name: "insufficient funds", err: domain.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity, wantCode: "RULE_VIOLATION"},
		{name: "conflict", err: domain.ErrConcurrentModification, wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "unexpected", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTicketService)
			svc.On("Buy", mock.Anything, "bob", "ticket-1").Return(nil, tt.err)

			w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "bob"), http.MethodPost, "/api/v1/tickets/ticket-1/buy", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}

	t.Run("success", func(t *testing.T) {
		svc := new(MockTicketService)
		sold := sampleTicket("user-bob", domain.TicketStateOffMarket)
		svc.On("Buy", mock.Anything, "bob", "ticket-1").Return(&service.Purchase{
			Ticket: sold,
			Buyer:  &domain.User{ID: "user-bob", Balance: decimal.RequireFromString("75")},
		}, nil)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "bob"), http.MethodPost, "/api/v1/tickets/ticket-1/buy", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var purchase dto.PurchaseResponse
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &purchase))
		assert.Equal(t, "75.00", purchase.Balance)
		assert.Equal(t, "off_market", purchase.Ticket.State)
	})
}

func TestTicketHandler_Move(t *testing.T) {
	t.Run("forbidden for non owner", func(t *testing.T) {
		svc := new(MockTicketService)
		svc.On("Move", mock.Anything, "mallory", "ticket-1", domain.TicketStateOnMarket).Return(nil, domain.ErrNotTicketOwner)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "mallory"), http.MethodPut, "/api/v1/tickets/ticket-1/state", map[string]string{"state": "on_market"})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects unknown state before the service", func(t *testing.T) {
		svc := new(MockTicketService)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "alice"), http.MethodPut, "/api/v1/tickets/ticket-1/state", map[string]string{"state": "1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Move", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("moves", func(t *testing.T) {
		svc := new(MockTicketService)
		svc.On("Move", mock.Anything, "alice", "ticket-1", domain.TicketStateOffMarket).
			Return(sampleTicket("user-alice", domain.TicketStateOffMarket), nil)

		w := doJSON(setupTicketTestRouter(NewTicketHandler(svc, nil), "alice"), http.MethodPut, "/api/v1/tickets/ticket-1/state", map[string]string{"state": "off_market"})

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestTicketHandler_Listings(t *testing.T) {
	svc := new(MockTicketService)
	svc.On("GetUserTickets", mock.Anything, "alice").Return([]*domain.Ticket{
		sampleTicket("user-alice", domain.TicketStateOnMarket),
		sampleTicket("user-alice", domain.TicketStateOffMarket),
	}, nil)
	svc.On("GetTicketsOnTheMarket", mock.Anything, "alice").Return([]*domain.Ticket{
		sampleTicket("user-alice", domain.TicketStateOnMarket),
	}, nil)
	svc.On("GetTicketsOnTheMarket", mock.Anything, "ghost").Return([]*domain.Ticket(nil), domain.ErrUserNotFound)

	router := setupTicketTestRouter(NewTicketHandler(svc, nil), "alice")

	w := doJSON(router, http.MethodGet, "/api/v1/tickets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode(t, w).Meta.Total)

	w = doJSON(router, http.MethodGet, "/api/v1/users/alice/tickets/market", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Meta.Total)

	w = doJSON(router, http.MethodGet, "/api/v1/users/ghost/tickets/market", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTicketHandler_Transfers(t *testing.T) {
	transfers := new(MockTransferService)
	owner := "user-alice"
	transfers.On("GetTransfers", mock.Anything, "ticket-1").Return([]*domain.Transfer{
		{ID: "tr-1", TicketID: "ticket-1", BuyerID: owner, SellerID: &owner, Kind: domain.TransferKindOrigin, Cost: decimal.NewFromInt(25)},
	}, nil)

	router := setupTicketTestRouter(NewTicketHandler(new(MockTicketService), transfers), "")

	w := doJSON(router, http.MethodGet, "/api/v1/tickets/ticket-1/transfers", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var history []dto.TransferResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "origin", history[0].Kind)
	assert.Equal(t, "25.00", history[0].Cost)
}
