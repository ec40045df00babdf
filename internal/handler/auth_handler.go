package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RugileVa/TiGets/internal/dto"
	"github.com/RugileVa/TiGets/internal/service"
	"github.com/RugileVa/TiGets/pkg/response"
)

// AuthHandler handles registration, login and profile requests
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, resp)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, resp)
}

// Me handles GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	username, ok := requireUsername(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.FromUser(user))
}
