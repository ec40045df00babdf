package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RugileVa/TiGets/pkg/response"
)

const (
	// ContextKeyUserID is the context key for the authenticated user's ID
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the context key for the authenticated user's name
	ContextKeyUsername = "username"
)

// Identity is what a validated access token says about the caller
type Identity struct {
	UserID   string
	Username string
}

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the gin context.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			response.Unauthorized(c, "Missing bearer token")
			c.Abort()
			return
		}

		identity, err := validator.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyUsername, identity.Username)
		c.Next()
	}
}

// GetUserID returns the authenticated user's ID
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextKeyUserID)
	return id, id != ""
}

// GetUsername returns the authenticated user's name
func GetUsername(c *gin.Context) (string, bool) {
	name := c.GetString(ContextKeyUsername)
	return name, name != ""
}
