package dto

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RugileVa/TiGets/internal/domain"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,50}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex    = regexp.MustCompile(`^\+?[0-9 ]{6,20}$`)
)

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	Name        string `json:"name" binding:"required"`
	Surname     string `json:"surname" binding:"required"`
	Email       string `json:"email" binding:"required"`
	PhoneNumber string `json:"phone_number"`
}

// Validate validates the RegisterRequest
func (r *RegisterRequest) Validate() (bool, string) {
	if !usernameRegex.MatchString(r.Username) {
		return false, "Username must be 3-50 letters, digits, dots, dashes or underscores"
	}
	if len(r.Password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(r.Password) > 72 {
		return false, "Password must not exceed 72 characters"
	}
	if !emailRegex.MatchString(r.Email) {
		return false, "Invalid email format"
	}
	if r.PhoneNumber != "" && !phoneRegex.MatchString(r.PhoneNumber) {
		return false, "Invalid phone number"
	}
	return true, ""
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// DepositRequest represents a balance top-up
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Balance     string `json:"balance"`
	CreatedAt   string `json:"created_at"`
}

// FromUser converts a domain user to its response form
func FromUser(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Name:        u.Name,
		Surname:     u.Surname,
		PhoneNumber: u.PhoneNumber,
		Balance:     u.Balance.StringFixed(2),
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}
