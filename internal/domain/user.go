package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a marketplace account holding a balance
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Name         string          `json:"name"`
	Surname      string          `json:"surname"`
	PhoneNumber  string          `json:"phone_number"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanAfford reports whether the balance covers amount
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// Debit subtracts amount from the balance
func (u *User) Debit(amount decimal.Decimal, now time.Time) {
	u.Balance = u.Balance.Sub(amount)
	u.UpdatedAt = now
}

// Credit adds amount to the balance
func (u *User) Credit(amount decimal.Decimal, now time.Time) {
	u.Balance = u.Balance.Add(amount)
	u.UpdatedAt = now
}

// Claims are the identity claims carried by an access token
type Claims struct {
	UserID   string
	Username string
}
