package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/RugileVa/TiGets/internal/clock"
	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/internal/dto"
)

const testSecret = "test-secret"

func newAuthFixture(clk clock.Clock) (*memoryStore, AuthService) {
	store := newMemoryStore()
	svc := NewAuthService(&MockUserRepository{store: store}, store, clk, &AuthServiceConfig{
		JWTSecret:         testSecret,
		Issuer:            "tigets",
		AccessTokenExpiry: time.Hour,
		BcryptCost:        bcrypt.MinCost,
		InitialBalance:    decimal.NewFromInt(25),
	})
	return store, svc
}

func registerRequest(username string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Username: username,
		Password: "password123",
		Name:     "Test",
		Surname:  "User",
		Email:    username + "@Example.com",
	}
}

func TestAuthService_Register(t *testing.T) {
	store, svc := newAuthFixture(clock.NewFixed(testNow))
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerRequest("alice"))

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "25.00", resp.User.Balance)

	stored := store.user(resp.User.ID)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))

	_, err = svc.Register(ctx, registerRequest("alice"))
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	assert.True(t, domain.IsConflictError(err))

	dup := registerRequest("alice2")
	dup.Email = "alice@example.com"
	_, err = svc.Register(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	_, svc := newAuthFixture(clock.NewFixed(testNow))
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest("bob"))
	require.NoError(t, err)

	resp, err := svc.Login(ctx, &dto.LoginRequest{Username: "bob", Password: "password123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, resp.User.ID, claims.UserID)

	identity, err := svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", identity.Username)

	_, err = svc.Login(ctx, &dto.LoginRequest{Username: "bob", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, &dto.LoginRequest{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.True(t, domain.IsUnauthenticatedError(err))
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	_, issuer := newAuthFixture(clock.NewFixed(testNow))
	ctx := context.Background()

	resp, err := issuer.Register(ctx, registerRequest("carol"))
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		_, later := newAuthFixture(clock.NewFixed(testNow.Add(2 * time.Hour)))

		_, err := later.ValidateToken(ctx, resp.AccessToken)

		assert.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("wrong signature", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id":  "u-1",
			"username": "carol",
			"iss":      "tigets",
			"exp":      testNow.Add(time.Hour).Unix(),
		}).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		_, err = issuer.ValidateToken(ctx, token)

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id":  "u-1",
			"username": "carol",
			"iss":      "someone-else",
			"exp":      testNow.Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = issuer.ValidateToken(ctx, token)

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("missing claims", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": "tigets",
			"exp": testNow.Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = issuer.ValidateToken(ctx, token)

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.ValidateToken(ctx, "not-a-token")

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestAuthService_Deposit(t *testing.T) {
	store, svc := newAuthFixture(clock.NewFixed(testNow))
	ctx := context.Background()
	dave := store.addUser("dave", "10")

	user, err := svc.Deposit(ctx, "dave", decimal.RequireFromString("15.25"))

	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("25.25")))
	assert.True(t, store.user(dave.ID).Balance.Equal(decimal.RequireFromString("25.25")))

	_, err = svc.Deposit(ctx, "dave", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Deposit(ctx, "dave", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Deposit(ctx, "ghost", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_GetUserByUsername(t *testing.T) {
	store, svc := newAuthFixture(clock.NewFixed(testNow))
	store.addUser("erin", "0")

	user, err := svc.GetUserByUsername(context.Background(), "erin")
	require.NoError(t, err)
	assert.Equal(t, "erin", user.Username)

	_, err = svc.GetUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.GetUserByUsername(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingUsername)
}
