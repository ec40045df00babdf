package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/RugileVa/TiGets/internal/clock"
	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/internal/dto"
	"github.com/RugileVa/TiGets/internal/repository"
	"github.com/RugileVa/TiGets/pkg/logger"
	"github.com/RugileVa/TiGets/pkg/middleware"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	JWTSecret         string
	Issuer            string
	AccessTokenExpiry time.Duration
	BcryptCost        int
	InitialBalance    decimal.Decimal
}

// AuthService defines the interface for the identity provider
type AuthService interface {
	// Register registers a new user
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	// Login authenticates a user
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	// ValidateToken validates an access token and returns claims
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	// Authenticate validates a bearer token for the HTTP middleware
	Authenticate(ctx context.Context, token string) (*middleware.Identity, error)
	// GetUserByUsername resolves a username to an account
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// Deposit credits amount to a user's balance
	Deposit(ctx context.Context, username string, amount decimal.Decimal) (*domain.User, error)
}

// authService implements AuthService
type authService struct {
	userRepo   repository.UserRepository
	transactor repository.Transactor
	clock      clock.Clock
	config     *AuthServiceConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repository.UserRepository,
	transactor repository.Transactor,
	clk clock.Clock,
	config *AuthServiceConfig,
) AuthService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.AccessTokenExpiry == 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &authService{
		userRepo:   userRepo,
		transactor: transactor,
		clock:      clk,
		config:     config,
	}
}

// Register registers a new user with the configured starting balance
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.register")
	defer span.End()

	span.SetAttributes(attribute.String("username", req.Username))

	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if existing != nil {
		span.SetStatus(codes.Error, "username taken")
		return nil, domain.ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hashedPassword),
		Name:         req.Name,
		Surname:      req.Surname,
		PhoneNumber:  req.PhoneNumber,
		Balance:      s.config.InitialBalance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique constraints still catch a username claimed since the lookup
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := s.issue(user)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}

	logger.Get().Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.login")
	defer span.End()

	span.SetAttributes(attribute.String("username", req.Username))

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, domain.ErrInvalidCredentials
	}

	resp, err := s.issue(user)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// ValidateToken validates an access token and returns claims
func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.Claims, error) {
	_, span := telemetry.StartSpan(ctx, "service.auth.validate_token")
	defer span.End()

	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.clock.Now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, jwt.ErrTokenExpired) {
			span.SetStatus(codes.Error, "token expired")
			return nil, domain.ErrTokenExpired
		}
		span.SetStatus(codes.Error, "invalid token")
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		span.SetStatus(codes.Error, "invalid claims")
		return nil, domain.ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	if userID == "" || username == "" {
		span.SetStatus(codes.Error, "invalid claims")
		return nil, domain.ErrInvalidToken
	}

	span.SetAttributes(attribute.String("user_id", userID))
	span.SetStatus(codes.Ok, "")
	return &domain.Claims{UserID: userID, Username: username}, nil
}

// Authenticate adapts ValidateToken to the auth middleware
func (s *authService) Authenticate(ctx context.Context, token string) (*middleware.Identity, error) {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// GetUserByUsername resolves a username
func (s *authService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.get_user")
	defer span.End()

	if username == "" {
		return nil, domain.ErrMissingUsername
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// Deposit credits a balance under a row lock
func (s *authService) Deposit(ctx context.Context, username string, amount decimal.Decimal) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.deposit")
	defer span.End()

	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, domain.ErrInvalidAmount
	}

	var updated *domain.User
	err := s.transactor.WithTx(ctx, func(ctx context.Context) error {
		user, err := s.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		locked, err := s.userRepo.GetByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrUserNotFound
		}

		now := s.clock.Now()
		locked.Credit(amount, now)
		if err := s.userRepo.UpdateBalance(ctx, locked.ID, locked.Balance, now); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Get().Info("balance deposited",
		zap.String("username", username),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", updated.Balance.StringFixed(2)),
	)
	return updated, nil
}

func (s *authService) issue(user *domain.User) (*dto.AuthResponse, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      now.Add(s.config.AccessTokenExpiry).Unix(),
		"iat":      now.Unix(),
	}
	if s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		User:        dto.FromUser(user),
	}, nil
}
