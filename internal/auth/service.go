// Package auth registers users and issues the JWTs the API authenticates with.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

const (
	issuer = "fjord-ledger"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Config holds authentication configuration
type Config struct {
	JWTSecret          []byte        // Secret key for signing tokens
	AccessTokenExpiry  time.Duration // How long access tokens are valid
	RefreshTokenExpiry time.Duration // How long refresh tokens are valid
}

// DefaultConfig returns the default token lifetimes
func DefaultConfig(jwtSecret string) Config {
	return Config{
		JWTSecret:          []byte(jwtSecret),
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

// Claims represents the JWT payload
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID  `json:"user_id"`
	Role      model.Role `json:"role"`
	TokenType string     `json:"token_type"` // "access" or "refresh"
}

// Principal returns the caller identity carried by the token
func (c *Claims) Principal() model.Principal {
	return model.Principal{UserID: c.UserID, Admin: c.Role == model.RoleAdmin}
}

// TokenPair contains both access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"` // Access token expiry
}

// Service handles authentication operations
type Service struct {
	config Config
	store  repository.Store
	clock  clock.Clock
	logger *zap.Logger
}

// NewService creates a new auth service
func NewService(config Config, store repository.Store, c clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		config: config,
		store:  store,
		clock:  c,
		logger: logger,
	}
}

// Register creates a new user with the user role
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.createUser(ctx, req.Email, req.Password, req.FullName, model.RoleUser)
}

// EnsureAdmin creates an administrator with the given credentials unless a
// user with that email already exists
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*model.User, error) {
	existing, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.User, error) {
		return q.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	user, err := s.createUser(ctx, email, password, "Administrator", model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("administrator created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) createUser(ctx context.Context, email, password, fullName string, role model.Role) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, q repository.Querier) error {
		return q.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates a user and returns tokens
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*TokenPair, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.User, error) {
		return q.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	})
	if errors.Is(err, model.ErrUserNotFound) {
		// Don't reveal whether email exists
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return s.generateTokenPair(user)
}

// RefreshTokens generates new tokens using a valid refresh token
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, model.ErrInvalidToken
	}

	// The user may have been removed since the token was issued
	user, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.User, error) {
		return q.GetUserByID(ctx, claims.UserID)
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	return s.generateTokenPair(user)
}

// ValidateToken parses and validates a JWT token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.config.JWTSecret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) generateTokenPair(user *model.User) (*TokenPair, error) {
	now := s.clock.Now()
	accessExpiry := now.Add(s.config.AccessTokenExpiry)

	accessSigned, err := s.sign(user, TokenTypeAccess, now, accessExpiry)
	if err != nil {
		return nil, err
	}
	refreshSigned, err := s.sign(user, TokenTypeRefresh, now, now.Add(s.config.RefreshTokenExpiry))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessSigned,
		RefreshToken: refreshSigned,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *Service) sign(user *model.User, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
		UserID:    user.ID,
		Role:      user.Role,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// HashPassword hashes a password with bcrypt's default cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
