package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
)

// ErrInvalidRefreshToken covers unknown, already-used and expired
// refresh tokens alike
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// TokenService mints short-lived access tokens and rotates the
// single-use refresh credential. Issuance on login belongs to the
// platform auth service; this service only rotates.
type TokenService struct {
	tokens    RefreshTokenStore
	jwtSecret []byte
}

// NewTokenService creates a new token service
func NewTokenService(tokens RefreshTokenStore, jwtSecret string) *TokenService {
	return &TokenService{
		tokens:    tokens,
		jwtSecret: []byte(jwtSecret),
	}
}

// IssuePair mints an access token and a fresh refresh token for a user
func (s *TokenService) IssuePair(ctx context.Context, userID string) (*models.TokenPairResponse, error) {
	access, err := s.mintAccess(userID)
	if err != nil {
		return nil, err
	}

	refresh := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &models.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    int(accessTokenTTL.Seconds()),
	}, nil
}

// Rotate consumes a refresh token and issues a new pair. A token
// rotates at most once: the consume is a single-statement delete, so a
// replayed token finds nothing to consume.
func (s *TokenService) Rotate(ctx context.Context, token string) (*models.TokenPairResponse, error) {
	stored, err := s.tokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	if stored.Expired(time.Now()) {
		// already deleted by the consume; just reject
		return nil, ErrInvalidRefreshToken
	}

	return s.IssuePair(ctx, stored.UserID)
}

func (s *TokenService) mintAccess(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"uid": userID,
		"iat": now.Unix(),
		"exp": now.Add(accessTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
