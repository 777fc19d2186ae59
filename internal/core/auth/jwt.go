// Package auth validates bearer tokens issued by the identity provider.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stokku/internal/core/apperror"
	appctx "stokku/internal/core/context"
)

// Claims are the custom JWT claims carried by access tokens.
type Claims struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"session_id"`
	jwt.RegisteredClaims
}

// Config holds token validation settings.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// Leeway tolerated on exp/nbf checks.
	Leeway time.Duration
}

// JWTService validates tokens. Token issuance lives in the identity
// service; this side only verifies.
type JWTService struct {
	cfg Config
}

// NewJWTService creates a validator from config.
func NewJWTService(cfg Config) *JWTService {
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	return &JWTService{cfg: cfg}
}

// ValidateToken parses and verifies a bearer token, returning the
// user context embedded in its claims.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.cfg.Leeway),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid token").WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperror.NewUnauthorized("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, apperror.NewUnauthorized("token missing user_id")
	}

	return &appctx.UserContext{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
	}, nil
}
