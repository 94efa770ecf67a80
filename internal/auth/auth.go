package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents merchant JWT claims
type Claims struct {
	MerchantID string `json:"merchant_id"`
	jwt.RegisteredClaims
}

// TokenGenerator issues and validates merchant tokens.
type TokenGenerator interface {
	GenerateToken(merchantID string) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string
	now      func() time.Time
}

type TokenResponse struct {
	MerchantID string    `json:"merchant_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrMissingMerchantID = errors.New("merchant id is required")
)
