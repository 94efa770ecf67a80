package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultIssuer = "payment-gateway"

// Service is the main auth service with dependencies
type Service struct {
	tokenGenerator TokenGenerator
}

// NewService creates a new auth service
func NewService(tokenGen TokenGenerator) *Service {
	return &Service{
		tokenGenerator: tokenGen,
	}
}

// NewJWTTokenGenerator creates an HS256 token generator
func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTTokenGenerator{
		Secret:   []byte(secret),
		TokenTTL: ttl,
		Issuer:   defaultIssuer,
		now:      time.Now,
	}
}

// IssueToken mints a token for merchantID
func (s *Service) IssueToken(merchantID string) (TokenResponse, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return TokenResponse{}, ErrMissingMerchantID
	}

	token, expiresAt, err := s.tokenGenerator.GenerateToken(merchantID)
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		MerchantID: merchantID,
		Token:      token,
		ExpiresAt:  expiresAt,
	}, nil
}

// ValidateAccessToken validates a token and returns its claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// GenerateToken creates a signed merchant token
func (j *JWTTokenGenerator) GenerateToken(merchantID string) (string, time.Time, error) {
	now := j.clock()
	expiresAt := now.Add(j.TokenTTL)

	claims := &Claims{
		MerchantID: merchantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.Issuer,
			Subject:   merchantID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithTimeFunc(j.clock))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MerchantID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (j *JWTTokenGenerator) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}
