// Package auth authenticates wallets and issues the session tokens that
// carry them.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry is how long a session token stays valid.
const TokenExpiry = 24 * time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrEmptyWallet  = errors.New("wallet cannot be empty")
)

// Claims represents the JWT claims of a wallet session. Subject is the wallet.
type Claims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wallet"`
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithLeeway sets the clock skew tolerated on validation.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) { s.leeway = d }
}

// WithPreviousSecret enables validation of tokens signed before a key
// rotation. Empty disables it.
func WithPreviousSecret(secret string) Option {
	return func(s *JWTService) {
		if secret != "" {
			s.previousSecret = []byte(secret)
		}
	}
}

// WithClock overrides the time source used when issuing tokens.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// JWTService issues and validates HS256 session tokens.
// Tokens are signed with currentSecret but validate with either currentSecret
// or previousSecret.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService signing with secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		currentSecret: []byte(secret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken issues a session token for wallet.
func (s *JWTService) GenerateToken(wallet string) (string, error) {
	if wallet == "" {
		return "", ErrEmptyWallet
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
		Wallet: wallet,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.currentSecret)
}

// ValidateToken parses tokenString and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}
	if s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
		if err == nil {
			return claims, nil
		}
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Wallet == "" {
		claims.Wallet = claims.Subject
	}
	return claims, nil
}
