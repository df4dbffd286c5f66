// Package auth issues and validates the HS256 bearer tokens that identify a
// mealpilot user. The subject claim carries the user id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer   = "mealpilot-api"
	DefaultTokenTTL = 24 * time.Hour
	DefaultLeeway   = 30 * time.Second

	// MinSecretLength is the shortest HS256 secret accepted.
	MinSecretLength = 32
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrEmptyUserID  = errors.New("userID cannot be empty")
	ErrWeakSecret   = fmt.Errorf("jwt secret must be at least %d characters", MinSecretLength)
)

// Claims are the registered claims plus the caller's roles.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// UserID is the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Service signs with the current secret and accepts tokens signed with
// either the current or the previous one, so secrets can rotate without
// logging everyone out.
type Service struct {
	current  []byte
	previous []byte
	issuer   string
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithPreviousSecret keeps accepting tokens signed with an older secret.
func WithPreviousSecret(secret string) Option {
	return func(s *Service) {
		if secret != "" {
			s.previous = []byte(secret)
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLeeway(leeway time.Duration) Option {
	return func(s *Service) { s.leeway = leeway }
}

// WithClock overrides the issuing clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService fails fast on secrets shorter than MinSecretLength.
func NewService(secret string, opts ...Option) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	s := &Service{
		current: []byte(secret),
		issuer:  DefaultIssuer,
		ttl:     DefaultTokenTTL,
		leeway:  DefaultLeeway,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.previous != nil && len(s.previous) < MinSecretLength {
		return nil, fmt.Errorf("previous %w", ErrWeakSecret)
	}
	return s, nil
}

// TTL is the lifetime given to issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs an access token for userID.
func (s *Service) Issue(userID string, roles ...string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.current)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and checks signature, issuer, expiry and subject.
func (s *Service) Validate(token string) (*Claims, error) {
	claims, err := s.parse(token, s.current)
	if err != nil && s.previous != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(token, s.previous)
	}
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) parse(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
