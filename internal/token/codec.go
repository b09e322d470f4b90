// Package token signs and verifies the bearer tokens handed to clients.
//
// Access and refresh tokens are HS256 JWTs signed with independent secrets, so a
// token of one purpose never verifies as the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Purpose int

const (
	Access Purpose = iota
	Refresh
)

func (p Purpose) String() string {
	switch p {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	}
	return fmt.Sprintf("purpose(%d)", int(p))
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour

	audience = "user"
)

// Claims is the decoded payload. UserID is zero for refresh tokens.
type Claims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Now overrides the clock used for iat/exp and validation.
	Now func() time.Time
}

type Codec struct {
	keys map[Purpose]key
	now  func() time.Time
}

type key struct {
	secret []byte
	ttl    time.Duration
}

type jwtClaims struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

type signOptions struct {
	ttl time.Duration
}

type SignOption func(*signOptions)

// WithExpiry overrides the purpose's default lifetime for one token.
func WithExpiry(d time.Duration) SignOption {
	return func(o *signOptions) {
		o.ttl = d
	}
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{
		keys: map[Purpose]key{
			Access:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			Refresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		now: cfg.Now,
	}, nil
}

// TTL returns the default lifetime of tokens of the given purpose.
func (c *Codec) TTL(purpose Purpose) time.Duration {
	return c.keys[purpose].ttl
}

func (c *Codec) Sign(claims Claims, purpose Purpose, opts ...SignOption) (string, error) {
	k, ok := c.keys[purpose]
	if !ok {
		return "", fmt.Errorf("token: unknown %s", purpose)
	}
	if claims.SessionID == uuid.Nil {
		return "", errors.New("token: session id is required")
	}
	if purpose == Access && claims.UserID == uuid.Nil {
		return "", errors.New("token: user id is required for access tokens")
	}

	o := signOptions{ttl: k.ttl}
	for _, opt := range opts {
		opt(&o)
	}

	now := c.now()
	payload := jwtClaims{
		SessionID: claims.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(o.ttl)),
		},
	}
	if purpose == Access {
		payload.UserID = claims.UserID.String()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(k.secret)
}

// Verify checks signature, structure and expiry.
func (c *Codec) Verify(raw string, purpose Purpose) (*Claims, error) {
	return c.parse(raw, purpose, jwt.WithExpirationRequired())
}

// Inspect checks the signature but not the expiry. It is meant for flows that must
// tolerate stale tokens, such as logout.
func (c *Codec) Inspect(raw string, purpose Purpose) (*Claims, error) {
	return c.parse(raw, purpose, jwt.WithoutClaimsValidation())
}

func (c *Codec) parse(raw string, purpose Purpose, extra ...jwt.ParserOption) (*Claims, error) {
	k, ok := c.keys[purpose]
	if !ok || raw == "" {
		return nil, ErrInvalidToken
	}

	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(c.now),
	}, extra...)

	parsed, err := jwt.ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		return k.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	payload, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if claims.SessionID, err = uuid.Parse(payload.SessionID); err != nil {
		return nil, fmt.Errorf("%w: session id: %v", ErrInvalidToken, err)
	}
	if purpose == Access {
		if claims.UserID, err = uuid.Parse(payload.UserID); err != nil {
			return nil, fmt.Errorf("%w: user id: %v", ErrInvalidToken, err)
		}
	}
	if payload.IssuedAt != nil {
		claims.IssuedAt = payload.IssuedAt.UTC()
	}
	if payload.ExpiresAt != nil {
		claims.ExpiresAt = payload.ExpiresAt.UTC()
	}
	return claims, nil
}
