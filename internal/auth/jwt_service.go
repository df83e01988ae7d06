// Package auth validates the bearer tokens that identify booking actors.
// Tokens are issued by the identity provider; GenerateAccessToken exists for
// local development and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/gigbook/internal/models"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret string
	// Issuer and Audience are enforced on validation when set.
	Issuer   string
	Audience string
	// Leeway tolerates clock skew between the identity provider and this service.
	Leeway         time.Duration
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims identifies a booking actor. UserID falls back to the registered
// subject for providers that do not emit a uid claim.
type Claims struct {
	UserID      string `json:"uid,omitempty"`
	Kind        string `json:"kind"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IsOrganizer reports whether the token belongs to an organizer account.
func (c *Claims) IsOrganizer() bool { return c != nil && c.Kind == models.UserKindOrganizer }

// IsMusician reports whether the token belongs to a musician account.
func (c *Claims) IsMusician() bool { return c != nil && c.Kind == models.UserKindMusician }

// AccessTokenInput holds the parameters used when generating a new access token.
type AccessTokenInput struct {
	UserID      string
	Kind        string
	DisplayName string
	Email       string
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	secret []byte
	cfg    JWTConfig
	parser *jwt.Parser
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Clock),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}, nil
}

// GenerateAccessToken issues a signed JWT for the actor.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}
	if !validKind(input.Kind) {
		return "", fmt.Errorf("jwt: unsupported account kind %q", input.Kind)
	}

	now := s.cfg.Clock()
	claims := &Claims{
		UserID:      input.UserID,
		Kind:        input.Kind,
		DisplayName: input.DisplayName,
		Email:       input.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    s.cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT, returning the application claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	var claims Claims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}
	if len(claims.UserID) > 64 {
		return nil, errors.New("jwt: user id exceeds 64 characters")
	}
	if !validKind(claims.Kind) {
		return nil, errors.New("jwt: missing or unsupported account kind")
	}

	return &claims, nil
}

func validKind(kind string) bool {
	return kind == models.UserKindOrganizer || kind == models.UserKindMusician
}
