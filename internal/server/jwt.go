package server

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/server/middleware"
)

// clockSkew is how far token times may disagree with the server clock.
const clockSkew = 30 * time.Second

// Claims are the claims of an API token. The subject names the client the
// token was issued to. Scopes restricts the protected routes it may call;
// empty means all of them.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return len(c.Scopes) == 0 || slices.Contains(c.Scopes, scope)
}

// JWTService signs and verifies HS256 API tokens.
type JWTService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewJWTService creates a JWT service from cfg.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		secret:   []byte(cfg.Secret),
		lifetime: cfg.Expiration(),
		now:      time.Now,
	}
}

// validatorFunc adapts a function to middleware.TokenValidator.
type validatorFunc func(string) (middleware.Principal, error)

func (f validatorFunc) ValidateToken(token string) (middleware.Principal, error) { return f(token) }

// AsTokenValidator exposes the service to the auth middleware, which cannot
// import this package.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return validatorFunc(func(token string) (middleware.Principal, error) {
		claims, err := s.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

// GenerateToken issues a token for the named client, limited to scopes when
// any are given.
func (s *JWTService) GenerateToken(subject string, scopes ...string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	for _, scope := range scopes {
		if !middleware.KnownScope(scope) {
			return "", fmt.Errorf("unknown token scope %q (want %s or %s)", scope, middleware.ScopeExtract, middleware.ScopeHistory)
		}
	}

	issued := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    config.TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.lifetime)),
		},
		Scopes: slices.Compact(slices.Sorted(slices.Values(scopes))),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, issuer and lifetime of a token and
// returns its claims. Tokens without an expiry are rejected.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, describeTokenError(err)
	}
	return claims, nil
}

func describeTokenError(err error) error {
	var reason string
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		reason = "invalid token signature"
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = "token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		reason = "token not valid yet"
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = "malformed token"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = "token issued elsewhere"
	default:
		reason = "invalid token"
	}
	return fmt.Errorf("%s: %w", reason, err)
}
