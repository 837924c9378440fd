package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables for API tokens.
const (
	EnvJWTSecret          = "JWT_SECRET"
	EnvJWTExpirationHours = "JWT_EXPIRATION_HOURS"
)

const (
	// TokenIssuer is the iss claim of API tokens.
	TokenIssuer = "skill-extractor"
	// DefaultJWTExpirationHours is the token lifetime when none is configured.
	DefaultJWTExpirationHours = 24
	// MaxJWTExpirationHours caps token lifetime at one year.
	MaxJWTExpirationHours = 24 * 365
	// MinJWTSecretLength is the shortest accepted HMAC secret.
	MinJWTSecretLength = 16
)

var errNoJWTSecret = errors.New(EnvJWTSecret + " is required but not set")

// JWTConfig holds the HMAC secret and lifetime of API tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig reads JWT_SECRET (required) and JWT_EXPIRATION_HOURS
// (default 24) for commands that sign tokens.
func NewJWTConfig() (*JWTConfig, error) {
	return jwtConfigFromEnv(os.LookupEnv)
}

// OptionalJWTConfig is NewJWTConfig for the server, where auth is opt-in: it
// returns nil, nil when JWT_SECRET is unset.
func OptionalJWTConfig() (*JWTConfig, error) {
	cfg, err := jwtConfigFromEnv(os.LookupEnv)
	if errors.Is(err, errNoJWTSecret) {
		return nil, nil
	}
	return cfg, err
}

func jwtConfigFromEnv(lookup func(string) (string, bool)) (*JWTConfig, error) {
	secret, _ := lookup(EnvJWTSecret)
	if secret == "" {
		return nil, errNoJWTSecret
	}

	cfg := &JWTConfig{Secret: secret, ExpirationHours: DefaultJWTExpirationHours}
	if v, ok := lookup(EnvJWTExpirationHours); ok && v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvJWTExpirationHours, v, err)
		}
		cfg.ExpirationHours = hours
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the secret length and lifetime bounds.
func (c *JWTConfig) Validate() error {
	if len(c.Secret) < MinJWTSecretLength {
		return fmt.Errorf("%s must be at least %d characters", EnvJWTSecret, MinJWTSecretLength)
	}
	if c.ExpirationHours < 1 || c.ExpirationHours > MaxJWTExpirationHours {
		return fmt.Errorf("%s must be between 1 and %d, got %d", EnvJWTExpirationHours, MaxJWTExpirationHours, c.ExpirationHours)
	}
	return nil
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
