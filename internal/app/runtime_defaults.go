package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills secrets a local run can do without and reports
// the keys it generated so callers can log them without exposing values.
//
// A generated JWT secret only verifies tokens minted by this process. When an
// issuer is configured the tokens come from an identity provider, so a missing
// secret is an error instead.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)
	if strings.TrimSpace(cfg.Auth.JWT.Secret) != "" {
		return generated, nil
	}
	if strings.TrimSpace(cfg.Auth.JWT.Issuer) != "" {
		return nil, fmt.Errorf("auth.jwt.secret is required when auth.jwt.issuer is %q", cfg.Auth.JWT.Issuer)
	}

	secret, err := generateHexKey(jwtSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	cfg.Auth.JWT.Secret = secret
	generated["auth.jwt.secret"] = true
	return generated, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
