package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesLocalSecret(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Len(t, cfg.Auth.JWT.Secret, jwtSecretBytes*2)
	require.True(t, generated["auth.jwt.secret"])

	again := &Config{}
	_, err = ApplyRuntimeDefaults(again)
	require.NoError(t, err)
	require.NotEqual(t, cfg.Auth.JWT.Secret, again.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsPreservesExistingSecret(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, strings.Repeat("a", 10), cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsRequiresSecretForIdentityProvider(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Issuer = "https://id.gigbook.example"

	_, err := ApplyRuntimeDefaults(cfg)
	require.ErrorContains(t, err, "auth.jwt.secret is required")
	require.Empty(t, cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.EqualError(t, err, "config is nil")
}

func TestGenerateHexKey(t *testing.T) {
	key, err := generateHexKey(4)
	require.NoError(t, err)
	require.Len(t, key, 8)

	_, err = generateHexKey(0)
	require.Error(t, err)
}
