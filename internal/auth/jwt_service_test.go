package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/models"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

// signRaw signs arbitrary claims the way an external identity provider would.
func signRaw(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "gigbook",
		Audience:       "gigbook-api",
		AccessTokenTTL: time.Hour,
		Clock:          fixedClock(&current),
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{
		UserID:      "user-123",
		Kind:        models.UserKindOrganizer,
		DisplayName: "Ada",
		Email:       "ada@example.com",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)

	require.Equal(t, "user-123", claims.UserID)
	require.True(t, claims.IsOrganizer())
	require.False(t, claims.IsMusician())
	require.Equal(t, "Ada", claims.DisplayName)
	require.Equal(t, "gigbook", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"gigbook-api"}, claims.Audience)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestGenerateAccessTokenRejectsUnknownKind(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{UserID: "u", Kind: "admin"})
	require.Error(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{Kind: models.UserKindMusician})
	require.Error(t, err)
}

func TestValidateAccessTokenInvalidSignature(t *testing.T) {
	current := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Clock: fixedClock(&current)})
	require.NoError(t, err)
	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", Clock: fixedClock(&current)})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "u", Kind: models.UserKindMusician})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateAccessTokenExpiryHonoursLeeway(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Leeway:         30 * time.Second,
		Clock:          fixedClock(&current),
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "u", Kind: models.UserKindMusician})
	require.NoError(t, err)

	current = current.Add(80 * time.Second)
	_, err = svc.ValidateAccessToken(token)
	require.NoError(t, err, "skew inside the leeway is tolerated")

	current = current.Add(time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateAccessTokenIssuerAndAudienceMismatch(t *testing.T) {
	a, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "a"})
	require.NoError(t, err)
	b, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "b"})
	require.NoError(t, err)

	token, err := a.GenerateAccessToken(AccessTokenInput{UserID: "u", Kind: models.UserKindOrganizer})
	require.NoError(t, err)

	_, err = b.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	strict, err := NewJWTService(JWTConfig{Secret: "shared", Audience: "gigbook-api"})
	require.NoError(t, err)
	_, err = strict.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing, "a token without aud is rejected")

	other, err := NewJWTService(JWTConfig{Secret: "shared", Audience: "partner-api"})
	require.NoError(t, err)
	scoped, err := other.GenerateAccessToken(AccessTokenInput{UserID: "u", Kind: models.UserKindOrganizer})
	require.NoError(t, err)
	_, err = strict.ValidateAccessToken(scoped)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestValidateAccessTokenFallsBackToSubject(t *testing.T) {
	current := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "idp-secret", Clock: fixedClock(&current)})
	require.NoError(t, err)

	token := signRaw(t, "idp-secret", &Claims{
		Kind: models.UserKindMusician,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "auth0|musician-7",
			ExpiresAt: jwt.NewNumericDate(current.Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "auth0|musician-7", claims.UserID)
	require.True(t, claims.IsMusician())
}

func TestValidateAccessTokenRejectsMissingClaims(t *testing.T) {
	current := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "idp-secret", Clock: fixedClock(&current)})
	require.NoError(t, err)
	exp := jwt.NewNumericDate(current.Add(time.Hour))

	noKind := signRaw(t, "idp-secret", &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})
	_, err = svc.ValidateAccessToken(noKind)
	require.EqualError(t, err, "jwt: missing or unsupported account kind")

	noSubject := signRaw(t, "idp-secret", &Claims{Kind: models.UserKindOrganizer, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})
	_, err = svc.ValidateAccessToken(noSubject)
	require.EqualError(t, err, "jwt: missing user id claim")

	noExpiry := signRaw(t, "idp-secret", &Claims{UserID: "u", Kind: models.UserKindOrganizer})
	_, err = svc.ValidateAccessToken(noExpiry)
	require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)

	_, err = svc.ValidateAccessToken("")
	require.Error(t, err)
}
