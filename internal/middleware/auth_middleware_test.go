package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

type stubProvisioner struct {
	seen []string
	err  error
}

func (s *stubProvisioner) EnsureFromClaims(_ context.Context, claims *iauth.Claims) error {
	s.seen = append(s.seen, claims.UserID)
	return s.err
}

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)
	return jwtSvc
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc := newTestJWT(t)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: "user-123",
		Kind:   models.UserKindOrganizer,
	})
	require.NoError(t, err)

	accounts := &stubProvisioner{}
	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, accounts), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   UserID(c),
			"user_kind": c.GetString(CtxUserKindKey),
			"organizer": Claims(c).IsOrganizer(),
		})
	})

	// Missing Authorization header -> 401
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	// Tampered token -> 401
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, accounts.seen)

	// Valid token -> downstream handler executes
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-123", payload["user_id"])
	require.Equal(t, models.UserKindOrganizer, payload["user_kind"])
	require.Equal(t, true, payload["organizer"])
	require.Equal(t, []string{"user-123"}, accounts.seen)
}

func TestAuthMiddlewareQueryTokenOnlyForUpgrades(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc := newTestJWT(t)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: "musician-1",
		Kind:   models.UserKindMusician,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", Auth(jwtSvc, nil), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "musician-1", w.Body.String())
}

func TestAuthMiddlewareProvisioningFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc := newTestJWT(t)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: "user-9",
		Kind:   models.UserKindMusician,
	})
	require.NoError(t, err)

	accounts := &stubProvisioner{err: apperrors.Forbidden("account kind does not match the registered user")}
	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, accounts), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	accounts.err = errors.New("db down")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
