package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/cache"
	"github.com/charlesng35/gigbook/internal/database/testutil"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(store, 2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// First two requests should pass
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Third request within window should be rate-limited
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	now = now.Add(61 * time.Second)

	// After window resets, should pass again
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitKeysByActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryRateStore()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxUserIDKey, c.GetHeader("X-Actor"))
		c.Next()
	})
	r.Use(RateLimit(store, 1, time.Minute))
	r.POST("/invites", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(actor string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/invites", nil)
		req.Header.Set("X-Actor", actor)
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusCreated, send("organizer-a"))
	require.Equal(t, http.StatusCreated, send("organizer-b"))
	require.Equal(t, http.StatusTooManyRequests, send("organizer-a"))
}

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(failingRateStore{}, 1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestStoreRateStoreUsesDatabaseCache(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewStoreRateStore(cache.NewDatabaseStore(db))
	require.NotNil(t, store)
	require.Nil(t, NewStoreRateStore(nil))

	ctx := context.Background()
	count, ttl, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
