package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/cache"
	"github.com/charlesng35/gigbook/internal/database/testutil"
)

func idempotentRouter(t *testing.T, status *int) (*gin.Engine, *int32) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := cache.NewDatabaseStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	var calls int32

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxUserIDKey, c.GetHeader("X-Actor"))
		c.Next()
	})
	r.Use(Idempotency(store, time.Hour))
	r.POST("/roles/:id/invites", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(*status, gin.H{"call": n})
	})
	return r, &calls
}

func postWithKey(r *gin.Engine, actor, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/roles/r1/invites", strings.NewReader("{}"))
	req.Header.Set("X-Actor", actor)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	status := http.StatusCreated
	r, calls := idempotentRouter(t, &status)

	first := postWithKey(r, "organizer-1", "dispatch-42")
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(IdempotentReplayedHeader))

	second := postWithKey(r, "organizer-1", "dispatch-42")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.EqualValues(t, 1, atomic.LoadInt32(calls))

	require.Equal(t, http.StatusCreated, postWithKey(r, "organizer-2", "dispatch-42").Code)
	require.Equal(t, http.StatusCreated, postWithKey(r, "organizer-1", "").Code)
	require.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	status := http.StatusInternalServerError
	r, calls := idempotentRouter(t, &status)

	require.Equal(t, http.StatusInternalServerError, postWithKey(r, "organizer-1", "retry-me").Code)

	status = http.StatusOK
	w := postWithKey(r, "organizer-1", "retry-me")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get(IdempotentReplayedHeader))
	require.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	status := http.StatusOK
	r, calls := idempotentRouter(t, &status)

	w := postWithKey(r, "organizer-1", strings.Repeat("k", maxIdempotencyKeyLength+1))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, atomic.LoadInt32(calls))
}

func TestIdempotencyPassesThroughWithoutStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Idempotency(nil, 0))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(IdempotencyKeyHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
}
