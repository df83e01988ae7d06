package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/gigbook/internal/cache"
	"github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/logger"
	"github.com/charlesng35/gigbook/pkg/response"
)

// Idempotency headers.
const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength   = 128
	defaultIdempotencyTTL     = 24 * time.Hour
	idempotencyInFlightWindow = time.Minute
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a POST is retried with the
// same Idempotency-Key by the same actor. A duplicate that arrives while the
// first request is still running gets 409. Server errors are not stored, so
// the client may retry them. Requests without the header pass through, and
// store failures fail open.
func Idempotency(store cache.Store, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	log := logger.WithModule("idempotency")

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if store == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			response.Error(c, errors.NewBadRequest("Idempotency-Key must be 128 characters or fewer"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		digest := sha256.Sum256([]byte(UserID(c) + "|" + routeLabel(c) + "|" + key))
		base := "idempotency:" + hex.EncodeToString(digest[:])
		resultKey, lockKey := base+"|result", base+"|lock"

		if raw, ok, err := store.Get(ctx, resultKey); err != nil {
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		} else if ok {
			replay(c, raw, log)
			return
		}

		holders, _, err := store.IncrementWithTTL(ctx, lockKey, idempotencyInFlightWindow)
		if err != nil {
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if holders > 1 {
			response.Error(c, errors.Conflict("a request with this Idempotency-Key is still in progress"))
			c.Abort()
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status < http.StatusInternalServerError {
			stored, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: writer.Header().Get("Content-Type"),
				Body:        writer.body.Bytes(),
			})
			if err == nil {
				err = store.Set(ctx, resultKey, stored, ttl)
			}
			if err != nil {
				log.Warn("failed to store idempotent response", zap.String("route", routeLabel(c)), zap.Error(err))
			}
		}
		if err := store.Delete(ctx, lockKey); err != nil {
			log.Debug("failed to release idempotency lock", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, raw []byte, log *zap.Logger) {
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Warn("discarding corrupt idempotent response", zap.Error(err))
		c.Next()
		return
	}
	contentType := stored.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Header(IdempotentReplayedHeader, "true")
	c.Data(stored.Status, contentType, stored.Body)
	c.Abort()
}
