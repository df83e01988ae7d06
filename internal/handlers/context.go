package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/middleware"
	"github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actorID returns the authenticated user id, writing a 401 when absent.
func actorID(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func pathID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
