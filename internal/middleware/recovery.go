package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/logger"
	"github.com/charlesng35/gigbook/pkg/response"
)

// Recovery turns a panicking handler into a 500 envelope. The panic value is
// logged with the request id and never echoed to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.WithModule("http").Error("handler panic",
				zap.String("request_id", RequestID(c)),
				zap.String("method", c.Request.Method),
				zap.String("route", routeLabel(c)),
				zap.String("actor_id", UserID(c)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler renders unknown routes with the standard error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NotFound(fmt.Sprintf("route %s %s", c.Request.Method, c.Request.URL.Path)))
}
