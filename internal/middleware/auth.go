package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/logger"
	"github.com/charlesng35/gigbook/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxUserIDKey   = "userID"
	CtxUserKindKey = "userKind"
)

// AccountProvisioner makes sure the account behind verified claims exists.
type AccountProvisioner interface {
	EnsureFromClaims(ctx context.Context, claims *iauth.Claims) error
}

// Auth enforces JWT authentication using the supplied JWT service. When
// accounts is non-nil the token's account is provisioned on first use.
func Auth(jwt *iauth.JWTService, accounts AccountProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if accounts != nil {
			if err := accounts.EnsureFromClaims(c.Request.Context(), claims); err != nil {
				logger.WithContext(c.Request.Context(), logger.WithModule("auth")).Warn("provision account",
					zap.String("user_id", claims.UserID),
					zap.Error(err),
				)
				response.Error(c, err)
				c.Abort()
				return
			}
		}

		c.Request = c.Request.WithContext(logger.ContextWithFields(c.Request.Context(), zap.String("actor_id", claims.UserID)))
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserKindKey, claims.Kind)

		c.Next()
	}
}

// UserID returns the authenticated actor id, or "".
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

// Claims returns the verified token claims, or nil.
func Claims(c *gin.Context) *iauth.Claims {
	value, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*iauth.Claims)
	return claims
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter because browsers cannot set headers on websocket upgrades.
func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if c.GetHeader("Upgrade") != "" {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}
