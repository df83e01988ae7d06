package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultContentSecurityPolicy denies everything; the API serves JSON only.
const DefaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

var securityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", DefaultContentSecurityPolicy},
	{"Referrer-Policy", "no-referrer"},
}

// SecurityHeaders hardens every response. Booking data is per-user, so API
// responses are additionally marked uncacheable.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range securityHeaders {
			c.Header(h[0], h[1])
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}
