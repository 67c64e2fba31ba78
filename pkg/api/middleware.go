package api

import (
	"github.com/gin-gonic/gin"
)

// securityHeaders sets standard security response headers on every
// response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// devUserHeader is the header a caller may set to identify itself.
// Absent any real identity provider, a missing header falls back to
// devDefaultUser rather than rejecting the request.
const devUserHeader = "X-User-ID"

const devDefaultUser = "dev-user"

// resolveUserID returns the caller's identity from devUserHeader, or
// devDefaultUser if absent.
func resolveUserID(c *gin.Context) string {
	if id := c.GetHeader(devUserHeader); id != "" {
		return id
	}
	return devDefaultUser
}
