package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const GuestTokenKey = "guest_token"

// GuestToken lifts a bearer guest token into the gin context. It never
// rejects; the scan validator decides whether a token is required.
func GuestToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			c.Set(GuestTokenKey, tok)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
