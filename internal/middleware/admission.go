package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const clientIDContextKey = "clientID"

func ClientIDFromContext(c *gin.Context) (string, bool) {
	clientID, ok := c.Get(clientIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := clientID.(string)
	return value, ok && value != ""
}

// RequireClientID admits callers by the X-Client-Id header. An empty
// allowlist admits every non-empty id; admission failures are
// infrastructure-level and do not use the business envelope.
func RequireClientID(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowlist))
	for _, id := range allowlist {
		allowed[id] = true
	}

	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-Id")
		if clientID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing X-Client-Id"})
			c.Abort()
			return
		}
		if len(allowed) > 0 && !allowed[clientID] {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Client id not admitted"})
			c.Abort()
			return
		}
		c.Set(clientIDContextKey, clientID)
		c.Next()
	}
}
