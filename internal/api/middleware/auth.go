// Package middleware provides the relay server's gin middleware.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nezunotify/notifyctl/internal/access"
	log "github.com/sirupsen/logrus"
)

const principalContextKey = "relay_principal"

// AuthMiddleware rejects requests whose API key is not in keys.
// An empty key set rejects everything.
func AuthMiddleware(keys *access.KeySet) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keys == nil || keys.Len() == 0 {
			abortJSON(c, http.StatusServiceUnavailable, "relay has no api keys configured")
			return
		}
		principal, err := keys.Authenticate(c.Request)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, access.ErrInvalidCredential) {
				status = http.StatusForbidden
			}
			log.Debugf("relay auth rejected %s: %v", c.Request.URL.Path, err)
			abortJSON(c, status, err.Error())
			return
		}
		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// Principal returns the API key that authenticated the request.
func Principal(c *gin.Context) string {
	if v, ok := c.Get(principalContextKey); ok {
		if s, okStr := v.(string); okStr {
			return s
		}
	}
	return ""
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message, "type": "authentication_error"}})
}
