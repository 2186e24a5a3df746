package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	VerifyToken(token string) error
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(c *gin.Context) string {
	return strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
}

// Auth rejects requests without a valid bearer token. A public path
// matches itself and everything below it, so "/static" covers
// "/static/x.png" but not "/staticx".
func Auth(verifier TokenVerifier, public ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublic(c.Request.URL.Path, public) {
			c.Next()
			return
		}

		if c.GetHeader("Authorization") == "" {
			log.Warn().Str("path", c.Request.URL.Path).Msg("unauthorized request blocked by auth middleware")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if err := verifier.VerifyToken(BearerToken(c)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Next()
	}
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func Cors() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	return cors.New(corsConfig)
}
