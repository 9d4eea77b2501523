package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"caffmed-api/internal/pkg/jwtutil"
	"caffmed-api/internal/transport/http/response"
)

const ContextOperatorKey = "operator"

// AuthJWT requires a bearer token signed with secret. An empty secret leaves
// the route open.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextOperatorKey, claims.Username)
		c.Next()
	}
}
