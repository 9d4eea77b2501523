package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caffmed-api/internal/transport/http/response"
)

// ConcurrencyLimit lets at most n requests run the wrapped handlers at once.
// Others wait for a slot until their context ends.
func ConcurrencyLimit(n int) gin.HandlerFunc {
	if n <= 0 {
		n = 1
	}
	slots := make(chan struct{}, n)
	return func(c *gin.Context) {
		select {
		case slots <- struct{}{}:
		case <-c.Request.Context().Done():
			response.Rejected(c, http.StatusServiceUnavailable, "Server busy, request cancelled")
			c.Abort()
			return
		}
		defer func() { <-slots }()
		c.Next()
	}
}
