package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireBearer rejects requests without a bearer token and stores the token on
// the request context for downstream backend calls.
func RequireBearer(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ParseBearer(c.GetHeader("Authorization"))
		if token == "" {
			AbortUnauthorized(c, loginURL)
			return
		}
		c.Request = c.Request.WithContext(WithToken(c.Request.Context(), token))
		c.Next()
	}
}

// AbortUnauthorized answers with the redirect-to-login signal the page shell follows.
func AbortUnauthorized(c *gin.Context, loginURL string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    "authentication required",
		"redirect": loginURL,
	})
}
