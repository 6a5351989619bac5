package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/saburov/quizbot/internal/security"
)

// AuthRequired validates the Bearer token and stores the admin claims on
// the request context.
func AuthRequired(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := security.ValidateJWT(strings.TrimPrefix(header, "Bearer "), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Next()
	}
}
