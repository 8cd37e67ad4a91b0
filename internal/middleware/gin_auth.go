package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"planner-agent/internal/auth"
)

// GinRequireRoles adapts the net/http RequireRoles guard to Gin so both
// surfaces share one decision path.
func GinRequireRoles(a *AuthMiddleware, roles ...auth.Role) gin.HandlerFunc {
	guardFn := a.RequireRoles(roles...)

	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})

		guardFn(next).ServeHTTP(c.Writer, c.Request)

		// If the guard already handled the response, stop Gin chain
		if c.Writer.Written() {
			c.Abort()
		}
	}
}
