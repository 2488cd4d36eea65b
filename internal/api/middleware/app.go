package middleware

import (
	"net/http"

	"coinbazar/internal/bazarapi"
	"coinbazar/internal/logger"

	"github.com/gin-gonic/gin"
)

// App makes the shared container available as c.MustGet("app").
func App(app *bazarapi.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("app", app)
		c.Next()
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Errorf("unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
			"message": "Something went wrong",
		})
	})
}
