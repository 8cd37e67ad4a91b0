package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"planner-agent/internal/api"
	"planner-agent/internal/auth"
	authhandler "planner-agent/internal/auth/handler"
	"planner-agent/internal/logger"
	"planner-agent/internal/middleware"
	"planner-agent/internal/selection"
	"planner-agent/internal/session"
	weddinghandler "planner-agent/internal/wedding/handler"
)

const requestIDHeader = "X-Request-ID"

func setupHTTP(client *api.Client, sess *session.Store, sel *selection.Store) *gin.Engine {

	// ----------------------------
	// Dependencies
	// ----------------------------

	authHandler := authhandler.NewHandler(sess)
	weddingHandler := weddinghandler.NewHandler(client, sel, sess)
	authMiddleware := middleware.NewAuthMiddleware(sess)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Couple Routes
	// ----------------------------

	couple := router.Group("/")
	couple.Use(middleware.GinRequireRoles(authMiddleware, auth.RoleCouple))

	weddingHandler.RegisterRoutes(couple)
	couple.GET("/couple/dashboard", dashboard(sess, sel))

	// ----------------------------
	// Vendor & Admin Routes
	// ----------------------------

	router.GET("/vendor/dashboard",
		middleware.GinRequireRoles(authMiddleware, auth.RoleVendor),
		dashboard(sess, nil))

	router.GET("/admin/dashboard",
		middleware.GinRequireRoles(authMiddleware, auth.RoleAdmin),
		dashboard(sess, nil))

	return router
}

// dashboard renders the landing data for a role. Couples also get the
// active wedding.
func dashboard(sess *session.Store, sel *selection.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := middleware.UserFromContext(c.Request.Context())
		body := gin.H{
			"user": u,
			"role": sess.Snapshot().Role,
		}
		if sel != nil {
			st := sel.Snapshot()
			body["active"] = st.Active
			body["weddings"] = len(st.Weddings)
		}
		c.JSON(http.StatusOK, body)
	}
}

// requestID reuses the caller's X-Request-ID or mints one, echoes it, and
// hands it to backend calls made for this request.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(api.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"request_id": c.Writer.Header().Get(requestIDHeader),
		})
	}
}
