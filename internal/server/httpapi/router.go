package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with all routes mounted under /api/v1.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "fittrack", "status": "running"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/logout", h.logout)
	}

	authed := v1.Group("")
	authed.Use(h.AuthMiddleware())
	{
		authed.POST("/auth/change-password", h.changePassword)

		authed.POST("/push-tokens/register", h.registerPushToken)
		authed.POST("/push-tokens/deactivate", h.deactivatePushToken)
		authed.GET("/push-tokens", h.listPushTokens)

		authed.POST("/sessions", h.startSession)
		authed.GET("/sessions", h.listSessions)
		authed.GET("/sessions/:id", h.getSession)
		authed.POST("/sessions/:id/frames", h.appendFrames)
		authed.GET("/sessions/:id/frames", h.listFrames)
		authed.POST("/sessions/:id/complete", h.completeSession)
		authed.POST("/sessions/:id/cancel", h.cancelSession)
		authed.DELETE("/sessions/:id", h.deleteSession)
		authed.POST("/sessions/:id/archive", h.confirmArchiveUpload)
		authed.GET("/sessions/:id/archive", h.sessionArchiveURL)

		authed.GET("/achievements", h.listAchievements)

		authed.POST("/plans", h.createPlan)
		authed.GET("/plans", h.listPlans)
		authed.GET("/plans/:id", h.getPlan)
		authed.PUT("/plans/:id", h.updatePlan)
		authed.DELETE("/plans/:id", h.deletePlan)

		authed.GET("/stats/daily", h.dailyStats)
	}

	return router
}
