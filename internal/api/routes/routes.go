package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/noakmilo/qventory-relist/internal/api/handlers"
)

func SetupRoutes(router *gin.Engine, relistHandler *handlers.RelistHandler) {
	// Health check
	router.GET("/health", relistHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		rl := v1.Group("/relist")
		{
			rl.POST("/rules", relistHandler.CreateRule)
			rl.GET("/rules", relistHandler.GetRules)
			rl.PUT("/rules/:id", relistHandler.UpdateRule)
			rl.DELETE("/rules/:id", relistHandler.DeleteRule)
			rl.POST("/rules/:id/enable", relistHandler.EnableRule)
			rl.POST("/rules/:id/disable", relistHandler.DisableRule)
			rl.POST("/rules/:id/trigger", relistHandler.TriggerManualRelist)
			rl.POST("/run-due", relistHandler.RunDueRules)
			rl.GET("/history", relistHandler.GetHistory)
		}
	}
}
