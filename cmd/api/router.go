package api

import (
	"net/http"

	authDelivery "lifebook-backend/internal/auth/delivery"
	deviceDelivery "lifebook-backend/internal/device/delivery"
	reminderDelivery "lifebook-backend/internal/reminder/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, jwtSecret string, reminderHandler *reminderDelivery.ReminderHandler, deviceHandler *deviceDelivery.DeviceHandler, status StateReporter) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		protected := api.Group("")
		protected.Use(authDelivery.AuthMiddleware(jwtSecret))

		// Worker protocol
		workerGroup := protected.Group("/worker")
		{
			workerGroup.POST("/messages", reminderHandler.PostMessage)
			workerGroup.POST("/sync", reminderHandler.RequestSync)
			workerGroup.GET("/status", GetWorkerStatus(status))
		}

		// Notification permission and interaction
		notifications := protected.Group("/notifications")
		{
			notifications.GET("/permission", reminderHandler.GetPermission)
			notifications.PUT("/permission", reminderHandler.UpdatePermission)
			notifications.POST("/click", reminderHandler.NotificationClick)
			notifications.POST("/close", reminderHandler.NotificationClose)
		}

		// FCM device tokens
		devices := protected.Group("/devices")
		{
			devices.GET("", deviceHandler.ListTokens)
			devices.POST("", deviceHandler.RegisterToken)
			devices.DELETE("/:token", deviceHandler.UnregisterToken)
		}

		// App windows (SSE)
		protected.GET("/windows/stream", reminderHandler.StreamWindow)
	}
}
