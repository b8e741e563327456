package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	deviceDelivery "lifebook-backend/internal/device/delivery"
	reminderDelivery "lifebook-backend/internal/reminder/delivery"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	jwtSecret       string
	reminderHandler *reminderDelivery.ReminderHandler
	deviceHandler   *deviceDelivery.DeviceHandler
	status          StateReporter
}

func NewHandler(jwtSecret string, reminderHandler *reminderDelivery.ReminderHandler, deviceHandler *deviceDelivery.DeviceHandler, status StateReporter) *Handler {
	return &Handler{
		jwtSecret:       jwtSecret,
		reminderHandler: reminderHandler,
		deviceHandler:   deviceHandler,
		status:          status,
	}
}

// Engine builds the gin engine with CORS and all routes
func (h *Handler) Engine() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.jwtSecret, h.reminderHandler, h.deviceHandler, h.status)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: h.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
