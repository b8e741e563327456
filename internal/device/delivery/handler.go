package delivery

import (
	"net/http"

	authDelivery "lifebook-backend/internal/auth/delivery"
	"lifebook-backend/internal/device/repository"

	"github.com/gin-gonic/gin"
)

// DeviceHandler registers browser push tokens
type DeviceHandler struct {
	repo repository.DeviceRepository
}

func NewDeviceHandler(repo repository.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{repo: repo}
}

type RegisterTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// ListTokens returns the caller's registered devices
// GET /api/devices
func (h *DeviceHandler) ListTokens(c *gin.Context) {
	tokens, err := h.repo.GetTokensByUserID(c.Request.Context(), authDelivery.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": tokens})
}

// RegisterToken stores the caller's FCM token
// POST /api/devices
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := authDelivery.UserID(c)
	if err := h.repo.SaveToken(c.Request.Context(), userID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token registered successfully"})
}

// UnregisterToken removes a token, e.g. on logout
// DELETE /api/devices/:token
func (h *DeviceHandler) UnregisterToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}

	if err := h.repo.DeleteToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token unregistered successfully"})
}
