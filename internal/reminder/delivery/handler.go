package delivery

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"

	"lifebook-backend/internal/permission"
	"lifebook-backend/internal/reminder/router"
	"lifebook-backend/internal/reminder/worker"
	"lifebook-backend/internal/window"

	"github.com/gin-gonic/gin"
)

// Worker is the background worker as seen by the HTTP layer.
type Worker interface {
	Post(ctx context.Context, msg worker.Message) error
	Sync(tag string) error
}

// PermissionGate is the foreground permission API.
type PermissionGate interface {
	State(ctx context.Context) permission.State
	Record(ctx context.Context, state permission.State) error
}

// ClickRouter handles notification interaction.
type ClickRouter interface {
	HandleClick(ctx context.Context, ev router.Event) (router.Outcome, error)
	HandleClose(ctx context.Context, ev router.Event) router.Outcome
}

// ReminderHandler exposes the worker protocol, permission state,
// notification interaction and the window stream over HTTP.
type ReminderHandler struct {
	worker Worker
	gate   PermissionGate
	router ClickRouter
	hub    *window.Hub
}

func NewReminderHandler(w Worker, gate PermissionGate, r ClickRouter, hub *window.Hub) *ReminderHandler {
	return &ReminderHandler{worker: w, gate: gate, router: r, hub: hub}
}

// PostMessage forwards a tagged message to the worker inbox
// POST /api/worker/messages
func (h *ReminderHandler) PostMessage(c *gin.Context) {
	var msg worker.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !msg.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	if err := h.worker.Post(c.Request.Context(), msg); err != nil {
		if errors.Is(err, worker.ErrStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker stopped"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "type": msg.Type})
}

type SyncRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// RequestSync registers a one-shot background sync
// POST /api/worker/sync
func (h *ReminderHandler) RequestSync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.worker.Sync(req.Tag); err != nil {
		if errors.Is(err, worker.ErrUnknownSyncTag) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "tag": req.Tag})
}

// GetPermission returns the stored notification permission
// GET /api/notifications/permission
func (h *ReminderHandler) GetPermission(c *gin.Context) {
	state := h.gate.State(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"permission": state,
		"granted":    state == permission.StateGranted,
	})
}

type PermissionRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// UpdatePermission records the permission the browser reports
// PUT /api/notifications/permission
func (h *ReminderHandler) UpdatePermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := permission.ParseState(req.Permission)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gate.Record(c.Request.Context(), state); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save permission"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"permission": state,
		"granted":    state == permission.StateGranted,
	})
}

// NotificationClick routes a notification click to a window
// POST /api/notifications/click
func (h *ReminderHandler) NotificationClick(c *gin.Context) {
	var ev router.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.router.HandleClick(c.Request.Context(), ev)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "outcome": outcome})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// NotificationClose records a dismissed notification
// POST /api/notifications/close
func (h *ReminderHandler) NotificationClose(c *gin.Context) {
	var ev router.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.router.HandleClose(c.Request.Context(), ev)
	c.Status(http.StatusNoContent)
}

// StreamWindow registers the caller as an app window and streams focus and
// controller events to it until the client goes away.
// GET /api/windows/stream?url=/reminders
func (h *ReminderHandler) StreamWindow(c *gin.Context) {
	win := h.hub.Register(windowURL(c.DefaultQuery("url", "/"), c.GetHeader("Origin")))
	defer h.hub.Unregister(win.ID())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("registered", gin.H{"id": win.ID()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-win.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		}
	})

	log.Printf("[Windows] Stream closed for window %s", win.ID())
}

// windowURL resolves a path reported by the client against its Origin header.
func windowURL(raw, origin string) string {
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() || origin == "" {
		return raw
	}
	base, err := url.Parse(origin)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return raw
	}
	return base.ResolveReference(ref).String()
}
