package controllers

import (
	"net/http"

	"civictrack/middlewares"
	"civictrack/models"
	"civictrack/services"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

type broadcastRequest struct {
	Title        string  `json:"title" binding:"required,max=200"`
	Message      string  `json:"message" binding:"required,max=2000"`
	Type         string  `json:"type" binding:"omitempty,notificationtype"`
	UserID       *string `json:"userId" binding:"omitempty,objectid"`
	DepartmentID *string `json:"departmentId" binding:"omitempty,objectid"`
	Role         string  `json:"role" binding:"omitempty,broadcastrole"`
}

// GetMyNotifications handles GET /notifications/my.
func (ctl *NotificationController) GetMyNotifications(c *gin.Context) {
	feed, err := ctl.notifications.ListFor(c.Request.Context(), middlewares.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// MarkRead handles PATCH /notifications/:id/read.
func (ctl *NotificationController) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := ctl.notifications.MarkRead(c.Request.Context(), id, middlewares.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// MarkAllRead handles PATCH /notifications/mark-all-read.
func (ctl *NotificationController) MarkAllRead(c *gin.Context) {
	changed, err := ctl.notifications.MarkAllRead(c.Request.Context(), middlewares.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": changed})
}

// Archive handles DELETE /notifications/:id.
func (ctl *NotificationController) Archive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := ctl.notifications.Archive(c.Request.Context(), id, middlewares.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification removed"})
}

// Broadcast handles POST /notifications/create.
func (ctl *NotificationController) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sent, err := ctl.notifications.Broadcast(c.Request.Context(), middlewares.CurrentUser(c), services.BroadcastInput{
		Title:        req.Title,
		Message:      req.Message,
		Type:         models.NotificationType(req.Type),
		UserID:       optionalID(req.UserID),
		DepartmentID: optionalID(req.DepartmentID),
		Role:         models.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": sent, "count": len(sent)})
}
