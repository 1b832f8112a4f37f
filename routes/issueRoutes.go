package routes

import (
	"civictrack/controllers"
	"civictrack/middlewares"
	"civictrack/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. limiter guards creation only.
func IssueRoutes(r gin.IRouter, ctl *controllers.IssueController, auth, limiter gin.HandlerFunc) {
	issue := r.Group("/issues")
	{
		issue.POST("", auth, middlewares.AuthorizeRoles(models.RoleCitizen), limiter, ctl.CreateIssue)
		issue.GET("", ctl.ListIssues)
		issue.GET("/recent", ctl.RecentIssues)
		issue.GET("/my", auth, ctl.MyIssues)
		issue.GET("/:id", ctl.GetIssue)
		issue.PUT("/:id", auth, ctl.UpdateIssue)
	}
}

func NotificationRoutes(r gin.IRouter, ctl *controllers.NotificationController, auth gin.HandlerFunc) {
	n := r.Group("/notifications", auth)
	{
		n.GET("/my", ctl.GetMyNotifications)
		n.PATCH("/mark-all-read", ctl.MarkAllRead)
		n.PATCH("/:id/read", ctl.MarkRead)
		n.DELETE("/:id", ctl.Archive)
		n.POST("/create", middlewares.AuthorizeRoles(models.RoleAdmin), ctl.Broadcast)
	}
}

func RealtimeRoutes(r gin.IRouter, ctl *controllers.WSController, wsAuth gin.HandlerFunc) {
	r.GET("/ws", wsAuth, ctl.Connect)
}
