package routes

import (
	"civictrack/controllers"
	"civictrack/middlewares"
	"civictrack/models"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r gin.IRouter, ctl *controllers.AuthController, auth gin.HandlerFunc) {
	group := r.Group("/auth")
	{
		group.POST("/register", ctl.RegisterUser)
		group.POST("/login", ctl.LoginUser)
		group.POST("/logout", ctl.LogoutUser)
		group.GET("/me", auth, ctl.GetMe)
	}
}

// DepartmentRoutes sets up department administration. Reads are open to staff,
// the service narrows them to the staff member's own department.
func DepartmentRoutes(r gin.IRouter, ctl *controllers.DepartmentController, auth gin.HandlerFunc) {
	group := r.Group("/departments", auth)
	{
		admin := middlewares.AuthorizeRoles(models.RoleAdmin)
		staff := middlewares.AuthorizeRoles(models.RoleAdmin, models.RoleStaff)

		group.POST("", admin, ctl.CreateDepartment)
		group.GET("", admin, ctl.ListDepartments)
		group.GET("/:id", staff, ctl.GetDepartment)
		group.PUT("/:id", admin, ctl.UpdateDepartment)
		group.GET("/:id/issues", staff, ctl.DepartmentIssues)
		group.PUT("/:id/assign-staff/:staffId", admin, ctl.AssignStaff)
		group.PUT("/:id/remove-staff/:staffId", admin, ctl.RemoveStaff)
	}
}

func AnalyticsRoutes(r gin.IRouter, ctl *controllers.AnalyticsController, auth gin.HandlerFunc) {
	r.GET("/analytics/city", auth, middlewares.AuthorizeRoles(models.RoleAdmin, models.RoleStaff), ctl.CityOverview)
}
