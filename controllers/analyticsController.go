package controllers

import (
	"net/http"

	"civictrack/services"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsController(analytics *services.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{analytics: analytics}
}

func (ctl *AnalyticsController) CityOverview(c *gin.Context) {
	report, err := ctl.analytics.City(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
