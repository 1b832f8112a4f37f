package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"civictrack/middlewares"
	"civictrack/models"
	"civictrack/services"

	"github.com/gin-gonic/gin"
)

type DepartmentController struct {
	departments *services.DepartmentService
}

func NewDepartmentController(departments *services.DepartmentService) *DepartmentController {
	return &DepartmentController{departments: departments}
}

type createDepartmentRequest struct {
	Name        string   `json:"name" binding:"required,max=100"`
	Code        string   `json:"code" binding:"max=50"`
	Description string   `json:"description" binding:"max=500"`
	Categories  []string `json:"categories" binding:"dive,issuecategory"`
	Head        *string  `json:"head" binding:"omitempty,objectid"`
}

func (ctl *DepartmentController) CreateDepartment(c *gin.Context) {
	var req createDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	categories := make([]models.IssueCategory, 0, len(req.Categories))
	for _, cat := range req.Categories {
		categories = append(categories, models.IssueCategory(cat))
	}

	dept, err := ctl.departments.Create(c.Request.Context(), services.CreateDepartmentInput{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Categories:  categories,
		Head:        optionalID(req.Head),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"department": dept})
}

type updateDepartmentRequest struct {
	Name        *string   `json:"name" binding:"omitempty,max=100"`
	Code        *string   `json:"code" binding:"omitempty,max=50"`
	Description *string   `json:"description" binding:"omitempty,max=500"`
	Categories  *[]string `json:"categories" binding:"omitempty,dive,issuecategory"`
	Head        *string   `json:"head" binding:"omitempty,objectid"`
}

func (ctl *DepartmentController) UpdateDepartment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	in := services.UpdateDepartmentInput{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Head:        optionalID(req.Head),
	}
	if req.Categories != nil {
		categories := make([]models.IssueCategory, 0, len(*req.Categories))
		for _, cat := range *req.Categories {
			categories = append(categories, models.IssueCategory(cat))
		}
		in.Categories = &categories
	}

	dept, err := ctl.departments.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": dept})
}

func (ctl *DepartmentController) ListDepartments(c *gin.Context) {
	departments, err := ctl.departments.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

func (ctl *DepartmentController) GetDepartment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	dept, err := ctl.departments.Get(c.Request.Context(), middlewares.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": dept})
}

func (ctl *DepartmentController) AssignStaff(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	staffID, ok := paramID(c, "staffId")
	if !ok {
		return
	}
	dept, err := ctl.departments.AssignStaff(c.Request.Context(), id, staffID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": dept})
}

func (ctl *DepartmentController) RemoveStaff(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	staffID, ok := paramID(c, "staffId")
	if !ok {
		return
	}
	dept, err := ctl.departments.RemoveStaff(c.Request.Context(), id, staffID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": dept})
}

func (ctl *DepartmentController) DepartmentIssues(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))
	status := models.IssueStatus(strings.ToUpper(c.Query("status")))

	result, err := ctl.departments.Issues(c.Request.Context(), middlewares.CurrentUser(c), id, status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuePageResponse(result))
}
