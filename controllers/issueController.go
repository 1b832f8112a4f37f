package controllers

import (
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"civictrack/middlewares"
	"civictrack/models"
	"civictrack/repository"
	"civictrack/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type IssueController struct {
	issues    *services.IssueService
	uploadDir string
}

func NewIssueController(issues *services.IssueService, uploadDir string) *IssueController {
	return &IssueController{issues: issues, uploadDir: uploadDir}
}

type createIssueRequest struct {
	Title       string   `form:"title" json:"title"`
	Description string   `form:"description" json:"description"`
	Category    string   `form:"category" json:"category" binding:"omitempty,issuecategory"`
	Address     string   `form:"address" json:"address"`
	Latitude    *float64 `form:"latitude" json:"latitude"`
	Longitude   *float64 `form:"longitude" json:"longitude"`
	Priority    string   `form:"priority" json:"priority" binding:"omitempty,issuepriority"`
}

type updateIssueRequest struct {
	Title       *string `form:"title" json:"title"`
	Description *string `form:"description" json:"description"`
	Category    *string `form:"category" json:"category" binding:"omitempty,issuecategory"`
	Address     *string `form:"address" json:"address"`
	Priority    *string `form:"priority" json:"priority" binding:"omitempty,issuepriority"`
	Status      *string `form:"status" json:"status" binding:"omitempty,issuestatus"`
	AssignedTo  *string `form:"assignedTo" json:"assignedTo" binding:"omitempty,objectid"`
}

func (in updateIssueRequest) toInput() services.UpdateIssueInput {
	out := services.UpdateIssueInput{
		Title:       in.Title,
		Description: in.Description,
		Address:     in.Address,
		AssignedTo:  optionalID(in.AssignedTo),
	}
	if in.Category != nil {
		v := models.IssueCategory(*in.Category)
		out.Category = &v
	}
	if in.Priority != nil {
		v := models.IssuePriority(*in.Priority)
		out.Priority = &v
	}
	if in.Status != nil {
		v := models.IssueStatus(*in.Status)
		out.Status = &v
	}
	return out
}

// spoolMedia saves the multipart "media" files to the upload directory.
// Requests without a multipart body have no media.
func (ctl *IssueController) spoolMedia(c *gin.Context) ([]services.MediaFile, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, true
	}
	form, err := c.MultipartForm()
	if err != nil {
		bindError(c, err)
		return nil, false
	}
	headers := form.File["media"]
	if len(headers) > services.MaxMediaFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many media files", "field": "media"})
		return nil, false
	}

	dir := filepath.Join(ctl.uploadDir, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respondError(c, err)
		return nil, false
	}

	files := make([]services.MediaFile, 0, len(headers))
	for _, fh := range headers {
		path := filepath.Join(dir, uuid.NewString()+filepath.Ext(fh.Filename))
		if err := c.SaveUploadedFile(fh, path); err != nil {
			for _, f := range files {
				_ = os.Remove(f.Path)
			}
			respondError(c, err)
			return nil, false
		}
		files = append(files, services.MediaFile{Path: path, Type: mediaType(fh)})
	}
	return files, true
}

func mediaType(fh *multipart.FileHeader) models.MediaType {
	if strings.HasPrefix(fh.Header.Get("Content-Type"), "video/") {
		return models.MediaVideo
	}
	return models.MediaImage
}

// CreateIssue handles POST /issues.
func (ctl *IssueController) CreateIssue(c *gin.Context) {
	var req createIssueRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	files, ok := ctl.spoolMedia(c)
	if !ok {
		return
	}

	issue, err := ctl.issues.Create(c.Request.Context(), middlewares.CurrentUser(c), services.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    models.IssueCategory(req.Category),
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Priority:    models.IssuePriority(req.Priority),
		Media:       files,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Issue created successfully", "issue": issue.ToResponse()})
}

// GetIssue handles GET /issues/:id.
func (ctl *IssueController) GetIssue(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	issue, err := ctl.issues.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue": issue.ToResponse()})
}

// UpdateIssue handles PUT /issues/:id.
func (ctl *IssueController) UpdateIssue(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateIssueRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.AssignedTo != nil && *req.AssignedTo == "" {
		req.AssignedTo = nil
	}
	files, ok := ctl.spoolMedia(c)
	if !ok {
		return
	}

	in := req.toInput()
	in.Media = files
	issue, err := ctl.issues.Update(c.Request.Context(), middlewares.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue updated successfully", "issue": issue.ToResponse()})
}

// ListIssues handles GET /issues.
func (ctl *IssueController) ListIssues(c *gin.Context) {
	filter := repository.IssueFilter{
		Status:   models.IssueStatus(strings.ToUpper(c.Query("status"))),
		Category: models.IssueCategory(strings.ToUpper(c.Query("category"))),
		Priority: models.IssuePriority(strings.ToUpper(c.Query("priority"))),
		Search:   strings.TrimSpace(c.Query("q")),
	}
	if raw := c.Query("near"); raw != "" {
		near, err := parseNear(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.Near = near
	}
	if raw := c.Query("bbox"); raw != "" {
		box, err := parseBox(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.Box = box
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))

	result, err := ctl.issues.List(c.Request.Context(), filter, repository.IssueSort(c.Query("sort")), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuePageResponse(result))
}

// MyIssues handles GET /issues/my.
func (ctl *IssueController) MyIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))
	status := models.IssueStatus(strings.ToUpper(c.Query("status")))

	result, err := ctl.issues.Mine(c.Request.Context(), middlewares.CurrentUser(c), status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuePageResponse(result))
}

type recentIssue struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Category  models.IssueCategory `json:"category"`
	Status    models.IssueStatus   `json:"status"`
	Address   string               `json:"address"`
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	CreatedAt time.Time            `json:"createdAt"`
}

// RecentIssues handles GET /issues/recent, a light feed of pins for the map.
func (ctl *IssueController) RecentIssues(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.RecentIssuesLimit)))

	issues, err := ctl.issues.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]recentIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, recentIssue{
			ID:        issue.ID.Hex(),
			Title:     issue.Title,
			Category:  issue.Category,
			Status:    issue.Status,
			Address:   issue.Address,
			Latitude:  issue.Location.Lat(),
			Longitude: issue.Location.Lng(),
			CreatedAt: issue.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"issues": out})
}

func issuePageResponse(result *repository.IssuePage) gin.H {
	items := make([]models.IssueResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToResponse())
	}
	return gin.H{
		"issues": items,
		"counts": result.Counts,
		"total":  result.Total,
		"page":   result.Page,
		"limit":  result.Limit,
	}
}
