package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"civictrack/controllers"
	"civictrack/media"
	"civictrack/metrics"
	"civictrack/middlewares"
	"civictrack/models"
	"civictrack/repository"
	"civictrack/routes"
	"civictrack/services"
	"civictrack/utils"
	"civictrack/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret"

type APISuite struct {
	suite.Suite
	ctx    context.Context
	router *gin.Engine

	users       *repository.InMemoryUserRepository
	departments *repository.InMemoryDepartmentRepository

	water                            *models.Department
	citizen, neighbour, staff, admin *models.User
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(middlewares.RegisterValidators())
}

func (s *APISuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())

	issues := repository.NewInMemoryIssueRepository()
	s.users = repository.NewInMemoryUserRepository()
	s.departments = repository.NewInMemoryDepartmentRepository()
	notifications := repository.NewInMemoryNotificationRepository()

	uploadDir := s.T().TempDir()
	notificationService := services.NewNotificationService(notifications, s.users, s.departments, ws.NewHub(logger), m, logger)
	issueService := services.NewIssueService(
		issues,
		services.NewGeoDedupChecker(issues, m),
		services.NewDepartmentRouter(s.departments, logger),
		services.NewRewardLedger(s.users, m),
		notificationService,
		services.NewMediaUploader(media.NewLocalStore(uploadDir+"/public", "/uploads"), m, logger),
		m,
		logger,
	)

	s.water = &models.Department{Name: "Water Supply", Categories: []models.IssueCategory{models.CategoryWater}}
	s.Require().NoError(s.departments.Create(s.ctx, s.water))
	s.citizen = s.user("citizen@example.com", models.RoleCitizen)
	s.neighbour = s.user("neighbour@example.com", models.RoleCitizen)
	s.staff = s.user("staff@example.com", models.RoleStaff)
	s.admin = s.user("admin@example.com", models.RoleAdmin)
	s.Require().NoError(s.users.SetDepartment(s.ctx, s.staff.ID, &s.water.ID))
	s.Require().NoError(s.departments.AddStaff(s.ctx, s.water.ID, s.staff.ID))

	r := gin.New()
	auth := middlewares.AuthMiddleware(testSecret, s.users)
	noLimit := func(c *gin.Context) { c.Next() }
	routes.IssueRoutes(r, controllers.NewIssueController(issueService, uploadDir), auth, noLimit)
	routes.NotificationRoutes(r, controllers.NewNotificationController(notificationService), auth)
	api := r.Group("/api/v1")
	routes.AuthRoutes(api, controllers.NewAuthController(services.NewAuthService(s.users), testSecret, time.Hour, "", false), auth)
	routes.DepartmentRoutes(api, controllers.NewDepartmentController(services.NewDepartmentService(s.departments, s.users, issues, logger)), auth)
	routes.AnalyticsRoutes(api, controllers.NewAnalyticsController(services.NewAnalyticsService(issues, s.departments)), auth)
	s.router = r
}

func (s *APISuite) user(email string, role models.Role) *models.User {
	u := &models.User{Name: email, Email: email, Password: "secret1", Role: role}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *APISuite) token(u *models.User) string {
	tok, err := utils.GenerateToken(u, testSecret, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(method, path string, as *models.User, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](s *APISuite, w *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type issueEnvelope struct {
	Issue models.IssueResponse `json:"issue"`
}

func (s *APISuite) createIssue(lat, lng float64) models.IssueResponse {
	w := s.do(http.MethodPost, "/issues", s.citizen, gin.H{
		"title":       "Burst pipe",
		"description": "Water everywhere",
		"category":    "WATER",
		"address":     "4 Lake View",
		"latitude":    lat,
		"longitude":   lng,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return decode[issueEnvelope](s, w).Issue
}

func (s *APISuite) TestCreateIssue() {
	issue := s.createIssue(28.61, 77.21)

	s.Equal(models.StatusPending, issue.Status)
	s.Equal(28.61, issue.Latitude)
	s.Require().NotNil(issue.Department)
	s.Equal(s.water.ID.Hex(), *issue.Department)
}

func (s *APISuite) TestCreateIssueAccess() {
	w := s.do(http.MethodPost, "/issues", nil, gin.H{"title": "x"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/issues", s.staff, gin.H{"title": "x"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/issues", s.citizen, gin.H{"title": "x", "category": "FLOOD"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APISuite) TestCreateIssueMultipart() {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"title": "Dark street", "description": "Lamp out", "category": "WATER",
		"address": "9 Hill Road", "latitude": "28.5", "longitude": "77.1",
	} {
		s.Require().NoError(mw.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="media"; filename="photo.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	s.Require().NoError(err)
	_, err = part.Write([]byte("jpeg-bytes"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/issues", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(s.citizen))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	issue := decode[issueEnvelope](s, w).Issue
	s.Require().Len(issue.Media, 1)
	s.Equal(models.MediaImage, issue.Media[0].Type)
	s.True(strings.HasPrefix(issue.Media[0].URL, "/uploads/"+services.MediaFolder+"/"))
}

func (s *APISuite) TestGetIssue() {
	issue := s.createIssue(28.61, 77.21)

	w := s.do(http.MethodGet, "/issues/"+issue.ID, nil, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/issues/not-an-id", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/issues/"+s.water.ID.Hex(), nil, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestStatusTransitions() {
	issue := s.createIssue(28.61, 77.21)
	path := "/issues/" + issue.ID

	w := s.do(http.MethodPut, path, s.neighbour, gin.H{"title": "hijack"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, path, s.staff, gin.H{"status": "ACKNOWLEDGED"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(models.StatusAcknowledged, decode[issueEnvelope](s, w).Issue.Status)

	w = s.do(http.MethodPut, path, s.staff, gin.H{"status": "ACKNOWLEDGED"})
	s.Equal(http.StatusBadRequest, w.Code)
	body := decode[map[string]any](s, w)
	s.Equal("ACKNOWLEDGED", body["current"])
	s.Equal("ACKNOWLEDGED", body["attempted"])

	w = s.do(http.MethodPut, path, s.staff, gin.H{"status": "CLOSED"})
	s.Equal(http.StatusBadRequest, w.Code)

	citizen, err := s.users.FindByID(s.ctx, s.citizen.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), citizen.Wallet.Balance)

	w = s.do(http.MethodGet, "/notifications/my", s.citizen, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	feed := decode[models.Feed](s, w)
	s.Len(feed.Personal, 2)

	w = s.do(http.MethodPatch, "/notifications/mark-all-read", s.citizen, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), decode[map[string]any](s, w)["updated"])
}

func (s *APISuite) TestListIssues() {
	s.createIssue(28.61, 77.21)
	s.createIssue(19.07, 72.87)

	w := s.do(http.MethodGet, "/issues?near=28.61,77.21,5&status=pending", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Issues []models.IssueResponse `json:"issues"`
		Counts models.StatusCounts    `json:"counts"`
		Total  int64                  `json:"total"`
	}](s, w)
	s.Len(body.Issues, 1)
	s.Equal(int64(1), body.Counts.Pending)

	w = s.do(http.MethodGet, "/issues?near=28.61,77.21", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/issues?bbox=72,18,78,29", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), decode[map[string]any](s, w)["total"])

	w = s.do(http.MethodGet, "/issues?limit=500&page=0", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	page := decode[map[string]any](s, w)
	s.Equal(float64(services.MaxPageSize), page["limit"])
	s.Equal(float64(1), page["page"])
}

func (s *APISuite) TestMyAndRecentIssues() {
	mine := s.createIssue(28.61, 77.21)
	w := s.do(http.MethodPost, "/issues", s.neighbour, gin.H{
		"title": "Pipe burst", "description": "Flooded lane", "category": "WATER",
		"address": "7 Lake View", "latitude": 28.7, "longitude": 77.3,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/issues/my", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/issues/my", s.citizen, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Issues []models.IssueResponse `json:"issues"`
		Counts models.StatusCounts    `json:"counts"`
	}](s, w)
	s.Require().Len(body.Issues, 1)
	s.Equal(mine.ID, body.Issues[0].ID)
	s.Equal(int64(1), body.Counts.Pending)

	w = s.do(http.MethodGet, "/issues/recent?limit=5", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	recent := decode[struct {
		Issues []struct {
			ID        string  `json:"id"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"issues"`
	}](s, w).Issues
	s.Len(recent, 2)
	for _, pin := range recent {
		s.NotEmpty(pin.ID)
		s.NotZero(pin.Latitude)
		s.NotZero(pin.Longitude)
	}
}

func (s *APISuite) TestDepartmentNotificationRead() {
	s.createIssue(28.61, 77.21)

	w := s.do(http.MethodGet, "/notifications/my", s.staff, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	feed := decode[models.Feed](s, w)
	s.Require().Len(feed.Department, 1)
	s.False(feed.Department[0].IsRead)

	id := feed.Department[0].ID.Hex()
	w = s.do(http.MethodPatch, "/notifications/"+id+"/read", s.citizen, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPatch, "/notifications/"+id+"/read", s.staff, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/notifications/"+id, s.staff, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Empty(decode[models.Feed](s, s.do(http.MethodGet, "/notifications/my", s.staff, nil)).Department)
}

func (s *APISuite) TestBroadcast() {
	w := s.do(http.MethodPost, "/notifications/create", s.staff, gin.H{"title": "t", "message": "m", "role": "STAFF"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/notifications/create", s.admin, gin.H{"title": "t", "message": "m", "role": "CITIZEN"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal(float64(2), decode[map[string]any](s, w)["count"])

	w = s.do(http.MethodPost, "/notifications/create", s.admin, gin.H{"title": "t", "message": "m", "role": "MAYOR"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/notifications/create", s.admin, gin.H{"title": "Drill", "message": "Sirens at noon", "role": "ALL"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal(float64(4), decode[map[string]any](s, w)["count"])
	for u, want := range map[*models.User]int{s.citizen: 2, s.neighbour: 2, s.staff: 1, s.admin: 1} {
		feed := decode[models.Feed](s, s.do(http.MethodGet, "/notifications/my", u, nil))
		s.Len(feed.Personal, want, u.Email)
	}
}

func (s *APISuite) TestAuthFlow() {
	w := s.do(http.MethodPost, "/api/v1/auth/register", nil, gin.H{"name": "Ravi", "email": "ravi@example.com", "password": "hunter22"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/auth/register", nil, gin.H{"name": "Ravi", "email": "ravi@example.com", "password": "hunter22"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", nil, gin.H{"email": "ravi@example.com", "password": "wrong"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", nil, gin.H{"email": "ravi@example.com", "password": "hunter22"})
	s.Require().Equal(http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	s.Require().NotEmpty(cookies)
	s.Equal(utils.AuthCookieName, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookies[0])
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	s.Require().Equal(http.StatusOK, me.Code)
	s.Contains(me.Body.String(), "ravi@example.com")
	s.NotContains(me.Body.String(), "hunter22")
}

func (s *APISuite) TestDepartmentAdministration() {
	w := s.do(http.MethodPost, "/api/v1/departments", s.admin, gin.H{"name": "Roads", "categories": []string{"POTHOLE"}})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/departments", s.admin, gin.H{"name": "Roads"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/departments", s.staff, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/v1/departments/"+s.water.ID.Hex(), s.staff, gin.H{"name": "Water Board"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/v1/departments/"+s.water.ID.Hex(), s.admin, gin.H{"name": "Water Board", "categories": []string{"WATER", "OTHER"}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	updated := decode[struct {
		Department models.Department `json:"department"`
	}](s, w).Department
	s.Equal("Water Board", updated.Name)
	s.True(updated.Owns(models.CategoryOther))

	w = s.do(http.MethodPut, "/api/v1/departments/"+s.water.ID.Hex(), s.admin, gin.H{"name": "Roads"})
	s.Equal(http.StatusConflict, w.Code)
	w = s.do(http.MethodPut, "/api/v1/departments/"+s.water.ID.Hex(), s.admin, gin.H{"categories": []string{"FIRE"}})
	s.Equal(http.StatusBadRequest, w.Code)

	s.createIssue(28.61, 77.21)
	w = s.do(http.MethodGet, "/api/v1/departments/"+s.water.ID.Hex()+"/issues", s.staff, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), decode[map[string]any](s, w)["total"])

	w = s.do(http.MethodGet, "/api/v1/analytics/city", s.staff, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), decode[map[string]any](s, w)["totalIssues"])
}
