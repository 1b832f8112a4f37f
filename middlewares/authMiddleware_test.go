package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civictrack/models"
	"civictrack/repository"
	"civictrack/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type AuthMiddlewareSuite struct {
	suite.Suite
	users   *repository.InMemoryUserRepository
	router  *gin.Engine
	citizen *models.User
	staff   *models.User
}

func (s *AuthMiddlewareSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.users = repository.NewInMemoryUserRepository()

	s.citizen = &models.User{Name: "Asha", Email: "asha@example.com", Password: "secret1", Role: models.RoleCitizen}
	s.staff = &models.User{Name: "Ravi", Email: "ravi@example.com", Password: "secret1", Role: models.RoleStaff}
	s.Require().NoError(s.users.Create(context.Background(), s.citizen))
	s.Require().NoError(s.users.Create(context.Background(), s.staff))

	s.router = gin.New()
	s.router.GET("/me", AuthMiddleware(testSecret, s.users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID.Hex()})
	})
	s.router.GET("/staff", AuthMiddleware(testSecret, s.users), AuthorizeRoles(models.RoleStaff, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	s.router.GET("/ws", WSAuthMiddleware(testSecret, s.users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func (s *AuthMiddlewareSuite) token(u *models.User) string {
	token, err := utils.GenerateToken(u, testSecret, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *AuthMiddlewareSuite) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareSuite) TestMissingToken() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/me", nil))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthMiddlewareSuite) TestCookieToken() {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: utils.AuthCookieName, Value: s.token(s.citizen)})
	w := s.do(req)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), s.citizen.ID.Hex())
}

func (s *AuthMiddlewareSuite) TestBearerToken() {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(s.citizen))
	s.Equal(http.StatusOK, s.do(req).Code)
}

func (s *AuthMiddlewareSuite) TestUnknownUser() {
	ghost := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(ghost))
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func (s *AuthMiddlewareSuite) TestRoleGate() {
	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(s.citizen))
	s.Equal(http.StatusForbidden, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(s.staff))
	s.Equal(http.StatusNoContent, s.do(req).Code)
}

func (s *AuthMiddlewareSuite) TestRoleComesFromStoredUser() {
	// A token minted with an elevated role does not grant it.
	forged := *s.citizen
	forged.Role = models.RoleAdmin
	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(&forged))
	s.Equal(http.StatusForbidden, s.do(req).Code)
}

func (s *AuthMiddlewareSuite) TestWebsocketQueryToken() {
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+s.token(s.staff), nil)
	s.Equal(http.StatusNoContent, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me?token="+s.token(s.staff), nil)
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func TestCurrentUserMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, CurrentUser(c))

	u := &models.User{ID: primitive.NewObjectID()}
	SetCurrentUser(c, u)
	require.NotNil(t, CurrentUser(c))
	assert.Equal(t, u.ID, CurrentUser(c).ID)
}
