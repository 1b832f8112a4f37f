//go:build integration

package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"civictrack/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueRateLimiter(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	gin.SetMode(gin.TestMode)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	router := gin.New()
	router.POST("/issues",
		func(c *gin.Context) { SetCurrentUser(c, user); c.Next() },
		IssueRateLimiter(client, "issue_limit_test", 2, nil),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/issues", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	ttl, err := client.TTL(ctx, "issue_limit_test:"+user.ID.Hex()).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
