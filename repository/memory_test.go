package repository

import (
	"context"
	"testing"
	"time"

	"civictrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

func newIssue(lat, lng float64, status models.IssueStatus) *models.Issue {
	return &models.Issue{
		Title:     "Broken pipe",
		Category:  models.CategoryWater,
		Location:  models.NewGeoPoint(lng, lat),
		Status:    status,
		Priority:  models.PriorityLow,
		CreatedBy: primitive.NewObjectID(),
	}
}

func TestIssueRepositoryGeoFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryIssueRepository()

	center := newIssue(28.6100, 77.2100, models.StatusPending)
	nearby := newIssue(28.6150, 77.2150, models.StatusAcknowledged) // ~0.7km
	far := newIssue(19.0760, 72.8777, models.StatusPending)         // Mumbai
	for _, i := range []*models.Issue{center, nearby, far} {
		require.NoError(t, repo.Create(ctx, i))
	}

	page, err := repo.Find(ctx, IssueFilter{Near: &NearFilter{Lat: 28.61, Lng: 77.21, RadiusKm: 2}}, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, int64(1), page.Counts.Pending)
	assert.Equal(t, int64(1), page.Counts.Acknowledged)

	page, err = repo.Find(ctx, IssueFilter{Box: &BoxFilter{MinLng: 77.3, MinLat: 28.7, MaxLng: 77.0, MaxLat: 28.5}}, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = repo.Find(ctx, IssueFilter{Status: models.StatusPending}, "", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 1)
}

func TestIssueRepositoryGeoEdges(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryIssueRepository()

	east := newIssue(0, 179.99, models.StatusPending)
	west := newIssue(0, -179.99, models.StatusPending)
	steppe := newIssue(41, 30, models.StatusPending)
	for _, i := range []*models.Issue{east, west, steppe} {
		require.NoError(t, repo.Create(ctx, i))
	}

	// ~2.2km apart across the antimeridian.
	page, err := repo.Find(ctx, IssueFilter{Near: &NearFilter{Lat: 0, Lng: 179.99, RadiusKm: 10}}, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = repo.Find(ctx, IssueFilter{Near: &NearFilter{Lat: 0, Lng: -179.99, RadiusKm: 10}}, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	// Box edges are straight lines in lng/lat, so lat 41 sits inside a 40..50 box.
	page, err = repo.Find(ctx, IssueFilter{Box: &BoxFilter{MinLng: 0, MinLat: 40, MaxLng: 60, MaxLat: 50}}, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, steppe.ID, page.Items[0].ID)
}

func TestIssueRepositoryFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryIssueRepository()
	reporter := primitive.NewObjectID()

	priorities := []models.IssuePriority{models.PriorityLow, models.PriorityCritical, models.PriorityMedium, models.PriorityHigh}
	for i, p := range priorities {
		issue := newIssue(28.61+float64(i)/100, 77.21, models.StatusPending)
		issue.Priority = p
		if i%2 == 0 {
			issue.CreatedBy = reporter
		}
		require.NoError(t, repo.Create(ctx, issue))
	}

	page, err := repo.Find(ctx, IssueFilter{}, "-priority", 0, 10)
	require.NoError(t, err)
	got := make([]models.IssuePriority, 0, len(page.Items))
	for _, i := range page.Items {
		got = append(got, i.Priority)
	}
	assert.Equal(t, []models.IssuePriority{models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow}, got)

	page, err = repo.Find(ctx, IssueFilter{CreatedBy: &reporter}, "priority", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, models.PriorityLow, page.Items[0].Priority)
	assert.Equal(t, models.PriorityMedium, page.Items[1].Priority)
}

func TestIssueRepositoryConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryIssueRepository()
	issue := newIssue(28.61, 77.21, models.StatusPending)
	require.NoError(t, repo.Create(ctx, issue))

	ack := models.StatusAcknowledged
	updated, err := repo.Update(ctx, issue.ID, models.StatusPending, IssuePatch{Status: &ack})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, updated.Status)

	_, err = repo.Update(ctx, issue.ID, models.StatusPending, IssuePatch{Status: &ack})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.Update(ctx, primitive.NewObjectID(), models.StatusPending, IssuePatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssueRepositoryExistsAtPoint(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryIssueRepository()
	require.NoError(t, repo.Create(ctx, newIssue(28.61, 77.21, models.StatusInProgress)))
	require.NoError(t, repo.Create(ctx, newIssue(28.62, 77.22, models.StatusPending)))

	active := []models.IssueStatus{models.StatusAcknowledged, models.StatusInProgress, models.StatusResolved}

	found, err := repo.ExistsAtPoint(ctx, 77.21, 28.61, active)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsAtPoint(ctx, 77.22, 28.62, active)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.ExistsAtPoint(ctx, 77.2100001, 28.61, active)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDepartmentRepositoryRunningMean(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDepartmentRepository()
	dept := &models.Department{Name: "Water Supply", Categories: []models.IssueCategory{models.CategoryWater}}
	require.NoError(t, repo.Create(ctx, dept))

	_, err := repo.RecordIssueResolved(ctx, dept.ID, 60)
	require.NoError(t, err)
	got, err := repo.RecordIssueResolved(ctx, dept.ID, 120)
	require.NoError(t, err)

	assert.Equal(t, int64(2), got.ResolvedIssues)
	assert.Equal(t, 90.0, got.AvgResolutionTime)
}

func TestDepartmentRepositoryConcurrentResolutions(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDepartmentRepository()
	dept := &models.Department{Name: "Water Supply", Categories: []models.IssueCategory{models.CategoryWater}}
	require.NoError(t, repo.Create(ctx, dept))

	const n = 50
	var g errgroup.Group
	for i := 1; i <= n; i++ {
		minutes := float64(i)
		g.Go(func() error {
			_, err := repo.RecordIssueResolved(ctx, dept.ID, minutes)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := repo.FindByID(ctx, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.ResolvedIssues)
	assert.InDelta(t, float64(n+1)/2, got.AvgResolutionTime, 1e-9)
}

func TestDepartmentRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDepartmentRepository()
	water := &models.Department{Name: "Water Supply", Categories: []models.IssueCategory{models.CategoryWater}}
	roads := &models.Department{Name: "Public Works", Categories: []models.IssueCategory{models.CategoryPothole}}
	require.NoError(t, repo.Create(ctx, water))
	require.NoError(t, repo.Create(ctx, roads))
	require.NoError(t, repo.RecordIssueCreated(ctx, water.ID, primitive.NewObjectID()))

	name := "Water Board"
	cats := []models.IssueCategory{models.CategoryWater, models.CategoryGarbage}
	got, err := repo.Update(ctx, water.ID, DepartmentPatch{Name: &name, Categories: &cats})
	require.NoError(t, err)
	assert.Equal(t, "Water Board", got.Name)
	assert.Equal(t, int64(1), got.TotalIssues)

	owner, err := repo.FindByCategory(ctx, models.CategoryGarbage)
	require.NoError(t, err)
	assert.Equal(t, water.ID, owner.ID)

	taken := "Public Works"
	_, err = repo.Update(ctx, water.ID, DepartmentPatch{Name: &taken})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Keeping its own name is not a clash.
	_, err = repo.Update(ctx, roads.ID, DepartmentPatch{Name: &taken})
	assert.NoError(t, err)

	_, err = repo.Update(ctx, primitive.NewObjectID(), DepartmentPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepartmentRepositoryCategoryTieBreak(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDepartmentRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	later := &models.Department{Name: "Later", Categories: []models.IssueCategory{models.CategoryWater}, CreatedAt: base.Add(time.Hour)}
	first := &models.Department{Name: "First", Categories: []models.IssueCategory{models.CategoryWater}, CreatedAt: base}
	require.NoError(t, repo.Create(ctx, later))
	require.NoError(t, repo.Create(ctx, first))

	got, err := repo.FindByCategory(ctx, models.CategoryWater)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = repo.FindByCategory(ctx, models.CategoryGarbage)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Create(ctx, &models.Department{Name: "First"}), ErrDuplicate)
}

func TestNotificationRepositoryReceiptsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryNotificationRepository()
	dept := primitive.NewObjectID()
	viewer := primitive.NewObjectID()
	n := &models.Notification{RecipientDepartment: &dept, Title: "New issue", Type: models.NotificationIssue}
	require.NoError(t, repo.Create(ctx, n))

	now := time.Now()
	require.NoError(t, repo.AddReadReceipt(ctx, n.ID, viewer, now))
	require.NoError(t, repo.AddReadReceipt(ctx, n.ID, viewer, now.Add(time.Minute)))

	got, err := repo.FindByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, got.ReadBy, 1)

	require.NoError(t, repo.AddArchiveReceipt(ctx, n.ID, viewer, now))
	list, err := repo.ListDepartment(ctx, dept, viewer, FeedLimit)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.ListDepartment(ctx, dept, primitive.NewObjectID(), FeedLimit)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.AddReadReceipt(ctx, primitive.NewObjectID(), viewer, now), ErrNotFound)
}

func TestUserRepositoryWallet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUserRepository()
	u := &models.User{Name: "Asha", Email: "Asha@Example.com", Password: "secret1"}
	require.NoError(t, repo.Create(ctx, u))

	_, err := repo.FindByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, &models.User{Email: "asha@example.com"}), ErrDuplicate)

	got, err := repo.AppendTransaction(ctx, u.ID, models.Transaction{Description: "reward", Coins: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Wallet.Balance)
	assert.Len(t, got.Wallet.Transactions, 1)

	_, err = repo.AppendTransaction(ctx, u.ID, models.Transaction{Description: "spend", Coins: -2})
	assert.ErrorIs(t, err, ErrConflict)

	again, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Wallet.Balance)
}
