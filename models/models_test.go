package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRunningMean(t *testing.T) {
	assert.Equal(t, 60.0, RunningMean(0, 1, 60))
	assert.Equal(t, 90.0, RunningMean(60, 2, 120))
	assert.InDelta(t, 100.0, RunningMean(90, 3, 120), 1e-9)
}

func TestStatusCountsAdd(t *testing.T) {
	var c StatusCounts
	c.Add(StatusPending, 2)
	c.Add(StatusResolved, 1)
	c.Add(IssueStatus("BOGUS"), 5)

	assert.Equal(t, int64(2), c.Pending)
	assert.Equal(t, int64(1), c.Resolved)
	assert.Equal(t, int64(3), c.Total)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityCritical.Rank())
	assert.Zero(t, IssuePriority("URGENT").Rank())
	assert.False(t, RoleAll.Valid())
}

func TestIssueStatusTerminal(t *testing.T) {
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, IssueStatus("nope").Valid())
}

func TestUserBeforePersistHashesOnce(t *testing.T) {
	u := &User{Name: "Asha", Email: "asha@example.com", Password: "secret1"}
	require.NoError(t, u.BeforePersist())

	assert.Equal(t, RoleCitizen, u.Role)
	assert.NotEqual(t, "secret1", u.Password)
	assert.True(t, u.ComparePassword("secret1"))
	assert.False(t, u.ComparePassword("wrong"))

	hashed := u.Password
	require.NoError(t, u.BeforePersist())
	assert.Equal(t, hashed, u.Password)
}

func TestNotificationReceipts(t *testing.T) {
	viewer := primitive.NewObjectID()
	n := &Notification{ReadBy: []Receipt{{User: viewer, At: time.Now()}}}

	assert.True(t, n.ReadByUser(viewer))
	assert.False(t, n.ReadByUser(primitive.NewObjectID()))
	assert.False(t, n.ArchivedByUser(viewer))
	assert.False(t, n.IsPersonal())

	clone := n.Clone()
	clone.ReadBy[0].User = primitive.NewObjectID()
	assert.True(t, n.ReadByUser(viewer))
}

func TestIssueToResponse(t *testing.T) {
	dept := primitive.NewObjectID()
	issue := &Issue{
		ID:         primitive.NewObjectID(),
		Location:   NewGeoPoint(77.21, 28.61),
		Department: &dept,
	}
	resp := issue.ToResponse()

	assert.Equal(t, 28.61, resp.Latitude)
	assert.Equal(t, 77.21, resp.Longitude)
	require.NotNil(t, resp.Department)
	assert.Equal(t, dept.Hex(), *resp.Department)
	assert.Empty(t, resp.Media)
	assert.NotNil(t, resp.Media)
}
