package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncIssueCreated("WATER")
	m.IncIssueCreated("WATER")
	m.IncTransition("PENDING", "ACKNOWLEDGED")
	m.IncRewardCredit()
	m.ObserveUpload(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IssuesCreated.WithLabelValues("WATER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IssueTransitions.WithLabelValues("PENDING", "ACKNOWLEDGED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewardCredits))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncIssueCreated("POTHOLE")
		m.IncTransition("PENDING", "REJECTED")
		m.IncDuplicateRejection()
		m.IncNotification("user", "ISSUE")
		m.IncPushFailure()
		m.IncRewardCredit()
		m.ObserveUpload(time.Second)
		m.IncRateLimitRejection()
	})
}
