package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the workflow counters. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry setup.
type Metrics struct {
	IssuesCreated        *prometheus.CounterVec
	IssueTransitions     *prometheus.CounterVec
	DuplicateRejections  prometheus.Counter
	NotificationsCreated *prometheus.CounterVec
	RealtimePushFailures prometheus.Counter
	RewardCredits        prometheus.Counter
	MediaUploadDuration  prometheus.Histogram
	RateLimitRejections  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IssuesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrack_issues_created_total",
			Help: "Total number of issues created, by category",
		}, []string{"category"}),
		IssueTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrack_issue_transitions_total",
			Help: "Total number of applied issue status transitions",
		}, []string{"from", "to"}),
		DuplicateRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "civictrack_issue_duplicate_location_total",
			Help: "Total number of issue creations rejected for a duplicate location",
		}),
		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civictrack_notifications_created_total",
			Help: "Total number of persisted notifications, by audience and type",
		}, []string{"audience", "type"}),
		RealtimePushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "civictrack_realtime_push_failures_total",
			Help: "Total number of realtime notification pushes that failed",
		}),
		RewardCredits: factory.NewCounter(prometheus.CounterOpts{
			Name: "civictrack_reward_credits_total",
			Help: "Total number of acknowledgment rewards credited",
		}),
		MediaUploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "civictrack_media_upload_duration_seconds",
			Help:    "Time taken to upload one media file",
			Buckets: prometheus.DefBuckets,
		}),
		RateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "civictrack_issue_rate_limit_rejections_total",
			Help: "Total number of issue creations rejected by the daily limit",
		}),
	}
}

func (m *Metrics) IncIssueCreated(category string) {
	if m == nil {
		return
	}
	m.IssuesCreated.WithLabelValues(category).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.IssueTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncDuplicateRejection() {
	if m == nil {
		return
	}
	m.DuplicateRejections.Inc()
}

func (m *Metrics) IncNotification(audience, kind string) {
	if m == nil {
		return
	}
	m.NotificationsCreated.WithLabelValues(audience, kind).Inc()
}

func (m *Metrics) IncPushFailure() {
	if m == nil {
		return
	}
	m.RealtimePushFailures.Inc()
}

func (m *Metrics) IncRewardCredit() {
	if m == nil {
		return
	}
	m.RewardCredits.Inc()
}

func (m *Metrics) ObserveUpload(d time.Duration) {
	if m == nil {
		return
	}
	m.MediaUploadDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRateLimitRejection() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}
