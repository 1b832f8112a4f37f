package services

import (
	"context"

	"civictrack/metrics"
	"civictrack/models"
	"civictrack/repository"
)

// dedupStatuses are the states that block a new report at the same point.
// PENDING is left out so several citizens can report an unacknowledged hazard.
var dedupStatuses = []models.IssueStatus{
	models.StatusAcknowledged,
	models.StatusInProgress,
	models.StatusResolved,
}

type GeoDedupChecker struct {
	issues  repository.IssueRepository
	metrics *metrics.Metrics
}

func NewGeoDedupChecker(issues repository.IssueRepository, m *metrics.Metrics) *GeoDedupChecker {
	return &GeoDedupChecker{issues: issues, metrics: m}
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return invalid("latitude", "must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return invalid("longitude", "must be between -180 and 180")
	}
	return nil
}

// Check fails with ErrDuplicateLocation when an issue in one of dedupStatuses
// sits on exactly the same coordinates.
func (d *GeoDedupChecker) Check(ctx context.Context, lat, lng float64) error {
	if err := validateCoordinates(lat, lng); err != nil {
		return err
	}
	exists, err := d.issues.ExistsAtPoint(ctx, lng, lat, dedupStatuses)
	if err != nil {
		return err
	}
	if exists {
		d.metrics.IncDuplicateRejection()
		return ErrDuplicateLocation
	}
	return nil
}
