package services

import (
	"context"

	"civictrack/repository"
)

type DepartmentStats struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TotalIssues       int64   `json:"totalIssues"`
	ResolvedIssues    int64   `json:"resolvedIssues"`
	AvgResolutionTime float64 `json:"avgResolutionTime"`
}

type CityReport struct {
	repository.CityStats
	Departments []DepartmentStats `json:"departments"`
}

// AnalyticsService is read-only city reporting.
type AnalyticsService struct {
	issues      repository.IssueRepository
	departments repository.DepartmentRepository
}

func NewAnalyticsService(issues repository.IssueRepository, departments repository.DepartmentRepository) *AnalyticsService {
	return &AnalyticsService{issues: issues, departments: departments}
}

func (s *AnalyticsService) City(ctx context.Context) (*CityReport, error) {
	stats, err := s.issues.Stats(ctx)
	if err != nil {
		return nil, err
	}
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &CityReport{CityStats: *stats, Departments: make([]DepartmentStats, 0, len(departments))}
	for _, d := range departments {
		report.Departments = append(report.Departments, DepartmentStats{
			ID:                d.ID.Hex(),
			Name:              d.Name,
			TotalIssues:       d.TotalIssues,
			ResolvedIssues:    d.ResolvedIssues,
			AvgResolutionTime: d.AvgResolutionTime,
		})
	}
	return report, nil
}
