package services

import (
	"context"
	"errors"
	"log/slog"

	"civictrack/models"
	"civictrack/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DepartmentRouter maps categories to departments and keeps the department
// event counters.
type DepartmentRouter struct {
	departments repository.DepartmentRepository
	logger      *slog.Logger
}

func NewDepartmentRouter(departments repository.DepartmentRepository, logger *slog.Logger) *DepartmentRouter {
	return &DepartmentRouter{departments: departments, logger: logger}
}

// RouteCategory returns the first department, in stable order, that owns
// category.
func (r *DepartmentRouter) RouteCategory(ctx context.Context, category models.IssueCategory) (*models.Department, error) {
	dept, err := r.departments.FindByCategory(ctx, category)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoDepartmentForCategory
	}
	if err != nil {
		return nil, err
	}
	return dept, nil
}

func (r *DepartmentRouter) OnIssueCreated(ctx context.Context, deptID, issueID primitive.ObjectID) error {
	return storeErr(r.departments.RecordIssueCreated(ctx, deptID, issueID))
}

func (r *DepartmentRouter) OnIssueResolved(ctx context.Context, deptID primitive.ObjectID, resolutionMinutes float64) error {
	dept, err := r.departments.RecordIssueResolved(ctx, deptID, resolutionMinutes)
	if err != nil {
		return storeErr(err)
	}
	r.logger.DebugContext(ctx, "department resolution stats updated",
		"department", dept.ID.Hex(),
		"resolved", dept.ResolvedIssues,
		"avg_minutes", dept.AvgResolutionTime,
	)
	return nil
}

// OnCategoryChanged re-routes issue for newCategory. When no department owns
// the new category the current department is kept. Counters of the previous
// department are left untouched.
func (r *DepartmentRouter) OnCategoryChanged(ctx context.Context, issue *models.Issue, newCategory models.IssueCategory) (*primitive.ObjectID, error) {
	dept, err := r.RouteCategory(ctx, newCategory)
	if errors.Is(err, ErrNoDepartmentForCategory) {
		r.logger.WarnContext(ctx, "no department for new category, keeping current routing",
			"issue", issue.ID.Hex(), "category", newCategory)
		return issue.Department, nil
	}
	if err != nil {
		return nil, err
	}
	id := dept.ID
	return &id, nil
}
