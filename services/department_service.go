package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"civictrack/models"
	"civictrack/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrDuplicateDepartment = errors.New("department already exists")

type CreateDepartmentInput struct {
	Name        string
	Code        string
	Description string
	Categories  []models.IssueCategory
	Head        *primitive.ObjectID
}

// DepartmentService is plain department administration. It never touches
// issue state.
type DepartmentService struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
	issues      repository.IssueRepository
	logger      *slog.Logger
}

func NewDepartmentService(
	departments repository.DepartmentRepository,
	users repository.UserRepository,
	issues repository.IssueRepository,
	logger *slog.Logger,
) *DepartmentService {
	return &DepartmentService{departments: departments, users: users, issues: issues, logger: logger}
}

func (s *DepartmentService) Create(ctx context.Context, in CreateDepartmentInput) (*models.Department, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if err := validateCategories(in.Categories); err != nil {
		return nil, err
	}
	if err := s.warnOverlap(ctx, primitive.NilObjectID, name, in.Categories); err != nil {
		return nil, err
	}

	dept := &models.Department{
		Name:        name,
		Code:        strings.ToUpper(strings.TrimSpace(in.Code)),
		Description: strings.TrimSpace(in.Description),
		Categories:  in.Categories,
		Head:        in.Head,
		Staff:       []primitive.ObjectID{},
		Issues:      []primitive.ObjectID{},
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateDepartment
		}
		return nil, err
	}
	return dept, nil
}

type UpdateDepartmentInput struct {
	Name        *string
	Code        *string
	Description *string
	Categories  *[]models.IssueCategory
	Head        *primitive.ObjectID
}

// Update edits the administrative fields of a department. Counters, staff and
// routed issues are not touched.
func (s *DepartmentService) Update(ctx context.Context, id primitive.ObjectID, in UpdateDepartmentInput) (*models.Department, error) {
	current, err := s.departments.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	var patch repository.DepartmentPatch
	name := current.Name
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "cannot be empty")
		}
		patch.Name = &name
	}
	if in.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.Code))
		patch.Code = &code
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		patch.Description = &desc
	}
	if in.Categories != nil {
		if err := validateCategories(*in.Categories); err != nil {
			return nil, err
		}
		if err := s.warnOverlap(ctx, id, name, *in.Categories); err != nil {
			return nil, err
		}
		categories := append([]models.IssueCategory{}, (*in.Categories)...)
		patch.Categories = &categories
	}
	patch.Head = in.Head

	dept, err := s.departments.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateDepartment
		}
		return nil, storeErr(err)
	}
	return dept, nil
}

func validateCategories(categories []models.IssueCategory) error {
	for _, c := range categories {
		if !c.Valid() {
			return invalid("categories", "unknown category "+string(c))
		}
	}
	return nil
}

// warnOverlap logs categories another department already owns. Overlapping
// ownership is allowed; routing picks the oldest owner.
func (s *DepartmentService) warnOverlap(ctx context.Context, self primitive.ObjectID, name string, categories []models.IssueCategory) error {
	existing, err := s.departments.List(ctx)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if d.ID == self {
			continue
		}
		for _, c := range categories {
			if d.Owns(c) {
				s.logger.WarnContext(ctx, "category already owned by another department",
					"category", c, "owner", d.Name, "department", name)
			}
		}
	}
	return nil
}

func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	return s.departments.List(ctx)
}

// Get returns a department. Staff may only read their own department.
func (s *DepartmentService) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Department, error) {
	if actor.Role == models.RoleStaff && !actor.InDepartment(id) {
		return nil, ErrForbidden
	}
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return dept, nil
}

// AssignStaff moves a STAFF user into the department, leaving any previous
// department first.
func (s *DepartmentService) AssignStaff(ctx context.Context, deptID, userID primitive.ObjectID) (*models.Department, error) {
	if _, err := s.departments.FindByID(ctx, deptID); err != nil {
		return nil, storeErr(err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if user.Role != models.RoleStaff {
		return nil, invalid("staffId", "user is not a staff member")
	}

	if user.Department != nil && *user.Department != deptID {
		if err := s.departments.RemoveStaff(ctx, *user.Department, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	if err := s.departments.AddStaff(ctx, deptID, userID); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, storeErr(err)
	}
	if err := s.users.SetDepartment(ctx, userID, &deptID); err != nil {
		return nil, storeErr(err)
	}
	dept, err := s.departments.FindByID(ctx, deptID)
	return dept, storeErr(err)
}

func (s *DepartmentService) RemoveStaff(ctx context.Context, deptID, userID primitive.ObjectID) (*models.Department, error) {
	dept, err := s.departments.FindByID(ctx, deptID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !dept.HasStaff(userID) {
		return nil, ErrNotFound
	}
	if err := s.departments.RemoveStaff(ctx, deptID, userID); err != nil {
		return nil, storeErr(err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err == nil && user.InDepartment(deptID) {
		if err := s.users.SetDepartment(ctx, userID, nil); err != nil {
			return nil, storeErr(err)
		}
	}
	dept, err = s.departments.FindByID(ctx, deptID)
	return dept, storeErr(err)
}

// Issues lists the issues routed to a department.
func (s *DepartmentService) Issues(ctx context.Context, actor *models.User, deptID primitive.ObjectID, status models.IssueStatus, page, limit int) (*repository.IssuePage, error) {
	if _, err := s.Get(ctx, actor, deptID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	page, limit = clampPage(page, limit)
	return findPage(ctx, s.issues, repository.IssueFilter{Department: &deptID, Status: status},
		repository.DefaultIssueSort, page, limit)
}
