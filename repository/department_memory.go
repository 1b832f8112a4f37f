package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"civictrack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InMemoryDepartmentRepository serializes every counter update behind a
// single lock, which keeps the running mean consistent with resolvedIssues.
type InMemoryDepartmentRepository struct {
	mu          sync.RWMutex
	departments map[primitive.ObjectID]*models.Department
	now         func() time.Time
}

func NewInMemoryDepartmentRepository() *InMemoryDepartmentRepository {
	return &InMemoryDepartmentRepository{
		departments: make(map[primitive.ObjectID]*models.Department),
		now:         time.Now,
	}
}

func (r *InMemoryDepartmentRepository) Create(_ context.Context, dept *models.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.departments {
		if existing.Name == dept.Name {
			return ErrDuplicate
		}
	}
	if dept.ID.IsZero() {
		dept.ID = primitive.NewObjectID()
	}
	now := r.now()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now
	r.departments[dept.ID] = dept.Clone()
	return nil
}

func (r *InMemoryDepartmentRepository) Update(_ context.Context, id primitive.ObjectID, patch DepartmentPatch) (*models.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dept, ok := r.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Name != nil {
		for otherID, other := range r.departments {
			if otherID != id && other.Name == *patch.Name {
				return nil, ErrDuplicate
			}
		}
		dept.Name = *patch.Name
	}
	if patch.Code != nil {
		dept.Code = *patch.Code
	}
	if patch.Description != nil {
		dept.Description = *patch.Description
	}
	if patch.Categories != nil {
		dept.Categories = append([]models.IssueCategory(nil), (*patch.Categories)...)
	}
	if patch.Head != nil {
		head := *patch.Head
		dept.Head = &head
	}
	dept.UpdatedAt = r.now()
	return dept.Clone(), nil
}

func (r *InMemoryDepartmentRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dept, ok := r.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return dept.Clone(), nil
}

func (r *InMemoryDepartmentRepository) List(_ context.Context) ([]models.Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(), nil
}

func (r *InMemoryDepartmentRepository) sorted() []models.Department {
	out := make([]models.Department, 0, len(r.departments))
	for _, d := range r.departments {
		out = append(out, *d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (r *InMemoryDepartmentRepository) FindByCategory(_ context.Context, category models.IssueCategory) (*models.Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.sorted() {
		if d.Owns(category) {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryDepartmentRepository) RecordIssueCreated(_ context.Context, id, issueID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dept, ok := r.departments[id]
	if !ok {
		return ErrNotFound
	}
	dept.TotalIssues++
	dept.Issues = append(dept.Issues, issueID)
	dept.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryDepartmentRepository) RecordIssueResolved(_ context.Context, id primitive.ObjectID, minutes float64) (*models.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dept, ok := r.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	dept.ResolvedIssues++
	dept.AvgResolutionTime = models.RunningMean(dept.AvgResolutionTime, dept.ResolvedIssues, minutes)
	dept.UpdatedAt = r.now()
	return dept.Clone(), nil
}

func (r *InMemoryDepartmentRepository) AddStaff(_ context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dept, ok := r.departments[id]
	if !ok {
		return ErrNotFound
	}
	if dept.HasStaff(userID) {
		return ErrDuplicate
	}
	dept.Staff = append(dept.Staff, userID)
	dept.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryDepartmentRepository) RemoveStaff(_ context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dept, ok := r.departments[id]
	if !ok {
		return ErrNotFound
	}
	staff := dept.Staff[:0]
	for _, s := range dept.Staff {
		if s != userID {
			staff = append(staff, s)
		}
	}
	dept.Staff = staff
	dept.UpdatedAt = r.now()
	return nil
}
