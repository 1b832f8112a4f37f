package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civictrack/models"

	"github.com/tidwall/rtree"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InMemoryIssueRepository keeps issues in a map with an R-tree over their
// locations. Issue locations never change after creation, so the index is
// insert-only.
type InMemoryIssueRepository struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*models.Issue
	index  rtree.RTreeG[primitive.ObjectID]
	now    func() time.Time
}

func NewInMemoryIssueRepository() *InMemoryIssueRepository {
	return &InMemoryIssueRepository{
		issues: make(map[primitive.ObjectID]*models.Issue),
		now:    time.Now,
	}
}

func (r *InMemoryIssueRepository) Create(_ context.Context, issue *models.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, exists := r.issues[issue.ID]; exists {
		return ErrDuplicate
	}
	now := r.now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	stored := issue.Clone()
	r.issues[issue.ID] = stored
	pt := [2]float64{stored.Location.Lng(), stored.Location.Lat()}
	r.index.Insert(pt, pt, stored.ID)
	return nil
}

func (r *InMemoryIssueRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return issue.Clone(), nil
}

func (r *InMemoryIssueRepository) Find(_ context.Context, filter IssueFilter, sortBy IssueSort, offset, limit int) (*IssuePage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.Issue, 0)
	for _, issue := range r.candidates(filter) {
		if matchesIssue(issue, filter) {
			matched = append(matched, issue)
		}
	}

	page := &IssuePage{Total: int64(len(matched))}
	for _, issue := range matched {
		page.Counts.Add(issue.Status, 1)
	}

	field, desc := sortBy.Parse()
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareIssues(matched[i], matched[j], field)
		if c == 0 {
			c = strings.Compare(matched[i].ID.Hex(), matched[j].ID.Hex())
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	if offset < 0 {
		offset = 0
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page.Items = make([]models.Issue, 0)
	for i := offset; i < end; i++ {
		page.Items = append(page.Items, *matched[i].Clone())
	}
	return page, nil
}

// candidates narrows the scan through the spatial index when the filter has a
// geographic predicate.
func (r *InMemoryIssueRepository) candidates(filter IssueFilter) []*models.Issue {
	if filter.Near == nil && filter.Box == nil {
		out := make([]*models.Issue, 0, len(r.issues))
		for _, issue := range r.issues {
			out = append(out, issue)
		}
		return out
	}

	var rects []rect
	if filter.Box != nil {
		b := filter.Box.Normalize()
		rects = []rect{{{b.MinLng, b.MinLat}, {b.MaxLng, b.MaxLat}}}
	} else {
		rects = filter.Near.envelopes()
	}

	out := make([]*models.Issue, 0)
	for _, rc := range rects {
		r.index.Search(rc[0], rc[1], func(_, _ [2]float64, id primitive.ObjectID) bool {
			if issue, ok := r.issues[id]; ok {
				out = append(out, issue)
			}
			return true
		})
	}
	return out
}

func matchesIssue(issue *models.Issue, f IssueFilter) bool {
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Category != "" && issue.Category != f.Category {
		return false
	}
	if f.Priority != "" && issue.Priority != f.Priority {
		return false
	}
	if f.Department != nil && (issue.Department == nil || *issue.Department != *f.Department) {
		return false
	}
	if f.CreatedBy != nil && issue.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(issue.Title), q) &&
			!strings.Contains(strings.ToLower(issue.Description), q) {
			return false
		}
	}
	lng, lat := issue.Location.Lng(), issue.Location.Lat()
	if f.Near != nil && !f.Near.contains(lng, lat) {
		return false
	}
	if f.Box != nil && !f.Box.Normalize().contains(lng, lat) {
		return false
	}
	return true
}

func compareIssues(a, b *models.Issue, field string) int {
	switch field {
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "priority":
		return a.Priority.Rank() - b.Priority.Rank()
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "title":
		return strings.Compare(a.Title, b.Title)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (r *InMemoryIssueRepository) Update(_ context.Context, id primitive.ObjectID, expected models.IssueStatus, patch IssuePatch) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	if issue.Status != expected {
		return nil, ErrConflict
	}

	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Category != nil {
		issue.Category = *patch.Category
	}
	if patch.Address != nil {
		issue.Address = *patch.Address
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		v := *patch.AssignedTo
		issue.AssignedTo = &v
	}
	if patch.Department != nil {
		v := *patch.Department
		issue.Department = &v
	}
	if patch.Media != nil {
		issue.Media = append([]models.Media(nil), (*patch.Media)...)
	}
	if patch.ResolvedAt != nil {
		v := *patch.ResolvedAt
		issue.ResolvedAt = &v
	}
	issue.UpdatedAt = r.now()
	return issue.Clone(), nil
}

func (r *InMemoryIssueRepository) ExistsAtPoint(_ context.Context, lng, lat float64, statuses []models.IssueStatus) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := false
	pt := [2]float64{lng, lat}
	r.index.Search(pt, pt, func(_, _ [2]float64, id primitive.ObjectID) bool {
		issue, ok := r.issues[id]
		if !ok || issue.Location.Lng() != lng || issue.Location.Lat() != lat {
			return true
		}
		for _, s := range statuses {
			if issue.Status == s {
				found = true
				return false
			}
		}
		return true
	})
	return found, nil
}

func (r *InMemoryIssueRepository) Stats(_ context.Context) (*CityStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &CityStats{Categories: []CategoryCount{}}
	byCategory := make(map[models.IssueCategory]int64)
	var resolutionHours float64
	for _, issue := range r.issues {
		stats.TotalIssues++
		byCategory[issue.Category]++
		if issue.Status == models.StatusResolved && issue.ResolvedAt != nil {
			stats.ResolvedIssues++
			resolutionHours += issue.ResolvedAt.Sub(issue.CreatedAt).Hours()
		}
	}
	if stats.ResolvedIssues > 0 {
		stats.AvgResolutionHours = resolutionHours / float64(stats.ResolvedIssues)
	}
	for _, c := range models.IssueCategories {
		if n := byCategory[c]; n > 0 {
			stats.Categories = append(stats.Categories, CategoryCount{Category: c, Total: n})
		}
	}
	return stats, nil
}
