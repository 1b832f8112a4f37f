package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civictrack/metrics"
	"civictrack/models"
	"civictrack/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	DefaultPageSize      = 10
	MaxPageSize          = 100
	RecentIssuesLimit    = 20
)

type CreateIssueInput struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Address     string
	Latitude    *float64
	Longitude   *float64
	Priority    models.IssuePriority
	Media       []MediaFile
}

// UpdateIssueInput is a partial update. Nil fields are left unchanged; a
// non-empty Media replaces the whole media list.
type UpdateIssueInput struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Address     *string
	Priority    *models.IssuePriority
	Status      *models.IssueStatus
	AssignedTo  *primitive.ObjectID
	Media       []MediaFile
}

// citizenEditable reports whether in only touches fields a citizen may edit.
func (in UpdateIssueInput) citizenEditable() bool {
	return in.Status == nil && in.Priority == nil && in.AssignedTo == nil
}

// IssueService is the status transition engine. Every call takes the acting
// user explicitly.
type IssueService struct {
	issues        repository.IssueRepository
	dedup         *GeoDedupChecker
	router        *DepartmentRouter
	rewards       *RewardLedger
	notifications *NotificationService
	uploader      *MediaUploader
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewIssueService(
	issues repository.IssueRepository,
	dedup *GeoDedupChecker,
	router *DepartmentRouter,
	rewards *RewardLedger,
	notifications *NotificationService,
	uploader *MediaUploader,
	m *metrics.Metrics,
	logger *slog.Logger,
) *IssueService {
	return &IssueService{
		issues:        issues,
		dedup:         dedup,
		router:        router,
		rewards:       rewards,
		notifications: notifications,
		uploader:      uploader,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return issue, nil
}

// List returns one page of issues plus status counts over the same filter.
// page is 1-based.
func (s *IssueService) List(ctx context.Context, filter repository.IssueFilter, sort repository.IssueSort, page, limit int) (*repository.IssuePage, error) {
	page, limit = clampPage(page, limit)

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, invalid("category", "unknown category")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, invalid("priority", "unknown priority")
	}
	if filter.Near != nil {
		if err := validateCoordinates(filter.Near.Lat, filter.Near.Lng); err != nil {
			return nil, err
		}
		if filter.Near.RadiusKm <= 0 {
			return nil, invalid("near", "radius must be positive")
		}
	}
	if filter.Box != nil {
		if err := validateCoordinates(filter.Box.MinLat, filter.Box.MinLng); err != nil {
			return nil, err
		}
		if err := validateCoordinates(filter.Box.MaxLat, filter.Box.MaxLng); err != nil {
			return nil, err
		}
	}
	return findPage(ctx, s.issues, filter, sort, page, limit)
}

// Mine lists the issues the actor reported, newest first.
func (s *IssueService) Mine(ctx context.Context, actor *models.User, status models.IssueStatus, page, limit int) (*repository.IssuePage, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	page, limit = clampPage(page, limit)
	return findPage(ctx, s.issues, repository.IssueFilter{CreatedBy: &actor.ID, Status: status},
		repository.DefaultIssueSort, page, limit)
}

// Recent returns the newest issues for the map view.
func (s *IssueService) Recent(ctx context.Context, limit int) ([]models.Issue, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = RecentIssuesLimit
	}
	result, err := s.issues.Find(ctx, repository.IssueFilter{}, repository.DefaultIssueSort, 0, limit)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// clampPage normalizes a 1-based page and a limit within 1..MaxPageSize.
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, min(limit, MaxPageSize)
}

func findPage(ctx context.Context, issues repository.IssueRepository, filter repository.IssueFilter, sort repository.IssueSort, page, limit int) (*repository.IssuePage, error) {
	result, err := issues.Find(ctx, filter, sort, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	result.Page, result.Limit = page, limit
	return result, nil
}

func validateText(field, value string, maxLen int) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	if maxLen > 0 && len([]rune(value)) > maxLen {
		return invalid(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return nil
}

func validateCreate(in *CreateIssueInput) error {
	if err := validateText("title", in.Title, MaxTitleLength); err != nil {
		return err
	}
	if err := validateText("description", in.Description, MaxDescriptionLength); err != nil {
		return err
	}
	if in.Category == "" {
		return invalid("category", "is required")
	}
	if !in.Category.Valid() {
		return invalid("category", "unknown category")
	}
	if err := validateText("address", in.Address, 0); err != nil {
		return err
	}
	if in.Latitude == nil {
		return invalid("latitude", "is required")
	}
	if in.Longitude == nil {
		return invalid("longitude", "is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityLow
	}
	if !in.Priority.Valid() {
		return invalid("priority", "unknown priority")
	}
	if len(in.Media) > MaxMediaFiles {
		return invalid("media", fmt.Sprintf("at most %d files", MaxMediaFiles))
	}
	return nil
}

// Create files a new PENDING issue for a citizen. Order: validation, dedup,
// routing, media upload, persist, department stats, department notification.
func (s *IssueService) Create(ctx context.Context, actor *models.User, in CreateIssueInput) (*models.Issue, error) {
	defer s.uploader.removeLocal(in.Media)

	if actor.Role != models.RoleCitizen {
		return nil, ErrForbidden
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}
	if err := s.dedup.Check(ctx, *in.Latitude, *in.Longitude); err != nil {
		return nil, err
	}
	dept, err := s.router.RouteCategory(ctx, in.Category)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.uploader.UploadAll(ctx, in.Media)
	if err != nil {
		return nil, err
	}
	if uploaded == nil {
		uploaded = []models.Media{}
	}

	deptID := dept.ID
	issue := &models.Issue{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Media:       uploaded,
		Address:     strings.TrimSpace(in.Address),
		Location:    models.NewGeoPoint(*in.Longitude, *in.Latitude),
		Status:      models.StatusPending,
		Priority:    in.Priority,
		CreatedBy:   actor.ID,
		Department:  &deptID,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		s.uploader.DeleteAll(context.WithoutCancel(ctx), uploaded)
		return nil, err
	}
	s.metrics.IncIssueCreated(string(issue.Category))

	// The issue is committed; from here on failures are logged only.
	if err := s.router.OnIssueCreated(ctx, deptID, issue.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to record issue on department",
			"issue", issue.ID.Hex(), "department", deptID.Hex(), "error", err)
	}
	issueID := issue.ID
	s.notifications.notifyQuietly(ctx, DepartmentAudience(deptID), NotificationInput{
		Title:   "New issue reported",
		Message: fmt.Sprintf("A new %s issue was reported at %s: %s", issue.Category, issue.Address, issue.Title),
		Type:    models.NotificationIssue,
		Issue:   &issueID,
	})

	s.logger.InfoContext(ctx, "issue created",
		"issue", issue.ID.Hex(), "category", issue.Category, "department", deptID.Hex())
	return issue, nil
}

// authorizeUpdate runs before any transition rule. Citizens may only edit
// their own PENDING issue and never its status, priority or assignee.
func authorizeUpdate(actor *models.User, issue *models.Issue, in UpdateIssueInput) error {
	switch actor.Role {
	case models.RoleStaff, models.RoleAdmin:
		return nil
	case models.RoleCitizen:
		if issue.CreatedBy != actor.ID {
			return ErrForbidden
		}
		if issue.Status != models.StatusPending {
			return ErrForbidden
		}
		if !in.citizenEditable() {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}

func validateUpdate(in UpdateIssueInput) error {
	if in.Title != nil {
		if err := validateText("title", *in.Title, MaxTitleLength); err != nil {
			return err
		}
	}
	if in.Description != nil {
		if err := validateText("description", *in.Description, MaxDescriptionLength); err != nil {
			return err
		}
	}
	if in.Address != nil {
		if err := validateText("address", *in.Address, 0); err != nil {
			return err
		}
	}
	if in.Category != nil && !in.Category.Valid() {
		return invalid("category", "unknown category")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return invalid("priority", "unknown priority")
	}
	if len(in.Media) > MaxMediaFiles {
		return invalid("media", fmt.Sprintf("at most %d files", MaxMediaFiles))
	}
	return nil
}

// Update applies a partial update and, when the status changes, fires the
// transition side effects. The write is conditional on the status read at
// the start of the call; losing a race yields ErrConflict.
func (s *IssueService) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in UpdateIssueInput) (*models.Issue, error) {
	defer s.uploader.removeLocal(in.Media)

	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := authorizeUpdate(actor, issue, in); err != nil {
		return nil, err
	}

	oldStatus := issue.Status
	if oldStatus.Terminal() {
		to := oldStatus
		if in.Status != nil {
			to = *in.Status
		}
		return nil, &TransitionError{From: oldStatus, To: to}
	}
	if in.Status != nil {
		if err := ValidateTransition(oldStatus, *in.Status); err != nil {
			return nil, err
		}
	}
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	patch := repository.IssuePatch{
		Title:       trimmed(in.Title),
		Description: trimmed(in.Description),
		Address:     trimmed(in.Address),
		Priority:    in.Priority,
		Status:      in.Status,
		AssignedTo:  in.AssignedTo,
	}
	if in.Category != nil && *in.Category != issue.Category {
		deptID, err := s.router.OnCategoryChanged(ctx, issue, *in.Category)
		if err != nil {
			return nil, err
		}
		patch.Category = in.Category
		patch.Department = deptID
	}
	if in.Status != nil && *in.Status == models.StatusResolved {
		resolvedAt := s.now()
		patch.ResolvedAt = &resolvedAt
	}

	var uploaded []models.Media
	if len(in.Media) > 0 {
		uploaded, err = s.uploader.UploadAll(ctx, in.Media)
		if err != nil {
			return nil, err
		}
		patch.Media = &uploaded
	}

	updated, err := s.issues.Update(ctx, id, oldStatus, patch)
	if err != nil {
		if uploaded != nil {
			s.uploader.DeleteAll(context.WithoutCancel(ctx), uploaded)
		}
		return nil, storeErr(err)
	}
	if uploaded != nil {
		s.uploader.DeleteAll(ctx, issue.Media)
	}

	if updated.Status != oldStatus {
		s.afterTransition(ctx, oldStatus, updated)
	}
	return updated, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// afterTransition fires the side effects of a committed status change. Each
// trigger runs at most once per call and none of them fail the request.
func (s *IssueService) afterTransition(ctx context.Context, from models.IssueStatus, issue *models.Issue) {
	to := issue.Status
	s.metrics.IncTransition(string(from), string(to))
	issueID := issue.ID

	if from == models.StatusPending && to == models.StatusAcknowledged {
		if _, err := s.rewards.CreditFirstAcknowledgment(ctx, issue.CreatedBy); err != nil {
			s.logger.ErrorContext(ctx, "failed to credit acknowledgment reward",
				"issue", issue.ID.Hex(), "user", issue.CreatedBy.Hex(), "error", err)
		} else {
			s.notifications.notifyQuietly(ctx, UserAudience(issue.CreatedBy), NotificationInput{
				Title:   "You earned a coin",
				Message: fmt.Sprintf("Your report %q was acknowledged. %d coin added to your wallet.", issue.Title, AcknowledgmentReward),
				Type:    models.NotificationWallet,
				Issue:   &issueID,
			})
		}
	}

	if to == models.StatusResolved && from != models.StatusResolved && issue.Department != nil {
		resolvedAt := s.now()
		if issue.ResolvedAt != nil {
			resolvedAt = *issue.ResolvedAt
		}
		minutes := resolvedAt.Sub(issue.CreatedAt).Minutes()
		if err := s.router.OnIssueResolved(ctx, *issue.Department, minutes); err != nil {
			s.logger.ErrorContext(ctx, "failed to update department resolution stats",
				"issue", issue.ID.Hex(), "department", issue.Department.Hex(), "error", err)
		}
	}

	s.notifications.notifyQuietly(ctx, UserAudience(issue.CreatedBy), NotificationInput{
		Title:   "Issue status updated",
		Message: fmt.Sprintf("Your issue %q moved from %s to %s.", issue.Title, from, to),
		Type:    models.NotificationIssue,
		Issue:   &issueID,
	})

	s.logger.InfoContext(ctx, "issue status changed",
		"issue", issue.ID.Hex(), "from", from, "to", to)
}
