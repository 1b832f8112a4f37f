package repository

import (
	"context"
	"errors"
	"time"

	"civictrack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store-level facts. Services translate these into domain errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrDuplicate = errors.New("duplicate")
)

// NearFilter selects points within RadiusKm of a center.
type NearFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// BoxFilter selects points inside a longitude/latitude rectangle.
type BoxFilter struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

type IssueFilter struct {
	Status     models.IssueStatus
	Category   models.IssueCategory
	Priority   models.IssuePriority
	Department *primitive.ObjectID
	CreatedBy  *primitive.ObjectID
	Search     string
	Near       *NearFilter
	Box        *BoxFilter
}

// IssueSort is a field name with an optional leading '-' for descending order.
type IssueSort string

const DefaultIssueSort IssueSort = "-createdAt"

var sortableIssueFields = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
	"priority":  true,
	"status":    true,
	"title":     true,
}

// Parse returns the field and direction, falling back to the default sort for
// unknown fields.
func (s IssueSort) Parse() (field string, desc bool) {
	raw := string(s)
	if raw == "" {
		raw = string(DefaultIssueSort)
	}
	if raw[0] == '-' {
		desc = true
		raw = raw[1:]
	}
	if !sortableIssueFields[raw] {
		return "createdAt", true
	}
	return raw, desc
}

type IssuePage struct {
	Items  []models.Issue
	Total  int64
	Counts models.StatusCounts
	// Page and Limit echo the clamped window the caller asked for.
	Page  int
	Limit int
}

// IssuePatch lists the fields an update may set. Nil fields are left as is.
type IssuePatch struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Address     *string
	Priority    *models.IssuePriority
	Status      *models.IssueStatus
	AssignedTo  *primitive.ObjectID
	Department  *primitive.ObjectID
	Media       *[]models.Media
	ResolvedAt  *time.Time
}

// IssueRepository owns Issue records and their spatial index.
type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Find(ctx context.Context, filter IssueFilter, sort IssueSort, offset, limit int) (*IssuePage, error)
	// Update applies patch only while the stored status equals expected.
	// It returns ErrConflict when the status moved underneath the caller.
	Update(ctx context.Context, id primitive.ObjectID, expected models.IssueStatus, patch IssuePatch) (*models.Issue, error)
	ExistsAtPoint(ctx context.Context, lng, lat float64, statuses []models.IssueStatus) (bool, error)
	Stats(ctx context.Context) (*CityStats, error)
}

type CategoryCount struct {
	Category models.IssueCategory `bson:"_id" json:"category"`
	Total    int64                `bson:"total" json:"total"`
}

// CityStats is the read-only city-wide aggregate.
type CityStats struct {
	TotalIssues        int64           `json:"totalIssues"`
	ResolvedIssues     int64           `json:"resolvedIssues"`
	AvgResolutionHours float64         `json:"avgResolutionHours"`
	Categories         []CategoryCount `json:"categories"`
}

// DepartmentPatch lists the administrative fields an update may set. Nil
// fields are left as is; counters are never patched.
type DepartmentPatch struct {
	Name        *string
	Code        *string
	Description *string
	Categories  *[]models.IssueCategory
	Head        *primitive.ObjectID
}

type DepartmentRepository interface {
	Create(ctx context.Context, dept *models.Department) error
	// Update returns ErrDuplicate when the new name is taken.
	Update(ctx context.Context, id primitive.ObjectID, patch DepartmentPatch) (*models.Department, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Department, error)
	// List returns departments in stable order: createdAt, then id.
	List(ctx context.Context) ([]models.Department, error)
	// FindByCategory returns the first owner of category in List order.
	FindByCategory(ctx context.Context, category models.IssueCategory) (*models.Department, error)
	RecordIssueCreated(ctx context.Context, id, issueID primitive.ObjectID) error
	// RecordIssueResolved increments resolvedIssues and folds minutes into the
	// running mean as one atomic step.
	RecordIssueResolved(ctx context.Context, id primitive.ObjectID, minutes float64) (*models.Department, error)
	AddStaff(ctx context.Context, id, userID primitive.ObjectID) error
	RemoveStaff(ctx context.Context, id, userID primitive.ObjectID) error
}

type UserFilter struct {
	Role       models.Role
	Department *primitive.ObjectID
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Find(ctx context.Context, filter UserFilter) ([]models.User, error)
	SetDepartment(ctx context.Context, id primitive.ObjectID, deptID *primitive.ObjectID) error
	// AppendTransaction adds tx to the wallet history and applies its coins to
	// the balance. A debit that would make the balance negative fails with
	// ErrConflict.
	AppendTransaction(ctx context.Context, id primitive.ObjectID, tx models.Transaction) (*models.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	ListPersonal(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error)
	ListDepartment(ctx context.Context, deptID, viewer primitive.ObjectID, limit int) ([]models.Notification, error)
	MarkPersonalRead(ctx context.Context, id primitive.ObjectID) error
	ArchivePersonal(ctx context.Context, id primitive.ObjectID) error
	// AddReadReceipt and AddArchiveReceipt are no-ops when the user already
	// has a receipt.
	AddReadReceipt(ctx context.Context, id, userID primitive.ObjectID, at time.Time) error
	AddArchiveReceipt(ctx context.Context, id, userID primitive.ObjectID, at time.Time) error
	MarkAllPersonalRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAllDepartmentRead(ctx context.Context, deptID, userID primitive.ObjectID, at time.Time) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// FeedLimit caps each half of a notification feed.
const FeedLimit = 50
