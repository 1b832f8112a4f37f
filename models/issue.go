package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	CategoryPothole     IssueCategory = "POTHOLE"
	CategoryStreetlight IssueCategory = "STREETLIGHT"
	CategoryGarbage     IssueCategory = "GARBAGE"
	CategoryWater       IssueCategory = "WATER"
	CategoryOther       IssueCategory = "OTHER"
)

var IssueCategories = []IssueCategory{
	CategoryPothole, CategoryStreetlight, CategoryGarbage, CategoryWater, CategoryOther,
}

func (c IssueCategory) Valid() bool {
	for _, v := range IssueCategories {
		if c == v {
			return true
		}
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	StatusPending      IssueStatus = "PENDING"
	StatusAcknowledged IssueStatus = "ACKNOWLEDGED"
	StatusInProgress   IssueStatus = "IN_PROGRESS"
	StatusResolved     IssueStatus = "RESOLVED"
	StatusRejected     IssueStatus = "REJECTED"
)

var IssueStatuses = []IssueStatus{
	StatusPending, StatusAcknowledged, StatusInProgress, StatusResolved, StatusRejected,
}

func (s IssueStatus) Valid() bool {
	for _, v := range IssueStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are accepted.
func (s IssueStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// IssuePriority enum
type IssuePriority string

const (
	PriorityLow      IssuePriority = "LOW"
	PriorityMedium   IssuePriority = "MEDIUM"
	PriorityHigh     IssuePriority = "HIGH"
	PriorityCritical IssuePriority = "CRITICAL"
)

func (p IssuePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities by severity, LOW lowest. Unknown values rank 0.
func (p IssuePriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// MediaType enum
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

// Media is a reference to a file held by the media store.
type Media struct {
	Type     MediaType `bson:"type" json:"type"`
	PublicID string    `bson:"publicId" json:"publicId"`
	URL      string    `bson:"secureUrl" json:"secureUrl"`
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Issue represents a civic issue reported by a citizen.
//
// Relations are held as identifiers only; users and departments are resolved
// through their own repositories.
type Issue struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Category    IssueCategory       `bson:"category" json:"category"`
	Media       []Media             `bson:"media" json:"media"`
	Address     string              `bson:"address" json:"address"`
	Location    GeoPoint            `bson:"location" json:"location"`
	Status      IssueStatus         `bson:"status" json:"status"`
	Priority    IssuePriority       `bson:"priority" json:"priority"`
	CreatedBy   primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Department  *primitive.ObjectID `bson:"department" json:"department"`
	ResolvedAt  *time.Time          `bson:"resolvedAt" json:"resolvedAt"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a deep copy so stores never hand out shared slices.
func (i *Issue) Clone() *Issue {
	out := *i
	out.Media = append([]Media(nil), i.Media...)
	out.Location.Coordinates = append([]float64(nil), i.Location.Coordinates...)
	if i.AssignedTo != nil {
		v := *i.AssignedTo
		out.AssignedTo = &v
	}
	if i.Department != nil {
		v := *i.Department
		out.Department = &v
	}
	if i.ResolvedAt != nil {
		v := *i.ResolvedAt
		out.ResolvedAt = &v
	}
	return &out
}

// StatusCounts is the per-status breakdown returned alongside issue listings.
type StatusCounts struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"PENDING"`
	Acknowledged int64 `json:"ACKNOWLEDGED"`
	InProgress   int64 `json:"IN_PROGRESS"`
	Resolved     int64 `json:"RESOLVED"`
	Rejected     int64 `json:"REJECTED"`
}

func (c *StatusCounts) Add(status IssueStatus, n int64) {
	switch status {
	case StatusPending:
		c.Pending += n
	case StatusAcknowledged:
		c.Acknowledged += n
	case StatusInProgress:
		c.InProgress += n
	case StatusResolved:
		c.Resolved += n
	case StatusRejected:
		c.Rejected += n
	default:
		return
	}
	c.Total += n
}

// IssueResponse is the wire projection of an Issue.
type IssueResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    IssueCategory `json:"category"`
	Media       []Media       `json:"media"`
	Address     string        `json:"address"`
	Latitude    float64       `json:"latitude"`
	Longitude   float64       `json:"longitude"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	CreatedBy   string        `json:"createdBy"`
	AssignedTo  *string       `json:"assignedTo,omitempty"`
	Department  *string       `json:"department"`
	ResolvedAt  *time.Time    `json:"resolvedAt"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ToResponse projects an issue into its wire format.
func (i *Issue) ToResponse() IssueResponse {
	media := i.Media
	if media == nil {
		media = []Media{}
	}
	return IssueResponse{
		ID:          i.ID.Hex(),
		Title:       i.Title,
		Description: i.Description,
		Category:    i.Category,
		Media:       media,
		Address:     i.Address,
		Latitude:    i.Location.Lat(),
		Longitude:   i.Location.Lng(),
		Status:      i.Status,
		Priority:    i.Priority,
		CreatedBy:   i.CreatedBy.Hex(),
		AssignedTo:  hexPtr(i.AssignedTo),
		Department:  hexPtr(i.Department),
		ResolvedAt:  i.ResolvedAt,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func hexPtr(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	s := id.Hex()
	return &s
}
