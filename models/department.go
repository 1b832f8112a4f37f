package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Department owns a set of issue categories and is staffed by STAFF users.
// The counters are event counts maintained by the issue workflow only.
type Department struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name              string               `bson:"name" json:"name"`
	Code              string               `bson:"code" json:"code"`
	Description       string               `bson:"description" json:"description"`
	Categories        []IssueCategory      `bson:"categories" json:"categories"`
	Head              *primitive.ObjectID  `bson:"head,omitempty" json:"head,omitempty"`
	Staff             []primitive.ObjectID `bson:"staff" json:"staff"`
	Issues            []primitive.ObjectID `bson:"issues" json:"issues"`
	TotalIssues       int64                `bson:"totalIssues" json:"totalIssues"`
	ResolvedIssues    int64                `bson:"resolvedIssues" json:"resolvedIssues"`
	AvgResolutionTime float64              `bson:"avgResolutionTime" json:"avgResolutionTime"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (d *Department) Owns(category IssueCategory) bool {
	for _, c := range d.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func (d *Department) HasStaff(userID primitive.ObjectID) bool {
	for _, id := range d.Staff {
		if id == userID {
			return true
		}
	}
	return false
}

func (d *Department) Clone() *Department {
	out := *d
	out.Categories = append([]IssueCategory(nil), d.Categories...)
	out.Staff = append([]primitive.ObjectID(nil), d.Staff...)
	out.Issues = append([]primitive.ObjectID(nil), d.Issues...)
	if d.Head != nil {
		v := *d.Head
		out.Head = &v
	}
	return &out
}

// RunningMean folds one more sample into a mean over count-1 earlier samples.
func RunningMean(oldAvg float64, count int64, sample float64) float64 {
	if count <= 1 {
		return sample
	}
	return (oldAvg*float64(count-1) + sample) / float64(count)
}
