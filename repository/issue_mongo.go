package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"civictrack/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const queryTimeout = 10 * time.Second

type MongoIssueRepository struct {
	collection *mongo.Collection
}

func NewMongoIssueRepository(db *mongo.Database) *MongoIssueRepository {
	return &MongoIssueRepository{collection: db.Collection("issues")}
}

// EnsureIndexes creates the 2dsphere index on location plus the lookup
// indexes used by the workflow.
func (r *MongoIssueRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "department", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
	})
	return err
}

func (r *MongoIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *MongoIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var issue models.Issue
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find issue: %w", err)
	}
	return &issue, nil
}

func (r *MongoIssueRepository) Find(ctx context.Context, filter IssueFilter, sortBy IssueSort, offset, limit int) (*IssuePage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := issueQuery(filter)

	cursor, err := r.findItems(ctx, query, sortBy, offset, limit)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	page := &IssuePage{Items: make([]models.Issue, 0)}
	if err := cursor.All(ctx, &page.Items); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}

	// Counts use the same filter as the page.
	statsCursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: query}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count issues by status: %w", err)
	}
	defer statsCursor.Close(ctx)

	var groups []struct {
		Status models.IssueStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := statsCursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}
	for _, g := range groups {
		page.Counts.Add(g.Status, g.Count)
	}
	page.Total = page.Counts.Total
	return page, nil
}

// priorityOrder ranks priorities by severity for sorting.
var priorityOrder = bson.A{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical}

func (r *MongoIssueRepository) findItems(ctx context.Context, query bson.M, sortBy IssueSort, offset, limit int) (*mongo.Cursor, error) {
	field, desc := sortBy.Parse()
	dir := 1
	if desc {
		dir = -1
	}

	if field != "priority" {
		findOptions := options.Find().
			SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
			SetSkip(int64(max(offset, 0)))
		if limit > 0 {
			findOptions.SetLimit(int64(limit))
		}
		cursor, err := r.collection.Find(ctx, query, findOptions)
		if err != nil {
			return nil, fmt.Errorf("find issues: %w", err)
		}
		return cursor, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: query}},
		{{Key: "$addFields", Value: bson.M{"priorityRank": bson.M{"$indexOfArray": bson.A{priorityOrder, "$priority"}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "priorityRank", Value: dir}, {Key: "_id", Value: dir}}}},
		{{Key: "$skip", Value: int64(max(offset, 0))}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{"priorityRank": 0}}})
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find issues by priority: %w", err)
	}
	return cursor, nil
}

func issueQuery(f IssueFilter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Priority != "" {
		query["priority"] = f.Priority
	}
	if f.Department != nil {
		query["department"] = *f.Department
	}
	if f.CreatedBy != nil {
		query["createdBy"] = *f.CreatedBy
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		query["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	var geo []bson.M
	if f.Near != nil {
		geo = append(geo, bson.M{"location": bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{f.Near.Lng, f.Near.Lat}, f.Near.RadiusKm / earthRadiusKm},
		}}})
	}
	if f.Box != nil {
		// $box keeps edges planar, matching the lng/lat rectangle the caller drew.
		b := f.Box.Normalize()
		geo = append(geo, bson.M{"location": bson.M{"$geoWithin": bson.M{
			"$box": bson.A{bson.A{b.MinLng, b.MinLat}, bson.A{b.MaxLng, b.MaxLat}},
		}}})
	}
	if len(geo) > 0 {
		query["$and"] = geo
	}
	return query
}

func (r *MongoIssueRepository) Update(ctx context.Context, id primitive.ObjectID, expected models.IssueStatus, patch IssuePatch) (*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Address != nil {
		set["address"] = *patch.Address
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.AssignedTo != nil {
		set["assignedTo"] = *patch.AssignedTo
	}
	if patch.Department != nil {
		set["department"] = *patch.Department
	}
	if patch.Media != nil {
		set["media"] = *patch.Media
	}
	if patch.ResolvedAt != nil {
		set["resolvedAt"] = *patch.ResolvedAt
	}

	var updated models.Issue
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": expected},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update issue: %w", err)
	}

	// Nothing matched: either the issue is gone or its status moved on.
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("check issue: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (r *MongoIssueRepository) ExistsAtPoint(ctx context.Context, lng, lat float64, statuses []models.IssueStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, bson.M{
		"location.coordinates": bson.A{lng, lat},
		"status":               bson.M{"$in": statuses},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check location: %w", err)
	}
	return n > 0, nil
}

func (r *MongoIssueRepository) Stats(ctx context.Context) (*CityStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stats := &CityStats{Categories: []CategoryCount{}}
	var err error
	if stats.TotalIssues, err = r.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, fmt.Errorf("count issues: %w", err)
	}
	if stats.ResolvedIssues, err = r.collection.CountDocuments(ctx, bson.M{"status": models.StatusResolved}); err != nil {
		return nil, fmt.Errorf("count resolved issues: %w", err)
	}

	avgCursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.StatusResolved, "resolvedAt": bson.M{"$ne": nil}}}},
		{{Key: "$project", Value: bson.M{"resolutionTime": bson.M{"$subtract": bson.A{"$resolvedAt", "$createdAt"}}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$resolutionTime"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("average resolution: %w", err)
	}
	defer avgCursor.Close(ctx)

	var avg []struct {
		Avg float64 `bson:"avg"`
	}
	if err := avgCursor.All(ctx, &avg); err != nil {
		return nil, fmt.Errorf("decode average resolution: %w", err)
	}
	if len(avg) > 0 {
		stats.AvgResolutionHours = avg[0].Avg / float64(time.Hour/time.Millisecond)
	}

	categoryCursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "total": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer categoryCursor.Close(ctx)

	if err := categoryCursor.All(ctx, &stats.Categories); err != nil {
		return nil, fmt.Errorf("decode category stats: %w", err)
	}
	return stats, nil
}
