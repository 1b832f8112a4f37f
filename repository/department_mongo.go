package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civictrack/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDepartmentRepository struct {
	collection *mongo.Collection
}

func NewMongoDepartmentRepository(db *mongo.Database) *MongoDepartmentRepository {
	return &MongoDepartmentRepository{collection: db.Collection("departments")}
}

func (r *MongoDepartmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "categories", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

func (r *MongoDepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if dept.ID.IsZero() {
		dept.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now
	if dept.Staff == nil {
		dept.Staff = []primitive.ObjectID{}
	}
	if dept.Issues == nil {
		dept.Issues = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, dept); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (r *MongoDepartmentRepository) Update(ctx context.Context, id primitive.ObjectID, patch DepartmentPatch) (*models.Department, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Code != nil {
		set["code"] = *patch.Code
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Categories != nil {
		set["categories"] = *patch.Categories
	}
	if patch.Head != nil {
		set["head"] = *patch.Head
	}

	var dept models.Department
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&dept)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update department: %w", err)
	}
	return &dept, nil
}

func (r *MongoDepartmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Department, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var dept models.Department
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&dept); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &dept, nil
}

var stableDepartmentOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

func (r *MongoDepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(stableDepartmentOrder))
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer cursor.Close(ctx)

	departments := make([]models.Department, 0)
	if err := cursor.All(ctx, &departments); err != nil {
		return nil, fmt.Errorf("decode departments: %w", err)
	}
	return departments, nil
}

func (r *MongoDepartmentRepository) FindByCategory(ctx context.Context, category models.IssueCategory) (*models.Department, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var dept models.Department
	err := r.collection.FindOne(ctx,
		bson.M{"categories": category},
		options.FindOne().SetSort(stableDepartmentOrder),
	).Decode(&dept)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find department by category: %w", err)
	}
	return &dept, nil
}

func (r *MongoDepartmentRepository) RecordIssueCreated(ctx context.Context, id, issueID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc":  bson.M{"totalIssues": 1},
		"$push": bson.M{"issues": issueID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("record issue created: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordIssueResolved uses a pipeline update so the increment and the mean
// recompute read the same resolvedIssues value within one document write.
func (r *MongoDepartmentRepository) RecordIssueResolved(ctx context.Context, id primitive.ObjectID, minutes float64) (*models.Department, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	resolved := bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$resolvedIssues", 0}}, 1}}
	oldAvg := bson.M{"$ifNull": bson.A{"$avgResolutionTime", 0}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"avgResolutionTime": bson.M{"$divide": bson.A{
				bson.M{"$add": bson.A{
					bson.M{"$multiply": bson.A{oldAvg, bson.M{"$subtract": bson.A{resolved, 1}}}},
					minutes,
				}},
				resolved,
			}},
			"resolvedIssues": resolved,
			"updatedAt":      time.Now(),
		}}},
	}

	var dept models.Department
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&dept)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record issue resolved: %w", err)
	}
	return &dept, nil
}

func (r *MongoDepartmentRepository) AddStaff(ctx context.Context, id, userID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "staff": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"staff": userID}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("add staff: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrDuplicate
	}
	return nil
}

func (r *MongoDepartmentRepository) RemoveStaff(ctx context.Context, id, userID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"staff": userID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("remove staff: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
