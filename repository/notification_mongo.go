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

type MongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipientUser", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "recipientDepartment", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *MongoNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.ReadBy == nil {
		n.ReadBy = []models.Receipt{}
	}
	if n.ArchivedBy == nil {
		n.ArchivedBy = []models.Receipt{}
	}

	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *MongoNotificationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n models.Notification
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

func (r *MongoNotificationRepository) list(ctx context.Context, filter bson.M, limit int) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]models.Notification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

func (r *MongoNotificationRepository) ListPersonal(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	return r.list(ctx, bson.M{"recipientUser": userID, "isArchived": false}, limit)
}

func (r *MongoNotificationRepository) ListDepartment(ctx context.Context, deptID, viewer primitive.ObjectID, limit int) ([]models.Notification, error) {
	return r.list(ctx, bson.M{
		"recipientDepartment": deptID,
		"isArchivedBy.user":   bson.M{"$ne": viewer},
	}, limit)
}

func (r *MongoNotificationRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoNotificationRepository) MarkPersonalRead(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now()}})
}

func (r *MongoNotificationRepository) ArchivePersonal(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isArchived": true, "updatedAt": time.Now()}})
}

// addReceipt pushes a receipt only when the user has none in field yet. A
// miss on the conditional filter is either an existing receipt or a missing
// notification; only the latter is an error.
func (r *MongoNotificationRepository) addReceipt(ctx context.Context, field string, id, userID primitive.ObjectID, at time.Time) error {
	err := r.updateOne(ctx,
		bson.M{"_id": id, field + ".user": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{field: models.Receipt{User: userID, At: at}},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = r.FindByID(ctx, id)
	return err
}

func (r *MongoNotificationRepository) AddReadReceipt(ctx context.Context, id, userID primitive.ObjectID, at time.Time) error {
	return r.addReceipt(ctx, "isReadBy", id, userID, at)
}

func (r *MongoNotificationRepository) AddArchiveReceipt(ctx context.Context, id, userID primitive.ObjectID, at time.Time) error {
	return r.addReceipt(ctx, "isArchivedBy", id, userID, at)
}

func (r *MongoNotificationRepository) MarkAllPersonalRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateMany(ctx,
		bson.M{"recipientUser": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark personal notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoNotificationRepository) MarkAllDepartmentRead(ctx context.Context, deptID, userID primitive.ObjectID, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateMany(ctx,
		bson.M{"recipientDepartment": deptID, "isReadBy.user": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"isReadBy": models.Receipt{User: userID, At: at}},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("mark department notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoNotificationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
