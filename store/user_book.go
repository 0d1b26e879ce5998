package store

import (
	"context"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertUserBook creates or refreshes the (user, book) activity entry. The unique index on
// (userId, bookId) makes concurrent first reads converge on one document; a losing insert
// is retried once as an update.
func (db *DB) UpsertUserBook(ctx context.Context, userID, bookID primitive.ObjectID, progress int, status string, now time.Time) error {
	filter := bson.M{"userId": userID, "bookId": bookID}
	update := bson.M{
		"$set": bson.M{
			"progress":      progress,
			"readingStatus": status,
			"lastReadAt":    now,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.Update().SetUpsert(true)
	_, err := db.Activity().UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = db.Activity().UpdateOne(ctx, filter, update, opts)
	}
	return err
}

func (db *DB) UserBooks(ctx context.Context, userID primitive.ObjectID, status string) ([]models.UserBook, error) {
	filter := bson.M{"userId": userID}
	if status != "" {
		filter["readingStatus"] = status
	}
	return findAll[models.UserBook](ctx, db.Activity(), filter, options.Find().SetSort(bson.D{{Key: "lastReadAt", Value: -1}}))
}

func (db *DB) RecentUserBooks(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.UserBook, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastReadAt", Value: -1}}).SetLimit(limit)
	return findAll[models.UserBook](ctx, db.Activity(), bson.M{"userId": userID}, opts)
}

func (db *DB) CompletedCounts(ctx context.Context, limit int64) ([]models.CompletedCount, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"readingStatus": models.StatusCompleted}},
		bson.M{"$group": bson.M{"_id": "$userId", "completedBooks": bson.M{"$sum": 1}}},
		bson.M{"$sort": bson.D{{Key: "completedBooks", Value: -1}, {Key: "_id", Value: 1}}},
		bson.M{"$limit": limit},
	}
	cur, err := db.Activity().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.CompletedCount{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) DeleteUserBooksByBook(ctx context.Context, bookID primitive.ObjectID) error {
	_, err := db.Activity().DeleteMany(ctx, bson.M{"bookId": bookID})
	return err
}

func (db *DB) DeleteUserBooksByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := db.Activity().DeleteMany(ctx, bson.M{"userId": userID})
	return err
}
