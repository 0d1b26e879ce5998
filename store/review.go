package store

import (
	"context"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertReview(ctx context.Context, r *models.Review) (primitive.ObjectID, error) {
	res, err := db.Reviews().InsertOne(ctx, r)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) ReviewsByBook(ctx context.Context, bookID primitive.ObjectID) ([]models.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[models.Review](ctx, db.Reviews(), bson.M{"bookId": bookID}, opts)
}

func (db *DB) DeleteReviewsByBook(ctx context.Context, bookID primitive.ObjectID) error {
	_, err := db.Reviews().DeleteMany(ctx, bson.M{"bookId": bookID})
	return err
}

func (db *DB) ReviewsCount(ctx context.Context) (int64, error) {
	return db.Reviews().CountDocuments(ctx, bson.M{})
}
