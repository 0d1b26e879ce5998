package store

import (
	"context"
	"regexp"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	if book.Tags == nil {
		book.Tags = []string{}
	}
	res, err := db.Books().InsertOne(ctx, book, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	ok, err := findOne(ctx, db.Books(), bson.M{"_id": id}, &book)
	if !ok || err != nil {
		return nil, err
	}
	return &book, nil
}

func (db *DB) BooksByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}
	return findAll[models.Book](ctx, db.Books(), bson.M{"_id": bson.M{"$in": ids}})
}

func (db *DB) FindBooks(ctx context.Context, f models.BookFilter, sort models.BookSort, limit int64) ([]models.Book, error) {
	opts := options.Find().SetSort(bookSort(sort))
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return findAll[models.Book](ctx, db.Books(), bookFilter(f), opts)
}

func (db *DB) CountBooks(ctx context.Context, f models.BookFilter) (int64, error) {
	return db.Books().CountDocuments(ctx, bookFilter(f))
}

// bookFilter translates a BookFilter into a query document. User text is matched literally.
func bookFilter(f models.BookFilter) bson.M {
	var and bson.A
	if f.Text != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Text), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"title": re},
			bson.M{"author": re},
			bson.M{"genre": re},
		}})
	}
	if f.Genre != "" {
		and = append(and, bson.M{"genre": f.Genre})
	}
	if len(f.Genres) > 0 {
		and = append(and, bson.M{"genre": bson.M{"$in": f.Genres}})
	}
	if f.Author != "" {
		and = append(and, bson.M{"author": primitive.Regex{Pattern: regexp.QuoteMeta(f.Author), Options: "i"}})
	}
	if len(f.Tags) > 0 {
		and = append(and, bson.M{"tags": bson.M{"$in": f.Tags}})
	}
	if f.IsPublic != nil {
		and = append(and, bson.M{"isPublic": *f.IsPublic})
	}
	if f.MinRating != nil {
		and = append(and, bson.M{"averageRating": bson.M{"$gte": *f.MinRating}})
	}
	if f.UploadedBy != nil {
		and = append(and, bson.M{"uploadedBy": *f.UploadedBy})
	}
	if f.VisibleTo != nil {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"isPublic": true},
			bson.M{"uploadedBy": *f.VisibleTo},
		}})
	}
	if f.IDs != nil {
		and = append(and, bson.M{"_id": bson.M{"$in": f.IDs}})
	}
	if len(f.ExcludeIDs) > 0 {
		and = append(and, bson.M{"_id": bson.M{"$nin": f.ExcludeIDs}})
	}
	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

// bookSort orders by the requested field, then newest first, then id for a stable order.
func bookSort(s models.BookSort) bson.D {
	field := s.Field
	if field == "" {
		field = models.DefaultSortField
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	d := bson.D{{Key: field, Value: dir}}
	if field != "createdAt" {
		d = append(d, bson.E{Key: "createdAt", Value: -1})
	}
	return append(d, bson.E{Key: "_id", Value: -1})
}

func (db *DB) UpdateBook(ctx context.Context, id primitive.ObjectID, up models.BookUpdate, now time.Time) error {
	set := bson.M{"updatedAt": now}
	if up.Title != nil {
		set["title"] = *up.Title
	}
	if up.Author != nil {
		set["author"] = *up.Author
	}
	if up.Description != nil {
		set["description"] = *up.Description
	}
	if up.Genre != nil {
		set["genre"] = *up.Genre
	}
	if up.Tags != nil {
		set["tags"] = *up.Tags
	}
	if up.IsPublic != nil {
		set["isPublic"] = *up.IsPublic
	}
	if up.CoverURL != nil {
		set["coverUrl"] = *up.CoverURL
	}
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (db *DB) IncrementReads(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1, "readCount": 1}})
	return err
}

func (db *DB) SetBookRating(ctx context.Context, id primitive.ObjectID, version int64, avg float64, count int64) (bool, error) {
	filter := bson.M{"_id": id, "ratingVersion": version}
	update := bson.M{"$set": bson.M{
		"averageRating": avg,
		"ratingCount":   count,
		"ratingVersion": version + 1,
	}}
	res, err := db.Books().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// SetBookVisibility sets isPublic for a book (admin moderation).
func (db *DB) SetBookVisibility(ctx context.Context, id primitive.ObjectID, public bool) error {
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isPublic": public}})
	return err
}

func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, err
	}
	return &book, nil
}

func (db *DB) MeanRating(ctx context.Context) (float64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"ratingCount": bson.M{"$gt": 0}}},
		bson.M{"$group": bson.M{"_id": nil, "avg": bson.M{"$avg": "$averageRating"}}},
	}
	cur, err := db.Books().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Avg, nil
}
