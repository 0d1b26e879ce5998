package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ service.Store = (*DB)(nil)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	logging.Info().Str("db", dbName).Msg("connected to MongoDB")
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) Reviews() *mongo.Collection {
	return db.Database.Collection("reviews")
}

func (db *DB) Activity() *mongo.Collection {
	return db.Database.Collection("user_books")
}

func (db *DB) EmailLogs() *mongo.Collection {
	return db.Database.Collection("email_logs")
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{db.Users(), mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{db.Books(), mongo.IndexModel{Keys: bson.D{{Key: "isPublic", Value: 1}, {Key: "views", Value: -1}}}},
		{db.Books(), mongo.IndexModel{Keys: bson.D{{Key: "uploadedBy", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{db.Books(), mongo.IndexModel{Keys: bson.D{{Key: "genre", Value: 1}}}},
		{db.Reviews(), mongo.IndexModel{Keys: bson.D{{Key: "bookId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{db.Activity(), mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "bookId", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{db.Activity(), mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastReadAt", Value: -1}}}},
		{db.Activity(), mongo.IndexModel{Keys: bson.D{{Key: "readingStatus", Value: 1}}}},
	}
	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("create index on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

// findOne decodes the first match into out and reports whether one existed.
// Ping backs the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, readpref.Primary())
}

func findOne(ctx context.Context, coll *mongo.Collection, filter any, out any) (bool, error) {
	err := coll.FindOne(ctx, filter).Decode(out)
	if isNoDocuments(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// conflictOnDuplicate turns unique index violations into models.ErrConflict.
func conflictOnDuplicate(err error, what string) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s already exists", models.ErrConflict, what)
	}
	return err
}
