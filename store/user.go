package store

import (
	"context"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersCount returns the number of documents in the users collection.
func (db *DB) UsersCount(ctx context.Context) (int64, error) {
	return db.Users().CountDocuments(ctx, bson.M{})
}

// AdminsCount returns the number of users with role admin.
func (db *DB) AdminsCount(ctx context.Context) (int64, error) {
	return db.Users().CountDocuments(ctx, bson.M{"role": models.RoleAdmin})
}

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	ok, err := findOne(ctx, db.Users(), bson.M{"email": email}, &u)
	if !ok || err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	if user.ReadList == nil {
		user.ReadList = []primitive.ObjectID{}
	}
	if user.ReadingHistory == nil {
		user.ReadingHistory = []models.HistoryEntry{}
	}
	if user.UploadedBooks == nil {
		user.UploadedBooks = []primitive.ObjectID{}
	}
	res, err := db.Users().InsertOne(ctx, user, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, conflictOnDuplicate(err, "email")
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	ok, err := findOne(ctx, db.Users(), bson.M{"_id": id}, &u)
	if !ok || err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) UsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return findAll[models.User](ctx, db.Users(), bson.M{"_id": bson.M{"$in": ids}})
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	return findAll[models.User](ctx, db.Users(), bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (db *DB) UpdateProfile(ctx context.Context, id primitive.ObjectID, up models.ProfileUpdate) error {
	updates := bson.M{}
	if up.FullName != nil {
		updates["fullName"] = *up.FullName
	}
	if up.Avatar != nil {
		updates["avatar"] = *up.Avatar
	}
	if up.Latitude != nil {
		updates["latitude"] = *up.Latitude
	}
	if up.Longitude != nil {
		updates["longitude"] = *up.Longitude
	}
	if len(updates) == 0 {
		return nil
	}
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	return err
}

func (db *DB) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password": hash}})
	return err
}

func (db *DB) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}})
	return err
}

func (db *DB) SetAvatar(ctx context.Context, id primitive.ObjectID, url, s3Key string) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"avatar": url, "avatarS3Key": s3Key}})
	return err
}

func (db *DB) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Users().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (db *DB) SetOTP(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"otp": hash, "otpExpires": expires}})
	return err
}

func (db *DB) ConsumeOTP(ctx context.Context, id primitive.ObjectID, otpHash, passwordHash string, now time.Time) (bool, error) {
	filter := bson.M{"_id": id, "otp": otpHash, "otpExpires": bson.M{"$gt": now}}
	update := bson.M{
		"$set":   bson.M{"password": passwordHash},
		"$unset": bson.M{"otp": "", "otpExpires": ""},
	}
	res, err := db.Users().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (db *DB) SaveReadingHistory(ctx context.Context, id primitive.ObjectID, version int64, history []models.HistoryEntry, readList []primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "historyVersion": version}
	update := bson.M{"$set": bson.M{
		"readingHistory": history,
		"readList":       readList,
		"historyVersion": version + 1,
	}}
	res, err := db.Users().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (db *DB) AddUploadedBook(ctx context.Context, userID, bookID primitive.ObjectID) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$addToSet": bson.M{"uploadedBooks": bookID}})
	return err
}

func (db *DB) PullUploadedBook(ctx context.Context, userID, bookID primitive.ObjectID) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{"uploadedBooks": bookID}})
	return err
}

// PurgeBook bumps historyVersion on every touched user so in-flight history writes retry.
func (db *DB) PurgeBook(ctx context.Context, bookID primitive.ObjectID) error {
	filter := bson.M{"$or": bson.A{
		bson.M{"readList": bookID},
		bson.M{"readingHistory.book": bookID},
	}}
	update := bson.M{
		"$pull": bson.M{"readList": bookID, "readingHistory": bson.M{"book": bookID}},
		"$inc":  bson.M{"historyVersion": 1},
	}
	_, err := db.Users().UpdateMany(ctx, filter, update)
	return err
}
