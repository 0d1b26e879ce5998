package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxCASAttempts bounds the optimistic retry loops on user history and book ratings.
const maxCASAttempts = 8

// Lookups return (nil, nil) when the document does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (primitive.ObjectID, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UsersCount(ctx context.Context) (int64, error)
	AdminsCount(ctx context.Context) (int64, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, up models.ProfileUpdate) error
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetRole(ctx context.Context, id primitive.ObjectID, role string) error
	SetAvatar(ctx context.Context, id primitive.ObjectID, url, s3Key string) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) error

	SetOTP(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error
	// ConsumeOTP sets the password only if the stored OTP hash still equals otpHash and has
	// not expired at now, clearing the OTP in the same write. It reports whether it applied.
	ConsumeOTP(ctx context.Context, id primitive.ObjectID, otpHash, passwordHash string, now time.Time) (bool, error)

	// SaveReadingHistory writes history and readList if the user's historyVersion still equals
	// version, bumping it. It reports false when another writer got there first.
	SaveReadingHistory(ctx context.Context, id primitive.ObjectID, version int64, history []models.HistoryEntry, readList []primitive.ObjectID) (bool, error)
	AddUploadedBook(ctx context.Context, userID, bookID primitive.ObjectID) error
	PullUploadedBook(ctx context.Context, userID, bookID primitive.ObjectID) error
	// PurgeBook removes bookID from every user's read list and reading history.
	PurgeBook(ctx context.Context, bookID primitive.ObjectID) error
}

type BookStore interface {
	InsertBook(ctx context.Context, b *models.Book) (primitive.ObjectID, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	BooksByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Book, error)
	// FindBooks lists matching books; limit <= 0 means no limit.
	FindBooks(ctx context.Context, f models.BookFilter, sort models.BookSort, limit int64) ([]models.Book, error)
	CountBooks(ctx context.Context, f models.BookFilter) (int64, error)
	UpdateBook(ctx context.Context, id primitive.ObjectID, up models.BookUpdate, now time.Time) error
	IncrementReads(ctx context.Context, id primitive.ObjectID) error
	// SetBookRating stores the aggregate if ratingVersion still equals version.
	SetBookRating(ctx context.Context, id primitive.ObjectID, version int64, avg float64, count int64) (bool, error)
	SetBookVisibility(ctx context.Context, id primitive.ObjectID, public bool) error
	// DeleteBook removes the book and returns it, or (nil, nil) if it did not exist.
	DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	// MeanRating averages averageRating over books that have at least one review.
	MeanRating(ctx context.Context) (float64, error)
}

type ReviewStore interface {
	InsertReview(ctx context.Context, r *models.Review) (primitive.ObjectID, error)
	// ReviewsByBook returns the book's reviews newest first.
	ReviewsByBook(ctx context.Context, bookID primitive.ObjectID) ([]models.Review, error)
	DeleteReviewsByBook(ctx context.Context, bookID primitive.ObjectID) error
	ReviewsCount(ctx context.Context) (int64, error)
}

type ActivityStore interface {
	UpsertUserBook(ctx context.Context, userID, bookID primitive.ObjectID, progress int, status string, now time.Time) error
	// UserBooks lists the user's activity entries, optionally restricted to one status.
	UserBooks(ctx context.Context, userID primitive.ObjectID, status string) ([]models.UserBook, error)
	RecentUserBooks(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.UserBook, error)
	// CompletedCounts groups completed entries by user, most completions first, ties by user id.
	CompletedCounts(ctx context.Context, limit int64) ([]models.CompletedCount, error)
	DeleteUserBooksByBook(ctx context.Context, bookID primitive.ObjectID) error
	DeleteUserBooksByUser(ctx context.Context, userID primitive.ObjectID) error
}

type EmailLogStore interface {
	InsertEmailLog(ctx context.Context, l *models.EmailLog) error
}

// Store is everything the service and HTTP layers persist.
type Store interface {
	UserStore
	BookStore
	ReviewStore
	ActivityStore
	EmailLogStore
}

// Library implements reading activity, ratings, rankings, search and catalog rules on top
// of a Store.
type Library struct {
	store Store
	now   func() time.Time
}

func NewLibrary(s Store) *Library {
	return &Library{store: s, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (l *Library) WithClock(now func() time.Time) *Library {
	l.now = now
	return l
}

func (l *Library) user(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := l.store.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user", models.ErrNotFound)
	}
	return u, nil
}

// User returns the user or models.ErrNotFound.
func (l *Library) User(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return l.user(ctx, id)
}

func (l *Library) book(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	b, err := l.store.BookByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: book", models.ErrNotFound)
	}
	return b, nil
}

// readableBook loads a book and hides private books from callers who may not read them.
func (l *Library) readableBook(ctx context.Context, caller *models.User, id primitive.ObjectID) (*models.Book, error) {
	b, err := l.book(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.ReadableBy(caller) {
		return nil, fmt.Errorf("%w: book", models.ErrNotFound)
	}
	return b, nil
}

func nonNil(books []models.Book) []models.Book {
	if books == nil {
		return []models.Book{}
	}
	return books
}
