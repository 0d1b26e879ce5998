package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateBook stores a new catalog entry owned by ownerID and links it to the owner.
func (l *Library) CreateBook(ctx context.Context, ownerID primitive.ObjectID, b *models.Book) (*models.Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	if _, err := l.user(ctx, ownerID); err != nil {
		return nil, err
	}
	now := l.now()
	b.UploadedBy = ownerID
	b.Tags = cleanTags(b.Tags)
	b.Views, b.ReadCount, b.RatingCount, b.AverageRating, b.RatingVersion = 0, 0, 0, 0, 0
	b.CreatedAt, b.UpdatedAt = now, now

	id, err := l.store.InsertBook(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	b.ID = id
	if err := l.store.AddUploadedBook(ctx, ownerID, id); err != nil {
		return nil, fmt.Errorf("link upload: %w", err)
	}
	return b, nil
}

// Book returns a book the caller may read. callerID may be primitive.NilObjectID.
func (l *Library) Book(ctx context.Context, callerID, bookID primitive.ObjectID) (*models.Book, error) {
	var caller *models.User
	if !callerID.IsZero() {
		var err error
		if caller, err = l.user(ctx, callerID); err != nil {
			return nil, err
		}
	}
	return l.readableBook(ctx, caller, bookID)
}

// EditBook applies a partial update. Only the uploader and admins may edit.
func (l *Library) EditBook(ctx context.Context, callerID, bookID primitive.ObjectID, up models.BookUpdate) (*models.Book, error) {
	if up.Title != nil {
		t := strings.TrimSpace(*up.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", models.ErrInvalidInput)
		}
		up.Title = &t
	}
	if up.Tags != nil {
		tags := cleanTags(*up.Tags)
		up.Tags = &tags
	}
	b, err := l.editableBook(ctx, callerID, bookID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if err := l.store.UpdateBook(ctx, bookID, up, now); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	up.Apply(b)
	b.UpdatedAt = now
	return b, nil
}

// DeleteBook removes a book with its reviews and reading activity. The deleted record is
// returned so the caller can remove stored files.
func (l *Library) DeleteBook(ctx context.Context, callerID, bookID primitive.ObjectID) (*models.Book, error) {
	if _, err := l.editableBook(ctx, callerID, bookID); err != nil {
		return nil, err
	}
	b, err := l.store.DeleteBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: book", models.ErrNotFound)
	}
	if err := l.store.PullUploadedBook(ctx, b.UploadedBy, bookID); err != nil {
		return nil, fmt.Errorf("unlink upload: %w", err)
	}
	if err := l.store.DeleteReviewsByBook(ctx, bookID); err != nil {
		return nil, fmt.Errorf("delete reviews: %w", err)
	}
	if err := l.store.DeleteUserBooksByBook(ctx, bookID); err != nil {
		return nil, fmt.Errorf("delete activity: %w", err)
	}
	if err := l.store.PurgeBook(ctx, bookID); err != nil {
		return nil, fmt.Errorf("purge reading lists: %w", err)
	}
	return b, nil
}

func (l *Library) editableBook(ctx context.Context, callerID, bookID primitive.ObjectID) (*models.Book, error) {
	caller, err := l.user(ctx, callerID)
	if err != nil {
		return nil, err
	}
	b, err := l.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !b.EditableBy(caller) {
		return nil, fmt.Errorf("%w: only the uploader or an admin can change this book", models.ErrUnauthorized)
	}
	return b, nil
}

// MyBooks lists the user's uploads, newest first.
func (l *Library) MyBooks(ctx context.Context, userID primitive.ObjectID) ([]models.Book, error) {
	books, err := l.store.FindBooks(ctx, models.BookFilter{UploadedBy: &userID}, models.BookSort{Field: "createdAt", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("find uploads: %w", err)
	}
	return nonNil(books), nil
}

// PublicBooks lists every public book, newest first.
func (l *Library) PublicBooks(ctx context.Context) ([]models.Book, error) {
	public := true
	books, err := l.store.FindBooks(ctx, models.BookFilter{IsPublic: &public}, models.BookSort{Field: "createdAt", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("find public books: %w", err)
	}
	return nonNil(books), nil
}

// AllBooks lists the whole catalog for administrators.
func (l *Library) AllBooks(ctx context.Context) ([]models.Book, error) {
	books, err := l.store.FindBooks(ctx, models.BookFilter{}, models.BookSort{Field: "createdAt", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	return nonNil(books), nil
}

// Moderate hides a book from the public catalog.
func (l *Library) Moderate(ctx context.Context, bookID primitive.ObjectID) error {
	if _, err := l.book(ctx, bookID); err != nil {
		return err
	}
	if err := l.store.SetBookVisibility(ctx, bookID, false); err != nil {
		return fmt.Errorf("moderate book: %w", err)
	}
	return nil
}

// AdminStats summarizes the catalog.
func (l *Library) AdminStats(ctx context.Context) (*models.CatalogStats, error) {
	var (
		s   models.CatalogStats
		err error
	)
	if s.TotalUsers, err = l.store.UsersCount(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if s.TotalBooks, err = l.store.CountBooks(ctx, models.BookFilter{}); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	public := true
	if s.PublicBooks, err = l.store.CountBooks(ctx, models.BookFilter{IsPublic: &public}); err != nil {
		return nil, fmt.Errorf("count public books: %w", err)
	}
	s.PrivateBooks = s.TotalBooks - s.PublicBooks
	if s.TotalReviews, err = l.store.ReviewsCount(ctx); err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}
	mean, err := l.store.MeanRating(ctx)
	if err != nil {
		return nil, fmt.Errorf("mean rating: %w", err)
	}
	s.AverageRating = math.Round(mean*10) / 10
	return &s, nil
}

// cleanTags trims tags and drops empty and duplicate entries.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
