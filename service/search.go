package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Search filters the catalog. callerID may be primitive.NilObjectID for anonymous callers,
// who only see public books; signed-in users also see their own uploads and admins see
// everything.
func (l *Library) Search(ctx context.Context, callerID primitive.ObjectID, q models.SearchQuery) ([]models.Book, error) {
	sort, err := q.Sort()
	if err != nil {
		return nil, err
	}
	if q.MinRating != nil && (*q.MinRating < 0 || *q.MinRating > models.MaxRating) {
		return nil, fmt.Errorf("%w: minRating must be between 0 and %d", models.ErrInvalidInput, models.MaxRating)
	}
	if q.Status != "" && !models.ValidStatus(q.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, q.Status)
	}

	var caller *models.User
	if !callerID.IsZero() {
		if caller, err = l.user(ctx, callerID); err != nil {
			return nil, err
		}
	}
	if q.Status != "" && caller == nil {
		return nil, fmt.Errorf("%w: status filter requires a signed-in user", models.ErrInvalidInput)
	}

	f := models.BookFilter{
		Text:      strings.TrimSpace(q.Q),
		Genre:     q.Genre,
		Author:    strings.TrimSpace(q.Author),
		Tags:      q.Tags,
		IsPublic:  q.IsPublic,
		MinRating: q.MinRating,
	}
	switch {
	case caller == nil:
		if q.IsPublic != nil && !*q.IsPublic {
			return []models.Book{}, nil
		}
		public := true
		f.IsPublic = &public
	case !caller.IsAdmin():
		f.VisibleTo = &caller.ID
	}

	if q.Status != "" {
		entries, err := l.store.UserBooks(ctx, caller.ID, q.Status)
		if err != nil {
			return nil, fmt.Errorf("load activity: %w", err)
		}
		if len(entries) == 0 {
			return []models.Book{}, nil
		}
		for _, e := range entries {
			f.IDs = append(f.IDs, e.BookID)
		}
	}

	books, err := l.store.FindBooks(ctx, f, sort, 0)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return nonNil(books), nil
}
