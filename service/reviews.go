package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartbook/backend/metrics"
	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxCommentLength = 2000

// AddReview stores a rating for a book the user can see and refreshes the book's aggregate.
func (l *Library) AddReview(ctx context.Context, userID, bookID primitive.ObjectID, rating int, comment string) (*models.ReviewView, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", models.ErrInvalidInput, models.MinRating, models.MaxRating)
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, fmt.Errorf("%w: comment is too long", models.ErrInvalidInput)
	}
	u, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := l.readableBook(ctx, u, bookID); err != nil {
		return nil, err
	}

	r := &models.Review{
		UserID:    userID,
		BookID:    bookID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: l.now(),
	}
	id, err := l.store.InsertReview(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}
	r.ID = id
	metrics.ReviewsCreated.Inc()

	if err := l.refreshRating(ctx, bookID); err != nil {
		return nil, err
	}
	return &models.ReviewView{Review: *r, User: summarize(u)}, nil
}

// refreshRating recomputes averageRating and ratingCount from all reviews of the book.
func (l *Library) refreshRating(ctx context.Context, bookID primitive.ObjectID) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if attempt > 0 {
			metrics.CASRetries.WithLabelValues("rating").Inc()
		}
		b, err := l.book(ctx, bookID)
		if err != nil {
			return err
		}
		reviews, err := l.store.ReviewsByBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("load reviews: %w", err)
		}
		avg, count := models.AverageRating(reviews)
		ok, err := l.store.SetBookRating(ctx, bookID, b.RatingVersion, avg, count)
		if err != nil {
			return fmt.Errorf("save rating: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("save rating: too many concurrent updates for book %s", bookID.Hex())
}

// Reviews lists a book's reviews newest first with their authors. Reviews of a book the
// caller may not read are hidden like the book itself. callerID may be primitive.NilObjectID.
func (l *Library) Reviews(ctx context.Context, callerID, bookID primitive.ObjectID) ([]models.ReviewView, error) {
	if _, err := l.Book(ctx, callerID, bookID); err != nil {
		return nil, err
	}
	reviews, err := l.store.ReviewsByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	authors, err := l.summaries(ctx, reviewAuthors(reviews))
	if err != nil {
		return nil, err
	}
	out := make([]models.ReviewView, len(reviews))
	for i, r := range reviews {
		out[i] = models.ReviewView{Review: r, User: authors[r.UserID]}
		if out[i].User.ID.IsZero() {
			out[i].User = models.UserSummary{ID: r.UserID, FullName: models.AnonymousName}
		}
	}
	return out, nil
}

func reviewAuthors(reviews []models.Review) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.UserID)
	}
	return ids
}

// summaries loads the public projection of the given users keyed by id.
func (l *Library) summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	users, err := l.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make(map[primitive.ObjectID]models.UserSummary, len(users))
	for i := range users {
		out[users[i].ID] = summarize(&users[i])
	}
	return out, nil
}

func summarize(u *models.User) models.UserSummary {
	return models.UserSummary{ID: u.ID, FullName: u.FullName, Avatar: u.Avatar}
}
