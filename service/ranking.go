package service

import (
	"context"
	"fmt"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PopularBooks ranks public books by metric (views, readCount or averageRating).
// A zero limit selects the default.
func (l *Library) PopularBooks(ctx context.Context, metric string, limit int) ([]models.Book, error) {
	if metric == "" {
		metric = models.DefaultPopularMetric
	}
	if !models.PopularityMetrics[metric] {
		return nil, fmt.Errorf("%w: unsupported metric %q", models.ErrInvalidInput, metric)
	}
	if limit == 0 {
		limit = models.DefaultRankingLimit
	}
	if limit < 1 || limit > models.MaxRankingLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", models.ErrInvalidInput, models.MaxRankingLimit)
	}
	public := true
	books, err := l.store.FindBooks(ctx, models.BookFilter{IsPublic: &public},
		models.BookSort{Field: metric, Desc: true}, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("find popular books: %w", err)
	}
	return nonNil(books), nil
}

// TopBooks returns the most viewed public books.
func (l *Library) TopBooks(ctx context.Context) ([]models.Book, error) {
	public := true
	books, err := l.store.FindBooks(ctx, models.BookFilter{IsPublic: &public},
		models.BookSort{Field: "views", Desc: true}, models.DefaultRankingLimit)
	if err != nil {
		return nil, fmt.Errorf("find top books: %w", err)
	}
	return nonNil(books), nil
}

// Leaderboard ranks users by completed books. Users without completions are not listed.
func (l *Library) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	counts, err := l.store.CompletedCounts(ctx, models.LeaderboardLimit)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	ids := make([]primitive.ObjectID, len(counts))
	for i, c := range counts {
		ids[i] = c.UserID
	}
	users, err := l.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.LeaderboardEntry, 0, len(counts))
	for _, c := range counts {
		if c.CompletedBooks <= 0 {
			continue
		}
		e := models.LeaderboardEntry{UserID: c.UserID, FullName: models.AnonymousName, CompletedBooks: c.CompletedBooks}
		if u, ok := users[c.UserID]; ok {
			e.FullName = u.FullName
			e.Avatar = u.Avatar
		}
		out = append(out, e)
	}
	return out, nil
}
