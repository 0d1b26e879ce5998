package service

import (
	"context"
	"fmt"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Recommendations suggests unread public books in the genres the user has read, most
// viewed first.
func (l *Library) Recommendations(ctx context.Context, userID primitive.ObjectID) ([]models.Book, error) {
	u, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity, err := l.store.UserBooks(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}

	read := make([]primitive.ObjectID, 0, len(u.ReadList)+len(activity))
	seen := make(map[primitive.ObjectID]bool)
	for _, id := range u.ReadList {
		if !seen[id] {
			seen[id] = true
			read = append(read, id)
		}
	}
	for _, ub := range activity {
		if !seen[ub.BookID] {
			seen[ub.BookID] = true
			read = append(read, ub.BookID)
		}
	}
	if len(read) == 0 {
		return []models.Book{}, nil
	}

	readBooks, err := l.store.BooksByIDs(ctx, read)
	if err != nil {
		return nil, fmt.Errorf("load read books: %w", err)
	}
	var genres []string
	seenGenre := make(map[string]bool)
	for _, b := range readBooks {
		if b.Genre != "" && !seenGenre[b.Genre] {
			seenGenre[b.Genre] = true
			genres = append(genres, b.Genre)
		}
	}
	if len(genres) == 0 {
		return []models.Book{}, nil
	}

	public := true
	books, err := l.store.FindBooks(ctx, models.BookFilter{
		Genres:     genres,
		IsPublic:   &public,
		ExcludeIDs: read,
	}, models.BookSort{Field: "views", Desc: true}, models.RecommendationLimit)
	if err != nil {
		return nil, fmt.Errorf("find recommendations: %w", err)
	}
	return nonNil(books), nil
}
