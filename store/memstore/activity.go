package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reviews

func (s *Store) InsertReview(_ context.Context, r *models.Review) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.reviews[c.ID] = &c
	return c.ID, nil
}

func (s *Store) ReviewsByBook(_ context.Context, bookID primitive.ObjectID) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Review{}
	for _, r := range s.reviews {
		if r.BookID == bookID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}

func (s *Store) DeleteReviewsByBook(_ context.Context, bookID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.reviews {
		if r.BookID == bookID {
			delete(s.reviews, id)
		}
	}
	return nil
}

func (s *Store) ReviewsCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.reviews)), nil
}

// Reading activity

func (s *Store) UpsertUserBook(_ context.Context, userID, bookID primitive.ObjectID, progress int, status string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ub := range s.userBooks {
		if ub.UserID == userID && ub.BookID == bookID {
			ub.Progress = progress
			ub.Status = status
			ub.LastReadAt = now
			ub.UpdatedAt = now
			return nil
		}
	}
	ub := &models.UserBook{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		BookID:     bookID,
		Status:     status,
		Progress:   progress,
		LastReadAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.userBooks[ub.ID] = ub
	return nil
}

func (s *Store) userBooksLocked(userID primitive.ObjectID, status string) []models.UserBook {
	out := []models.UserBook{}
	for _, ub := range s.userBooks {
		if ub.UserID == userID && (status == "" || ub.Status == status) {
			out = append(out, *ub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastReadAt.Equal(out[j].LastReadAt) {
			return out[i].LastReadAt.After(out[j].LastReadAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (s *Store) UserBooks(_ context.Context, userID primitive.ObjectID, status string) ([]models.UserBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userBooksLocked(userID, status), nil
}

func (s *Store) RecentUserBooks(_ context.Context, userID primitive.ObjectID, limit int64) ([]models.UserBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.userBooksLocked(userID, "")
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CompletedCounts(_ context.Context, limit int64) ([]models.CompletedCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[primitive.ObjectID]int{}
	for _, ub := range s.userBooks {
		if ub.Status == models.StatusCompleted {
			counts[ub.UserID]++
		}
	}
	out := make([]models.CompletedCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, models.CompletedCount{UserID: id, CompletedBooks: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedBooks != out[j].CompletedBooks {
			return out[i].CompletedBooks > out[j].CompletedBooks
		}
		return out[i].UserID.Hex() < out[j].UserID.Hex()
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteUserBooksByBook(_ context.Context, bookID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ub := range s.userBooks {
		if ub.BookID == bookID {
			delete(s.userBooks, id)
		}
	}
	return nil
}

func (s *Store) DeleteUserBooksByUser(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ub := range s.userBooks {
		if ub.UserID == userID {
			delete(s.userBooks, id)
		}
	}
	return nil
}
