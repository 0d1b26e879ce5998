package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *Store) InsertBook(_ context.Context, b *models.Book) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyBook(b)
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.books[c.ID] = c
	return c.ID, nil
}

func (s *Store) BookByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.books[id]; ok {
		return copyBook(b), nil
	}
	return nil, nil
}

func (s *Store) BooksByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Book{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if b, ok := s.books[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *copyBook(b))
		}
	}
	return out, nil
}

func (s *Store) FindBooks(_ context.Context, f models.BookFilter, order models.BookSort, limit int64) ([]models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Book{}
	for _, b := range s.books {
		if matchBook(f, b) {
			out = append(out, *copyBook(b))
		}
	}
	sortBooks(out, order)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountBooks(_ context.Context, f models.BookFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, b := range s.books {
		if matchBook(f, b) {
			n++
		}
	}
	return n, nil
}

func matchBook(f models.BookFilter, b *models.Book) bool {
	if f.Text != "" && !containsFold(b.Title, f.Text) && !containsFold(b.Author, f.Text) && !containsFold(b.Genre, f.Text) {
		return false
	}
	if f.Genre != "" && b.Genre != f.Genre {
		return false
	}
	if len(f.Genres) > 0 && !containsString(f.Genres, b.Genre) {
		return false
	}
	if f.Author != "" && !containsFold(b.Author, f.Author) {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(f.Tags, b.Tags) {
		return false
	}
	if f.IsPublic != nil && b.IsPublic != *f.IsPublic {
		return false
	}
	if f.MinRating != nil && b.AverageRating < *f.MinRating {
		return false
	}
	if f.UploadedBy != nil && b.UploadedBy != *f.UploadedBy {
		return false
	}
	if f.VisibleTo != nil && !b.IsPublic && b.UploadedBy != *f.VisibleTo {
		return false
	}
	if f.IDs != nil && !containsID(f.IDs, b.ID) {
		return false
	}
	if containsID(f.ExcludeIDs, b.ID) {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsID(list []primitive.ObjectID, v primitive.ObjectID) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}

func anyTag(want, have []string) bool {
	for _, t := range want {
		if containsString(have, t) {
			return true
		}
	}
	return false
}

// sortBooks mirrors the Mongo ordering: requested field, then newest, then highest id.
func sortBooks(books []models.Book, order models.BookSort) {
	field := order.Field
	if field == "" {
		field = models.DefaultSortField
	}
	sort.SliceStable(books, func(i, j int) bool {
		if c := compareField(&books[i], &books[j], field); c != 0 {
			if order.Desc {
				return c > 0
			}
			return c < 0
		}
		if field != "createdAt" && !books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].CreatedAt.After(books[j].CreatedAt)
		}
		return books[i].ID.Hex() > books[j].ID.Hex()
	})
}

func compareField(a, b *models.Book, field string) int {
	switch field {
	case "title":
		return compare(a.Title, b.Title)
	case "views":
		return compare(a.Views, b.Views)
	case "readCount":
		return compare(a.ReadCount, b.ReadCount)
	case "averageRating":
		return compare(a.AverageRating, b.AverageRating)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compare[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (s *Store) UpdateBook(_ context.Context, id primitive.ObjectID, up models.BookUpdate, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		up.Apply(b)
		if up.Tags != nil {
			b.Tags = append([]string{}, *up.Tags...)
		}
		b.UpdatedAt = now
	}
	return nil
}

func (s *Store) IncrementReads(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		b.Views++
		b.ReadCount++
	}
	return nil
}

func (s *Store) SetBookRating(_ context.Context, id primitive.ObjectID, version int64, avg float64, count int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok || b.RatingVersion != version {
		return false, nil
	}
	b.AverageRating = avg
	b.RatingCount = count
	b.RatingVersion = version + 1
	return true, nil
}

func (s *Store) SetBookVisibility(_ context.Context, id primitive.ObjectID, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		b.IsPublic = public
	}
	return nil
}

func (s *Store) DeleteBook(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	delete(s.books, id)
	return b, nil
}

func (s *Store) MeanRating(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	var n int
	for _, b := range s.books {
		if b.RatingCount > 0 {
			sum += b.AverageRating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
