// Package memstore is an in-memory implementation of the service storage ports. It backs
// the test suites and the MONGODB_URI=memory:// development mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ service.Store = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	users     map[primitive.ObjectID]*models.User
	books     map[primitive.ObjectID]*models.Book
	reviews   map[primitive.ObjectID]*models.Review
	userBooks map[primitive.ObjectID]*models.UserBook
	emailLogs []models.EmailLog
}

func New() *Store {
	return &Store{
		users:     make(map[primitive.ObjectID]*models.User),
		books:     make(map[primitive.ObjectID]*models.Book),
		reviews:   make(map[primitive.ObjectID]*models.Review),
		userBooks: make(map[primitive.ObjectID]*models.UserBook),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.ReadList = append([]primitive.ObjectID{}, u.ReadList...)
	c.ReadingHistory = append([]models.HistoryEntry{}, u.ReadingHistory...)
	c.UploadedBooks = append([]primitive.ObjectID{}, u.UploadedBooks...)
	return &c
}

func copyBook(b *models.Book) *models.Book {
	c := *b
	c.Tags = append([]string{}, b.Tags...)
	return &c
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, fmt.Errorf("%w: email already exists", models.ErrConflict)
		}
	}
	c := copyUser(u)
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.users[c.ID] = c
	return c.ID, nil
}

func (s *Store) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) UsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *copyUser(u))
		}
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (s *Store) UsersCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) AdminsCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, u := range s.users {
		if u.IsAdmin() {
			n++
		}
	}
	return n, nil
}

// withUser runs fn on the stored user if it exists.
func (s *Store) withUser(id primitive.ObjectID, fn func(u *models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		fn(u)
	}
}

func (s *Store) UpdateProfile(_ context.Context, id primitive.ObjectID, up models.ProfileUpdate) error {
	s.withUser(id, func(u *models.User) {
		if up.FullName != nil {
			u.FullName = *up.FullName
		}
		if up.Avatar != nil {
			u.Avatar = *up.Avatar
		}
		if up.Latitude != nil {
			lat := *up.Latitude
			u.Latitude = &lat
		}
		if up.Longitude != nil {
			lng := *up.Longitude
			u.Longitude = &lng
		}
	})
	return nil
}

func (s *Store) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	s.withUser(id, func(u *models.User) { u.Password = hash })
	return nil
}

func (s *Store) SetRole(_ context.Context, id primitive.ObjectID, role string) error {
	s.withUser(id, func(u *models.User) { u.Role = role })
	return nil
}

func (s *Store) SetAvatar(_ context.Context, id primitive.ObjectID, url, s3Key string) error {
	s.withUser(id, func(u *models.User) {
		u.Avatar = url
		u.AvatarS3Key = s3Key
	})
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *Store) SetOTP(_ context.Context, id primitive.ObjectID, hash string, expires time.Time) error {
	s.withUser(id, func(u *models.User) {
		u.OTP = hash
		u.OTPExpires = &expires
	})
	return nil
}

func (s *Store) ConsumeOTP(_ context.Context, id primitive.ObjectID, otpHash, passwordHash string, now time.Time) (bool, error) {
	applied := false
	s.withUser(id, func(u *models.User) {
		if u.OTP == "" || u.OTP != otpHash || u.OTPExpires == nil || !u.OTPExpires.After(now) {
			return
		}
		u.Password = passwordHash
		u.OTP = ""
		u.OTPExpires = nil
		applied = true
	})
	return applied, nil
}

func (s *Store) SaveReadingHistory(_ context.Context, id primitive.ObjectID, version int64, history []models.HistoryEntry, readList []primitive.ObjectID) (bool, error) {
	applied := false
	s.withUser(id, func(u *models.User) {
		if u.HistoryVersion != version {
			return
		}
		u.ReadingHistory = append([]models.HistoryEntry{}, history...)
		u.ReadList = append([]primitive.ObjectID{}, readList...)
		u.HistoryVersion = version + 1
		applied = true
	})
	return applied, nil
}

func (s *Store) AddUploadedBook(_ context.Context, userID, bookID primitive.ObjectID) error {
	s.withUser(userID, func(u *models.User) {
		u.UploadedBooks = models.AddToReadList(u.UploadedBooks, bookID)
	})
	return nil
}

func (s *Store) PullUploadedBook(_ context.Context, userID, bookID primitive.ObjectID) error {
	s.withUser(userID, func(u *models.User) {
		u.UploadedBooks = without(u.UploadedBooks, bookID)
	})
	return nil
}

func (s *Store) PurgeBook(_ context.Context, bookID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		history := make([]models.HistoryEntry, 0, len(u.ReadingHistory))
		for _, h := range u.ReadingHistory {
			if h.BookID != bookID {
				history = append(history, h)
			}
		}
		list := without(u.ReadList, bookID)
		if len(history) != len(u.ReadingHistory) || len(list) != len(u.ReadList) {
			u.ReadingHistory = history
			u.ReadList = list
			u.HistoryVersion++
		}
	}
	return nil
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Email logs

func (s *Store) InsertEmailLog(_ context.Context, l *models.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.emailLogs = append(s.emailLogs, c)
	return nil
}

// EmailLogs returns every recorded mail, oldest first.
func (s *Store) EmailLogs() []models.EmailLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EmailLog{}, s.emailLogs...)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
