package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"github.com/smartbook/backend/store/memstore"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	lib   *service.Library

	mu    sync.Mutex
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memstore.New(),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.lib = service.NewLibrary(f.store).WithClock(f.tick)
	return f
}

// tick advances the clock one second per call so timestamps are strictly ordered.
func (f *fixture) tick() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) user(name, role string) primitive.ObjectID {
	id, err := f.store.CreateUser(f.ctx, &models.User{FullName: name, Email: name + "@example.com", Role: role, Avatar: name + ".png"})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) book(owner primitive.ObjectID, title, genre string, public bool) primitive.ObjectID {
	b, err := f.lib.CreateBook(f.ctx, owner, &models.Book{Title: title, Genre: genre, IsPublic: public})
	require.NoError(f.t, err)
	return b.ID
}

func (f *fixture) read(user, book primitive.ObjectID, progress int) {
	require.NoError(f.t, f.lib.RecordReading(f.ctx, user, book, progress))
}

func (f *fixture) loadUser(id primitive.ObjectID) *models.User {
	u, err := f.store.UserByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, u)
	return u
}

func (f *fixture) loadBook(id primitive.ObjectID) *models.Book {
	b, err := f.store.BookByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, b)
	return b
}

func ids(books []models.Book) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}
