package service_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/smartbook/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAddReviewAggregates(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	b := f.book(owner, "Dune", "sci-fi", true)

	for _, r := range []int{5, 4, 3} {
		_, err := f.lib.AddReview(f.ctx, f.user(primitive.NewObjectID().Hex(), models.RoleUser), b, r, "ok")
		require.NoError(t, err)
	}

	book := f.loadBook(b)
	assert.InDelta(t, 4.0, book.AverageRating, 1e-9)
	assert.Equal(t, int64(3), book.RatingCount)
}

func TestAddReviewJoinsAuthor(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	reader := f.user("reader", models.RoleUser)
	b := f.book(owner, "Dune", "sci-fi", true)

	view, err := f.lib.AddReview(f.ctx, reader, b, 5, "  loved it ")
	require.NoError(t, err)
	assert.Equal(t, "reader", view.User.FullName)
	assert.Equal(t, "reader.png", view.User.Avatar)
	assert.Equal(t, "loved it", view.Comment)

	_, err = f.lib.AddReview(f.ctx, reader, b, 3, "second thoughts")
	require.NoError(t, err)

	list, err := f.lib.Reviews(f.ctx, reader, b)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second thoughts", list[0].Comment)
	assert.Equal(t, "reader", list[1].User.FullName)
	assert.InDelta(t, 4.0, f.loadBook(b).AverageRating, 1e-9)
}

func TestAddReviewValidatesBeforeInsert(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	reader := f.user("reader", models.RoleUser)
	public := f.book(owner, "Open", "sci-fi", true)
	private := f.book(owner, "Closed", "sci-fi", false)

	for _, r := range []int{0, 6, -1} {
		_, err := f.lib.AddReview(f.ctx, reader, public, r, "")
		assert.True(t, errors.Is(err, models.ErrInvalidInput), "rating %d", r)
	}
	_, err := f.lib.AddReview(f.ctx, reader, primitive.NewObjectID(), 4, "")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.lib.AddReview(f.ctx, reader, private, 4, "")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	n, err := f.store.ReviewsCount(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddReviewConcurrentAggregateIsExact(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	b := f.book(owner, "Dune", "sci-fi", true)
	var readers []primitive.ObjectID
	for i := 0; i < 6; i++ {
		readers = append(readers, f.user(primitive.NewObjectID().Hex(), models.RoleUser))
	}

	var wg sync.WaitGroup
	for i, r := range readers {
		wg.Add(1)
		go func(u primitive.ObjectID, rating int) {
			defer wg.Done()
			_, err := f.lib.AddReview(f.ctx, u, b, rating, "")
			assert.NoError(t, err)
		}(r, i%5+1)
	}
	wg.Wait()

	book := f.loadBook(b)
	assert.Equal(t, int64(6), book.RatingCount)
	assert.InDelta(t, 2.7, book.AverageRating, 1e-9) // (1+2+3+4+5+1)/6 = 2.67
}

func TestReviewsOfMissingBook(t *testing.T) {
	f := newFixture(t)
	_, err := f.lib.Reviews(f.ctx, primitive.NilObjectID, primitive.NewObjectID())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestReviewsOfPrivateBook(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	other := f.user("other", models.RoleUser)
	admin := f.user("admin", models.RoleAdmin)
	b := f.book(owner, "Notes", "essay", false)
	_, err := f.lib.AddReview(f.ctx, owner, b, 5, "private notes")
	require.NoError(t, err)

	for name, caller := range map[string]primitive.ObjectID{"anonymous": primitive.NilObjectID, "other user": other} {
		_, err := f.lib.Reviews(f.ctx, caller, b)
		assert.ErrorIs(t, err, models.ErrNotFound, name)
	}
	for name, caller := range map[string]primitive.ObjectID{"owner": owner, "admin": admin} {
		list, err := f.lib.Reviews(f.ctx, caller, b)
		require.NoError(t, err, name)
		assert.Len(t, list, 1, name)
	}
}
