package service_test

import (
	"errors"
	"testing"

	"github.com/smartbook/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRecommendationsExcludeReadBooks(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	reader := f.user("reader", models.RoleUser)

	readFantasy := f.book(owner, "Read fantasy", "fantasy", true)
	f.book(owner, "Unread mystery", "mystery", true)
	f.book(owner, "Private fantasy", "fantasy", false)
	quiet := f.book(owner, "Quiet fantasy", "fantasy", true)
	busy := f.book(owner, "Busy fantasy", "fantasy", true)

	other := f.user("other", models.RoleUser)
	f.read(other, busy, 10)
	f.read(other, busy, 20)
	f.read(reader, readFantasy, 30)

	recs, err := f.lib.Recommendations(f.ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{busy, quiet}, ids(recs))
}

func TestRecommendationsWithoutHistory(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	f.book(owner, "Anything", "fantasy", true)

	recs, err := f.lib.Recommendations(f.ctx, f.user("new", models.RoleUser))
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	_, err = f.lib.Recommendations(f.ctx, primitive.NewObjectID())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRecommendationsIgnoreBooksWithoutGenre(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	reader := f.user("reader", models.RoleUser)
	untagged := f.book(owner, "No genre", "", true)
	f.book(owner, "Also no genre", "", true)
	f.read(reader, untagged, 10)

	recs, err := f.lib.Recommendations(f.ctx, reader)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPopularBooksMetricWhitelist(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	a := f.book(owner, "A", "x", true)
	b := f.book(owner, "B", "x", true)
	f.book(owner, "Hidden", "x", false)
	f.read(owner, a, 10)

	for _, metric := range []string{"views", "readCount", "averageRating"} {
		_, err := f.lib.PopularBooks(f.ctx, metric, 10)
		assert.NoError(t, err, metric)
	}
	for _, metric := range []string{"password", "$where", "email"} {
		_, err := f.lib.PopularBooks(f.ctx, metric, 10)
		assert.True(t, errors.Is(err, models.ErrInvalidInput), metric)
	}
	for _, limit := range []int{-1, 101} {
		_, err := f.lib.PopularBooks(f.ctx, "views", limit)
		assert.True(t, errors.Is(err, models.ErrInvalidInput), "limit %d", limit)
	}

	books, err := f.lib.PopularBooks(f.ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a, b}, ids(books))

	books, err = f.lib.PopularBooks(f.ctx, "readCount", 1)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a}, ids(books))
}

func TestTopBooksTieBreakNewest(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	older := f.book(owner, "Older", "x", true)
	newer := f.book(owner, "Newer", "x", true)
	viewed := f.book(owner, "Viewed", "x", true)
	f.read(owner, viewed, 5)

	books, err := f.lib.TopBooks(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{viewed, newer, older}, ids(books))
}

func TestLeaderboardOmitsReadersWithoutCompletions(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	b1 := f.book(owner, "One", "x", true)
	b2 := f.book(owner, "Two", "x", true)

	alice := f.user("alice", models.RoleUser)
	bob := f.user("bob", models.RoleUser)
	carol := f.user("carol", models.RoleUser)
	f.read(alice, b1, 95)
	f.read(alice, b2, 90)
	f.read(bob, b1, 100)
	f.read(carol, b1, 50)

	board, err := f.lib.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, models.LeaderboardEntry{UserID: alice, FullName: "alice", Avatar: "alice.png", CompletedBooks: 2}, board[0])
	assert.Equal(t, bob, board[1].UserID)
	assert.Equal(t, 1, board[1].CompletedBooks)
}

func TestLeaderboardUnknownUser(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	b := f.book(owner, "One", "x", true)
	ghost := f.user("ghost", models.RoleUser)
	f.read(ghost, b, 95)
	require.NoError(t, f.store.DeleteUser(f.ctx, ghost))

	board, err := f.lib.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, models.AnonymousName, board[0].FullName)
}
