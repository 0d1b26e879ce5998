package service_test

import (
	"errors"
	"testing"

	"github.com/smartbook/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSearchVisibility(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	other := f.user("other", models.RoleUser)
	admin := f.user("admin", models.RoleAdmin)
	public := f.book(owner, "Open Book", "x", true)
	private := f.book(owner, "Closed Book", "x", false)

	anon, err := f.lib.Search(f.ctx, primitive.NilObjectID, models.SearchQuery{Q: "book"})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{public}, ids(anon))

	asOther, err := f.lib.Search(f.ctx, other, models.SearchQuery{Q: "book"})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{public}, ids(asOther))

	asOwner, err := f.lib.Search(f.ctx, owner, models.SearchQuery{Q: "book"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []primitive.ObjectID{public, private}, ids(asOwner))

	asAdmin, err := f.lib.Search(f.ctx, admin, models.SearchQuery{Q: "book"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []primitive.ObjectID{public, private}, ids(asAdmin))

	hidden := false
	anon, err = f.lib.Search(f.ctx, primitive.NilObjectID, models.SearchQuery{IsPublic: &hidden})
	require.NoError(t, err)
	assert.Empty(t, anon)
}

func TestSearchFilters(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner", models.RoleUser)
	reader := f.user("reader", models.RoleUser)
	mk := func(title, author, genre string, tags ...string) primitive.ObjectID {
		b, err := f.lib.CreateBook(f.ctx, owner, &models.Book{Title: title, Author: author, Genre: genre, Tags: tags, IsPublic: true})
		require.NoError(t, err)
		return b.ID
	}
	dune := mk("Dune", "Frank Herbert", "sci-fi", "desert", "classic")
	emma := mk("Emma", "Jane Austen", "romance", "classic")
	regex := mk("C++ (Primer)", "Lippman", "programming")

	run := func(q models.SearchQuery) []primitive.ObjectID {
		books, err := f.lib.Search(f.ctx, reader, q)
		require.NoError(t, err)
		return ids(books)
	}

	assert.Equal(t, []primitive.ObjectID{dune}, run(models.SearchQuery{Q: "HERBERT"}))
	assert.Equal(t, []primitive.ObjectID{emma}, run(models.SearchQuery{Q: "roman"}))
	assert.Equal(t, []primitive.ObjectID{regex}, run(models.SearchQuery{Q: "c++ (pr"}))
	assert.Equal(t, []primitive.ObjectID{emma}, run(models.SearchQuery{Author: "austen"}))
	assert.Equal(t, []primitive.ObjectID{dune}, run(models.SearchQuery{Genre: "sci-fi"}))
	assert.ElementsMatch(t, []primitive.ObjectID{dune, emma}, run(models.SearchQuery{Tags: []string{"classic", "nope"}}))
	assert.Equal(t, []primitive.ObjectID{regex, dune, emma}, run(models.SearchQuery{SortBy: "title", Order: "asc"}))
	assert.Equal(t, []primitive.ObjectID{regex, emma, dune}, run(models.SearchQuery{}))

	_, err := f.lib.AddReview(f.ctx, reader, emma, 5, "")
	require.NoError(t, err)
	minRating := 4.5
	assert.Equal(t, []primitive.ObjectID{emma}, run(models.SearchQuery{MinRating: &minRating}))

	f.read(reader, dune, 95)
	f.read(reader, regex, 10)
	assert.Equal(t, []primitive.ObjectID{dune}, run(models.SearchQuery{Status: models.StatusCompleted}))
	assert.Empty(t, run(models.SearchQuery{Status: models.StatusNotStarted}))
}

func TestSearchRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	reader := f.user("reader", models.RoleUser)
	tooHigh := 6.0

	for name, q := range map[string]models.SearchQuery{
		"sort field": {SortBy: "password"},
		"order":      {Order: "random"},
		"status":     {Status: "abandoned"},
		"min rating": {MinRating: &tooHigh},
	} {
		_, err := f.lib.Search(f.ctx, reader, q)
		assert.True(t, errors.Is(err, models.ErrInvalidInput), name)
	}

	_, err := f.lib.Search(f.ctx, primitive.NilObjectID, models.SearchQuery{Status: models.StatusCompleted})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}
