package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBookAccess(t *testing.T) {
	owner := &User{ID: primitive.NewObjectID(), Role: RoleUser}
	other := &User{ID: primitive.NewObjectID(), Role: RoleUser}
	admin := &User{ID: primitive.NewObjectID(), Role: RoleAdmin}
	private := &Book{UploadedBy: owner.ID}
	public := &Book{UploadedBy: owner.ID, IsPublic: true}

	assert.True(t, private.ReadableBy(owner))
	assert.True(t, private.ReadableBy(admin))
	assert.False(t, private.ReadableBy(other))
	assert.False(t, private.ReadableBy(nil))
	assert.True(t, public.ReadableBy(nil))

	assert.True(t, public.EditableBy(owner))
	assert.True(t, public.EditableBy(admin))
	assert.False(t, public.EditableBy(other))
	assert.False(t, public.EditableBy(nil))
}

func TestBookUpdateApply(t *testing.T) {
	b := &Book{Title: "Old", Author: "A", Tags: []string{"x"}}
	title := "New"
	public := true
	BookUpdate{Title: &title, IsPublic: &public}.Apply(b)
	assert.Equal(t, "New", b.Title)
	assert.Equal(t, "A", b.Author)
	assert.True(t, b.IsPublic)
	assert.Equal(t, []string{"x"}, b.Tags)
}

func TestSearchQuerySort(t *testing.T) {
	s, err := SearchQuery{}.Sort()
	require.NoError(t, err)
	assert.Equal(t, BookSort{Field: "createdAt", Desc: true}, s)

	s, err = SearchQuery{SortBy: "title", Order: "asc"}.Sort()
	require.NoError(t, err)
	assert.Equal(t, BookSort{Field: "title"}, s)

	_, err = SearchQuery{SortBy: "password"}.Sort()
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = SearchQuery{Order: "sideways"}.Sort()
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
