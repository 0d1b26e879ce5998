package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPushHistoryBoundedUniqueNewestFirst(t *testing.T) {
	var history []HistoryEntry
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]primitive.ObjectID, 25)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
		history = PushHistory(history, HistoryEntry{BookID: ids[i], Progress: i, LastRead: base.Add(time.Duration(i) * time.Minute)})
	}

	require.Len(t, history, MaxHistory)
	assert.Equal(t, ids[24], history[0].BookID)
	assert.Equal(t, ids[5], history[MaxHistory-1].BookID)

	seen := map[primitive.ObjectID]bool{}
	for i, h := range history {
		assert.False(t, seen[h.BookID], "duplicate book at %d", i)
		seen[h.BookID] = true
		if i > 0 {
			assert.True(t, history[i-1].LastRead.After(h.LastRead))
		}
	}
}

func TestPushHistoryReplacesExistingEntry(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	history := PushHistory(nil, HistoryEntry{BookID: a, Progress: 10})
	history = PushHistory(history, HistoryEntry{BookID: b, Progress: 20})
	history = PushHistory(history, HistoryEntry{BookID: a, Progress: 50})

	require.Len(t, history, 2)
	assert.Equal(t, a, history[0].BookID)
	assert.Equal(t, 50, history[0].Progress)
	assert.Equal(t, b, history[1].BookID)
}

func TestPushHistoryDoesNotMutateInput(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	orig := []HistoryEntry{{BookID: a, Progress: 1}}
	_ = PushHistory(orig, HistoryEntry{BookID: b})
	assert.Equal(t, a, orig[0].BookID)
}

func TestAddToReadList(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	list := AddToReadList(nil, a)
	list = AddToReadList(list, b)
	list = AddToReadList(list, a)
	assert.Equal(t, []primitive.ObjectID{a, b}, list)
}

func TestAnalyzeHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, ReadingAnalytics{}, AnalyzeHistory(nil))
	})
	t.Run("breakdown", func(t *testing.T) {
		history := []HistoryEntry{
			{BookID: primitive.NewObjectID(), Progress: 95},
			{BookID: primitive.NewObjectID(), Progress: 40},
			{BookID: primitive.NewObjectID(), Progress: 0},
			{BookID: primitive.NewObjectID(), Progress: 90},
		}
		a := AnalyzeHistory(history)
		assert.Equal(t, 4, a.TotalBooks)
		assert.Equal(t, 56, a.AverageProgress) // 225/4 = 56.25
		assert.Equal(t, StatusBreakdown{Completed: 2, InProgress: 1, NotStarted: 1}, a.StatusBreakdown)
	})
}
