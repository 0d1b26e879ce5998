package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxHistory caps the embedded reading history kept on a user document.
const MaxHistory = 20

// HistoryEntry is one book in a user's recency-ordered reading history.
type HistoryEntry struct {
	BookID   primitive.ObjectID `bson:"book" json:"book"`
	Progress int                `bson:"progress" json:"progress"`
	LastRead time.Time          `bson:"timestamp" json:"lastRead"`
}

// PushHistory returns a new history with entry at the front. Any previous entry for the
// same book is dropped and the result is truncated to MaxHistory, oldest first.
// The input slice is not modified.
func PushHistory(history []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, min(len(history)+1, MaxHistory))
	out = append(out, entry)
	for _, h := range history {
		if len(out) == MaxHistory {
			break
		}
		if h.BookID == entry.BookID {
			continue
		}
		out = append(out, h)
	}
	return out
}

// AddToReadList appends id unless it is already present.
func AddToReadList(list []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	out := make([]primitive.ObjectID, len(list), len(list)+1)
	copy(out, list)
	return append(out, id)
}

// ReadingAnalytics summarizes a user's reading history.
type ReadingAnalytics struct {
	TotalBooks      int             `json:"totalBooks"`
	AverageProgress int             `json:"averageProgress"`
	StatusBreakdown StatusBreakdown `json:"statusBreakdown"`
}

type StatusBreakdown struct {
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
}

// AnalyzeHistory computes totals, the rounded mean progress and a status breakdown.
func AnalyzeHistory(history []HistoryEntry) ReadingAnalytics {
	var a ReadingAnalytics
	a.TotalBooks = len(history)
	if a.TotalBooks == 0 {
		return a
	}
	sum := 0
	for _, h := range history {
		sum += h.Progress
		switch StatusForProgress(h.Progress) {
		case StatusCompleted:
			a.StatusBreakdown.Completed++
		case StatusInProgress:
			a.StatusBreakdown.InProgress++
		default:
			a.StatusBreakdown.NotStarted++
		}
	}
	a.AverageProgress = int(roundHalfUp(float64(sum) / float64(a.TotalBooks)))
	return a
}
