package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reading statuses of a UserBook.
const (
	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// CompletedThreshold is the progress percentage at which a book counts as completed.
const CompletedThreshold = 90

// UserBook is the reading state of one user for one book. (UserID, BookID) is unique.
type UserBook struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	BookID     primitive.ObjectID `bson:"bookId" json:"bookId"`
	Status     string             `bson:"readingStatus" json:"readingStatus"`
	Progress   int                `bson:"progress" json:"progress"`
	LastReadAt time.Time          `bson:"lastReadAt" json:"lastReadAt"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func StatusForProgress(progress int) string {
	switch {
	case progress >= CompletedThreshold:
		return StatusCompleted
	case progress > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

func ValidStatus(s string) bool {
	return s == StatusNotStarted || s == StatusInProgress || s == StatusCompleted
}

// CompletedCount is one row of the completed-books aggregation.
type CompletedCount struct {
	UserID         primitive.ObjectID `bson:"_id"`
	CompletedBooks int                `bson:"completedBooks"`
}

// LeaderboardEntry is a ranked reader.
type LeaderboardEntry struct {
	UserID         primitive.ObjectID `json:"userId"`
	FullName       string             `json:"fullName"`
	Avatar         string             `json:"avatar,omitempty"`
	CompletedBooks int                `json:"completedBooks"`
}
