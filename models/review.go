package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	BookID    primitive.ObjectID `bson:"bookId" json:"bookId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ReviewView is a review joined with its author for display.
type ReviewView struct {
	Review
	User UserSummary `json:"user"`
}

// AverageRating returns the mean rating rounded to one decimal and the review count.
func AverageRating(reviews []Review) (float64, int64) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return roundHalfUp(avg*10) / 10, int64(len(reviews))
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
