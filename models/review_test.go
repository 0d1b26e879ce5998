package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageRating(t *testing.T) {
	cases := []struct {
		name    string
		ratings []int
		avg     float64
		count   int64
	}{
		{"none", nil, 0, 0},
		{"five four three", []int{5, 4, 3}, 4.0, 3},
		{"rounds to one decimal", []int{5, 4, 4}, 4.3, 3},
		{"rounds half up", []int{4, 5, 5, 5}, 4.8, 4},
		{"single", []int{1}, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reviews := make([]Review, len(tc.ratings))
			for i, r := range tc.ratings {
				reviews[i].Rating = r
			}
			avg, count := AverageRating(reviews)
			assert.InDelta(t, tc.avg, avg, 1e-9)
			assert.Equal(t, tc.count, count)
		})
	}
}
