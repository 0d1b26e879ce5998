package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sortable book fields accepted by search.
var SearchSortFields = map[string]bool{
	"createdAt":     true,
	"title":         true,
	"views":         true,
	"readCount":     true,
	"averageRating": true,
}

// Metrics accepted by the popularity ranking.
var PopularityMetrics = map[string]bool{
	"views":         true,
	"readCount":     true,
	"averageRating": true,
}

const (
	DefaultSortField     = "createdAt"
	DefaultPopularMetric = "views"
	DefaultRankingLimit  = 10
	MaxRankingLimit      = 100
	RecommendationLimit  = 10
	RecentlyReadLimit    = 5
	LeaderboardLimit     = 10
	AnonymousName        = "User"
)

// BookSort orders a book listing. Ties are broken by newest first.
type BookSort struct {
	Field string
	Desc  bool
}

// BookFilter selects books. Zero-valued fields do not constrain the result.
type BookFilter struct {
	Text       string // case-insensitive substring of title, author or genre
	Genre      string
	Genres     []string
	Author     string // case-insensitive substring
	Tags       []string
	IsPublic   *bool
	MinRating  *float64
	UploadedBy *primitive.ObjectID
	// VisibleTo restricts to public books plus those uploaded by the given user.
	VisibleTo  *primitive.ObjectID
	IDs        []primitive.ObjectID
	ExcludeIDs []primitive.ObjectID
}

// SearchQuery is the caller-facing search request.
type SearchQuery struct {
	Q         string
	Genre     string
	Author    string
	Tags      []string
	IsPublic  *bool
	MinRating *float64
	Status    string
	SortBy    string
	Order     string
}

// Sort validates SortBy and Order and returns the resulting BookSort.
func (q SearchQuery) Sort() (BookSort, error) {
	field := q.SortBy
	if field == "" {
		field = DefaultSortField
	}
	if !SearchSortFields[field] {
		return BookSort{}, fmt.Errorf("%w: unsupported sortBy %q", ErrInvalidInput, q.SortBy)
	}
	switch q.Order {
	case "", "desc":
		return BookSort{Field: field, Desc: true}, nil
	case "asc":
		return BookSort{Field: field}, nil
	default:
		return BookSort{}, fmt.Errorf("%w: order must be asc or desc", ErrInvalidInput)
	}
}
