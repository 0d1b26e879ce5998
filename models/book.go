package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Book struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UploadedBy    primitive.ObjectID `bson:"uploadedBy" json:"uploadedBy"`
	Title         string             `bson:"title" json:"title"`
	Author        string             `bson:"author,omitempty" json:"author,omitempty"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Genre         string             `bson:"genre,omitempty" json:"genre,omitempty"`
	Tags          []string           `bson:"tags" json:"tags"`
	ISBN          string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	IsPublic      bool               `bson:"isPublic" json:"isPublic"`
	S3Key         string             `bson:"s3Key" json:"-"` // object key of the PDF
	OriginalName  string             `bson:"originalName" json:"originalName"`
	CoverURL      string             `bson:"coverUrl,omitempty" json:"coverUrl,omitempty"`
	CoverS3Key    string             `bson:"coverS3Key,omitempty" json:"-"`
	Summary       string             `bson:"summary" json:"summary"`
	Views         int64              `bson:"views" json:"views"`
	ReadCount     int64              `bson:"readCount" json:"readCount"`
	RatingCount   int64              `bson:"ratingCount" json:"ratingCount"`
	AverageRating float64            `bson:"averageRating" json:"averageRating"`
	RatingVersion int64              `bson:"ratingVersion" json:"-"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ReadableBy reports whether u may open the book: public books are readable by anyone,
// private ones only by their uploader and admins.
func (b *Book) ReadableBy(u *User) bool {
	if b.IsPublic {
		return true
	}
	if u == nil {
		return false
	}
	return u.IsAdmin() || b.UploadedBy == u.ID
}

// EditableBy reports whether u may edit or delete the book.
func (b *Book) EditableBy(u *User) bool {
	return u != nil && (u.IsAdmin() || b.UploadedBy == u.ID)
}

// BookUpdate is a partial update; nil fields are left untouched.
type BookUpdate struct {
	Title       *string   `json:"title"`
	Author      *string   `json:"author"`
	Description *string   `json:"description"`
	Genre       *string   `json:"genre"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"isPublic"`
	CoverURL    *string   `json:"coverUrl"`
}

// Apply copies the set fields of up onto b.
func (up BookUpdate) Apply(b *Book) {
	if up.Title != nil {
		b.Title = *up.Title
	}
	if up.Author != nil {
		b.Author = *up.Author
	}
	if up.Description != nil {
		b.Description = *up.Description
	}
	if up.Genre != nil {
		b.Genre = *up.Genre
	}
	if up.Tags != nil {
		b.Tags = *up.Tags
	}
	if up.IsPublic != nil {
		b.IsPublic = *up.IsPublic
	}
	if up.CoverURL != nil {
		b.CoverURL = *up.CoverURL
	}
}

// CatalogStats is the admin dashboard summary.
type CatalogStats struct {
	TotalUsers    int64   `json:"totalUsers"`
	TotalBooks    int64   `json:"totalBooks"`
	PublicBooks   int64   `json:"publicBooks"`
	PrivateBooks  int64   `json:"privateBooks"`
	TotalReviews  int64   `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
}
