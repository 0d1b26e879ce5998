package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for user authorization.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ValidRoles = []string{RoleUser, RoleAdmin}

// DefaultAvatar is assigned to accounts registered without a picture.
const DefaultAvatar = "https://www.gravatar.com/avatar/?d=mp"

type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FullName       string               `bson:"fullName" json:"fullName"`
	Email          string               `bson:"email" json:"email"`
	Password       string               `bson:"password" json:"-"` // bcrypt hash
	Role           string               `bson:"role" json:"role"`
	Avatar         string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	AvatarS3Key    string               `bson:"avatarS3Key,omitempty" json:"-"`
	Latitude       *float64             `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude      *float64             `bson:"longitude,omitempty" json:"longitude,omitempty"`
	ReadList       []primitive.ObjectID `bson:"readList" json:"readList"`
	ReadingHistory []HistoryEntry       `bson:"readingHistory" json:"readingHistory"`
	UploadedBooks  []primitive.ObjectID `bson:"uploadedBooks" json:"uploadedBooks"`
	OTP            string               `bson:"otp,omitempty" json:"-"` // bcrypt hash of the pending reset code
	OTPExpires     *time.Time           `bson:"otpExpires,omitempty" json:"-"`
	HistoryVersion int64                `bson:"historyVersion" json:"-"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ProfileUpdate carries the optional fields a user may change on their own profile.
type ProfileUpdate struct {
	FullName  *string
	Avatar    *string
	Latitude  *float64
	Longitude *float64
}

// UserSummary is the public projection of a user attached to reviews and leaderboards.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	FullName string             `json:"fullName"`
	Avatar   string             `json:"avatar,omitempty"`
}
