package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mail purposes recorded in the email log.
const (
	MailPurposePasswordReset = "password-reset"
)

// EmailLog records a transactional mail sent to a user.
type EmailLog struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID `bson:"userId" json:"userId"`
	ToEmail string             `bson:"toEmail" json:"toEmail"`
	Purpose string             `bson:"purpose" json:"purpose"`
	SentAt  time.Time          `bson:"sentAt" json:"sentAt"`
}
