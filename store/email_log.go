package store

import (
	"context"
	"fmt"
	"time"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InsertEmailLog records a sent mail. The id and sentAt are filled when left zero.
func (db *DB) InsertEmailLog(ctx context.Context, l *models.EmailLog) error {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	if l.SentAt.IsZero() {
		l.SentAt = time.Now().UTC()
	}
	if _, err := db.EmailLogs().InsertOne(ctx, l); err != nil {
		return fmt.Errorf("insert %s email log: %w", l.Purpose, err)
	}
	return nil
}
