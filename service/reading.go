package service

import (
	"context"
	"fmt"

	"github.com/smartbook/backend/metrics"
	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordReading registers that userID read bookID up to progress percent. It updates the
// embedded history and read list, the per-book activity entry and the book counters.
func (l *Library) RecordReading(ctx context.Context, userID, bookID primitive.ObjectID, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress must be between 0 and 100", models.ErrInvalidInput)
	}
	u, err := l.user(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := l.readableBook(ctx, u, bookID); err != nil {
		return err
	}

	now := l.now()
	entry := models.HistoryEntry{BookID: bookID, Progress: progress, LastRead: now}
	if err := l.pushHistory(ctx, u, entry); err != nil {
		return err
	}
	if err := l.store.UpsertUserBook(ctx, userID, bookID, progress, models.StatusForProgress(progress), now); err != nil {
		return fmt.Errorf("upsert reading status: %w", err)
	}
	if err := l.store.IncrementReads(ctx, bookID); err != nil {
		return fmt.Errorf("increment book counters: %w", err)
	}
	metrics.ReadingEvents.Inc()
	return nil
}

// pushHistory retries the history write until it lands on the version it was computed from.
func (l *Library) pushHistory(ctx context.Context, u *models.User, entry models.HistoryEntry) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if attempt > 0 {
			metrics.CASRetries.WithLabelValues("history").Inc()
			fresh, err := l.user(ctx, u.ID)
			if err != nil {
				return err
			}
			u = fresh
		}
		history := models.PushHistory(u.ReadingHistory, entry)
		readList := models.AddToReadList(u.ReadList, entry.BookID)
		ok, err := l.store.SaveReadingHistory(ctx, u.ID, u.HistoryVersion, history, readList)
		if err != nil {
			return fmt.Errorf("save reading history: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("save reading history: too many concurrent updates for user %s", u.ID.Hex())
}

// RecentlyRead returns the books the user opened most recently.
func (l *Library) RecentlyRead(ctx context.Context, userID primitive.ObjectID) ([]models.Book, error) {
	entries, err := l.store.RecentUserBooks(ctx, userID, models.RecentlyReadLimit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	ids := make([]primitive.ObjectID, len(entries))
	for i, e := range entries {
		ids[i] = e.BookID
	}
	books, err := l.store.BooksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("recent books: %w", err)
	}
	return orderByIDs(books, ids), nil
}

// ReadingAnalytics summarizes the user's embedded reading history.
func (l *Library) ReadingAnalytics(ctx context.Context, userID primitive.ObjectID) (models.ReadingAnalytics, error) {
	u, err := l.user(ctx, userID)
	if err != nil {
		return models.ReadingAnalytics{}, err
	}
	return models.AnalyzeHistory(u.ReadingHistory), nil
}

// Dashboard is a user's read list and uploads, resolved to books.
type Dashboard struct {
	User          *models.User  `json:"user"`
	ReadList      []models.Book `json:"readList"`
	UploadedBooks []models.Book `json:"uploadedBooks"`
}

func (l *Library) Dashboard(ctx context.Context, userID primitive.ObjectID) (*Dashboard, error) {
	u, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	readList, err := l.store.BooksByIDs(ctx, u.ReadList)
	if err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	uploads, err := l.store.BooksByIDs(ctx, u.UploadedBooks)
	if err != nil {
		return nil, fmt.Errorf("uploaded books: %w", err)
	}
	return &Dashboard{
		User:          u,
		ReadList:      orderByIDs(readList, u.ReadList),
		UploadedBooks: orderByIDs(uploads, u.UploadedBooks),
	}, nil
}

// orderByIDs arranges books in the order of ids, skipping ids with no book.
func orderByIDs(books []models.Book, ids []primitive.ObjectID) []models.Book {
	byID := make(map[primitive.ObjectID]models.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	out := make([]models.Book, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}
	return out
}
