package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
)

const downloadURLTTL = 15 * time.Minute

type BooksHandler struct {
	Library *service.Library
	Storage service.FileStorage // nil disables download and stored covers
}

type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ReadRequest carries reading progress; an omitted progress counts as 0.
type ReadRequest struct {
	Progress *int `json:"progress" validate:"omitnil,min=0,max=100"`
}

func (req ReadRequest) progress() int {
	if req.Progress == nil {
		return 0
	}
	return *req.Progress
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *BooksHandler) Public(w http.ResponseWriter, r *http.Request) {
	books, err := h.Library.PublicBooks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Top(w http.ResponseWriter, r *http.Request) {
	books, err := h.Library.TopBooks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// Search filters the catalog by the query string. Anonymous callers see public books only.
func (h *BooksHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	books, err := h.Library.Search(r.Context(), optionalCallerID(r), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func parseSearchQuery(r *http.Request) (models.SearchQuery, error) {
	v := r.URL.Query()
	q := models.SearchQuery{
		Q:      strings.TrimSpace(v.Get("q")),
		Genre:  strings.TrimSpace(v.Get("genre")),
		Author: strings.TrimSpace(v.Get("author")),
		Tags:   splitList(v.Get("tags")),
		Status: strings.TrimSpace(v.Get("status")),
		SortBy: strings.TrimSpace(v.Get("sortBy")),
		Order:  strings.ToLower(strings.TrimSpace(v.Get("order"))),
	}
	if s := v.Get("isPublic"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, invalid("isPublic must be true or false")
		}
		q.IsPublic = &b
	}
	if s := v.Get("minRating"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return q, invalid("minRating must be a number")
		}
		q.MinRating = &f
	}
	return q, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *BooksHandler) My(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	books, err := h.Library.MyBooks(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	books, err := h.Library.RecentlyRead(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	books, err := h.Library.Recommendations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	book, err := h.Library.Book(r.Context(), optionalCallerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Download returns a short-lived presigned URL for the book's PDF.
func (h *BooksHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	book, err := h.Library.Book(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "download not configured")
		return
	}
	if book.S3Key == "" {
		writeError(w, http.StatusNotFound, "book has no file")
		return
	}
	url, err := h.Storage.PresignedGetURL(r.Context(), book.S3Key, downloadURLTTL, book.OriginalName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DownloadResponse{URL: url, ExpiresAt: time.Now().Add(downloadURLTTL)})
}

// Cover streams the stored cover image, or redirects to the external cover URL.
func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	book, err := h.Library.Book(r.Context(), optionalCallerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if book.CoverS3Key == "" || h.Storage == nil {
		if book.CoverURL != "" {
			http.Redirect(w, r, book.CoverURL, http.StatusFound)
			return
		}
		writeError(w, http.StatusNotFound, "cover not found")
		return
	}
	streamObject(w, r, h.Storage, book.CoverS3Key)
}

// streamObject copies a stored object to the response.
func streamObject(w http.ResponseWriter, r *http.Request, storage service.FileStorage, key string) {
	body, contentType, err := storage.GetObject(r.Context(), key)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("load object")
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, body); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("stream object")
	}
}

func (h *BooksHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var up models.BookUpdate
	if !decodeJSON(w, r, &up) {
		return
	}
	book, err := h.Library.EditBook(r.Context(), userID, id, up)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Delete removes the book and then its stored files.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	book, err := h.Library.DeleteBook(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	removeBookFiles(r, h.Storage, book)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Book deleted"})
}

// removeBookFiles is best effort: the record is already gone.
func removeBookFiles(r *http.Request, storage service.FileStorage, book *models.Book) {
	if storage == nil {
		return
	}
	for _, key := range []string{book.S3Key, book.CoverS3Key} {
		if key == "" {
			continue
		}
		if err := storage.Delete(r.Context(), key); err != nil {
			logging.Warn().Err(err).Str("key", key).Str("book", book.ID.Hex()).Msg("delete object")
		}
	}
}

// Read records a reading event at the given progress percentage.
func (h *BooksHandler) Read(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ReadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.Library.RecordReading(r.Context(), userID, id, req.progress()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Reading progress updated"})
}

func (h *BooksHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	review, err := h.Library.AddReview(r.Context(), userID, id, req.Rating, req.Comment)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *BooksHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reviews, err := h.Library.Reviews(r.Context(), optionalCallerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
