package handlers

import (
	"net/http"
	"strconv"

	"github.com/smartbook/backend/service"
)

// MetricsHandler serves reading statistics (popularity, leaderboard, personal analytics).
type MetricsHandler struct {
	Library *service.Library
}

// Popular ranks public books by ?metric= (views, readCount, averageRating).
func (h *MetricsHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	books, err := h.Library.PopularBooks(r.Context(), r.URL.Query().Get("metric"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *MetricsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Library.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *MetricsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	analytics, err := h.Library.ReadingAnalytics(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}
