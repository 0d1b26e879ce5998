package handlers

import (
	"net/http"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/service"
)

// AdminHandler serves the moderation and account management routes. Routes are mounted
// behind middleware.RequireAdmin.
type AdminHandler struct {
	Library *service.Library
	Storage service.FileStorage
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (h *AdminHandler) Books(w http.ResponseWriter, r *http.Request) {
	books, err := h.Library.AllBooks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.Library.Users(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Library.AdminStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Moderate hides a book from the public catalog.
func (h *AdminHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Library.Moderate(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Book flagged for moderation"})
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SetRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.Library.SetRole(r.Context(), id, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Message: "User role updated", User: u})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.Library.DeleteUser(r.Context(), adminID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if h.Storage != nil && u.AvatarS3Key != "" {
		if err := h.Storage.Delete(r.Context(), u.AvatarS3Key); err != nil {
			logging.Warn().Err(err).Str("key", u.AvatarS3Key).Msg("delete avatar")
		}
	}
	logging.Info().Str("user", id.Hex()).Str("admin", adminID.Hex()).Msg("user deleted")
	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted"})
}

func (h *AdminHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	book, err := h.Library.DeleteBook(r.Context(), adminID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	removeBookFiles(r, h.Storage, book)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Book deleted"})
}
