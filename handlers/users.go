package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"golang.org/x/crypto/bcrypt"
)

const maxAvatarBytes = 5 << 20

type UsersHandler struct {
	Library *service.Library
	Store   service.UserStore
	Storage service.FileStorage // nil disables avatar upload
}

type UpdateProfileRequest struct {
	FullName  *string  `json:"fullName" validate:"omitempty,max=100"`
	Avatar    *string  `json:"avatar" validate:"omitempty,url"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type ProfileResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

type AvatarResponse struct {
	Avatar string `json:"avatar"`
}

func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	u, err := h.Library.User(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.Library.UpdateProfile(r.Context(), userID, models.ProfileUpdate{
		FullName:  req.FullName,
		Avatar:    req.Avatar,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Message: "Profile updated successfully", User: u})
}

func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.Library.User(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.CurrentPassword)) != nil {
		writeError(w, http.StatusBadRequest, "incorrect current password")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if err := h.Store.SetPassword(r.Context(), userID, string(hash)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *UsersHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	d, err := h.Library.Dashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func avatarPath(u *models.User) string {
	return "/api/users/" + u.ID.Hex() + "/avatar"
}

// UploadAvatar stores a jpg or png avatar and points the profile at the streaming route.
func (h *UsersHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "upload not configured (missing S3)")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+(1<<20))
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "avatar is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, err := readPart(r, "avatar")
	if err != nil || file == nil {
		writeError(w, http.StatusBadRequest, "missing avatar file")
		return
	}
	contentType := imageContentType(file)
	if contentType == "" {
		writeError(w, http.StatusBadRequest, "avatar must be a jpg or png image")
		return
	}
	u, err := h.Library.User(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	key, err := h.Storage.Upload(r.Context(), "avatars/", file.name, bytes.NewReader(file.data), contentType)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("%w: store avatar: %v", models.ErrUpstream, err))
		return
	}
	url := avatarPath(u)
	if err := h.Store.SetAvatar(r.Context(), userID, url, key); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if u.AvatarS3Key != "" {
		if err := h.Storage.Delete(r.Context(), u.AvatarS3Key); err != nil {
			logging.Warn().Err(err).Str("key", u.AvatarS3Key).Msg("delete old avatar")
		}
	}
	writeJSON(w, http.StatusOK, AvatarResponse{Avatar: url})
}

// Avatar streams a stored avatar, or redirects to an external one.
func (h *UsersHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.Library.User(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if u.AvatarS3Key == "" || h.Storage == nil {
		if u.Avatar != "" && !strings.HasPrefix(u.Avatar, "/api/") {
			http.Redirect(w, r, u.Avatar, http.StatusFound)
			return
		}
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}
	streamObject(w, r, h.Storage, u.AvatarS3Key)
}
