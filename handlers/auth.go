package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/metrics"
	"github.com/smartbook/backend/middleware"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const otpTTL = 10 * time.Minute

// TokenRevoker invalidates a token id until it would have expired.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
}

type AuthHandler struct {
	Store     service.Store
	JWTSecret string
	TokenTTL  time.Duration
	// Optional collaborators; the endpoints that need them answer 503 when nil.
	Mailer   service.Mailer
	Identity service.IdentityVerifier
	Revoker  TokenRevoker
}

type RegisterRequest struct {
	FullName  string   `json:"fullName" validate:"required,max=100"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=6"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type AuthResponse struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar,omitempty"`
	Token    string `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, err := middleware.IssueToken(h.JWTSecret, h.TokenTTL, u)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("sign token: %w", err))
		return
	}
	writeJSON(w, status, AuthResponse{
		ID:       u.ID.Hex(),
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
		Avatar:   u.Avatar,
		Token:    token,
	})
}

func newUser(fullName, email, passwordHash string) *models.User {
	return &models.User{
		FullName:       strings.TrimSpace(fullName),
		Email:          email,
		Password:       passwordHash,
		Role:           models.RoleUser,
		Avatar:         models.DefaultAvatar,
		ReadList:       []primitive.ObjectID{},
		ReadingHistory: []models.HistoryEntry{},
		UploadedBooks:  []primitive.ObjectID{},
		CreatedAt:      time.Now(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	u := newUser(req.FullName, normalizeEmail(req.Email), string(hash))
	u.Latitude, u.Longitude = req.Latitude, req.Longitude
	id, err := h.Store.CreateUser(r.Context(), u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	u.ID = id
	logging.Info().Str("user", id.Hex()).Msg("user registered")
	h.respondWithToken(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.Store.UserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	h.respondWithToken(w, r, http.StatusOK, u)
}

// Google signs in with a Google ID token, creating the account on first use.
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	if h.Identity == nil {
		writeError(w, http.StatusServiceUnavailable, "google sign-in not configured")
		return
	}
	var req GoogleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	identity, err := h.Identity.Verify(r.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid google token")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	if !identity.Verified {
		writeError(w, http.StatusUnauthorized, "google email is not verified")
		return
	}
	email := normalizeEmail(identity.Email)
	u, err := h.Store.UserByEmail(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if u == nil {
		if u, err = h.createGoogleUser(r.Context(), identity, email); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	h.respondWithToken(w, r, http.StatusOK, u)
}

// createGoogleUser gives the account a random password hash nobody knows.
func (h *AuthHandler) createGoogleUser(ctx context.Context, identity *service.GoogleIdentity, email string) (*models.User, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	name := identity.Name
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	u := newUser(name, email, string(hash))
	if identity.Picture != "" {
		u.Avatar = identity.Picture
	}
	id, err := h.Store.CreateUser(ctx, u)
	if errors.Is(err, models.ErrConflict) {
		// A concurrent sign-in created it first.
		existing, lookupErr := h.Store.UserByEmail(ctx, email)
		if lookupErr != nil || existing == nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// SendOTP mails a password reset code to a registered address.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	if h.Mailer == nil {
		writeError(w, http.StatusServiceUnavailable, "email not configured")
		return
	}
	var req SendOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.Store.UserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	code, err := generateOTP()
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("generate otp: %w", err))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("hash otp: %w", err))
		return
	}
	now := time.Now()
	if err := h.Store.SetOTP(r.Context(), u.ID, string(hash), now.Add(otpTTL)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	err = h.Mailer.SendOTP(r.Context(), u.Email, u.FullName, code, otpTTL)
	metrics.MailsSent.WithLabelValues(models.MailPurposePasswordReset, metrics.Outcome(err)).Inc()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	emailLog := &models.EmailLog{
		UserID:  u.ID,
		ToEmail: u.Email,
		Purpose: models.MailPurposePasswordReset,
		SentAt:  now,
	}
	if err := h.Store.InsertEmailLog(r.Context(), emailLog); err != nil {
		logging.Warn().Err(err).Str("user", u.ID.Hex()).Msg("send-otp: failed to insert email log")
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP sent successfully"})
}

// ResetPassword sets a new password if the code matches and has not expired. A code works once.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.Store.UserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	now := time.Now()
	if u == nil || u.OTP == "" || u.OTPExpires == nil || !u.OTPExpires.After(now) ||
		bcrypt.CompareHashAndPassword([]byte(u.OTP), []byte(req.OTP)) != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired OTP")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	applied, err := h.Store.ConsumeOTP(r.Context(), u.ID, u.OTP, string(hash), now)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !applied {
		writeError(w, http.StatusBadRequest, "invalid or expired OTP")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

// Logout revokes the presented token when a revocation store is configured.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.Revoker != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := h.Revoker.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			writeServiceError(w, r, fmt.Errorf("revoke token: %w", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}
