package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const claimsKey contextKey = "claims"

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RevocationChecker reports whether a token id was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// UserFinder loads the current state of a user.
type UserFinder interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// IssueToken signs an HS256 token for u that expires after ttl.
func IssueToken(secret string, ttl time.Duration, u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID.Hex(),
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   u.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if _, err := primitive.ObjectIDFromHex(claims.UserID); err != nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// authenticate validates the bearer token on r. ok is false when a response was written.
func authenticate(w http.ResponseWriter, r *http.Request, secret string, revoked RevocationChecker) (*Claims, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		writeError(w, "invalid authorization format", http.StatusUnauthorized)
		return nil, false
	}
	claims, err := parseToken(secret, parts[1])
	if err != nil || claims == nil {
		writeError(w, "invalid or expired token", http.StatusUnauthorized)
		return nil, false
	}
	if revoked != nil && claims.ID != "" {
		isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			logging.Error().Err(err).Msg("token revocation check failed")
			writeError(w, "authorization temporarily unavailable", http.StatusServiceUnavailable)
			return nil, false
		}
		if isRevoked {
			writeError(w, "token has been revoked", http.StatusUnauthorized)
			return nil, false
		}
	}
	return claims, true
}

// Auth requires a valid, unrevoked bearer token. revoked may be nil.
func Auth(jwtSecret string, revoked RevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				writeError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims, ok := authenticate(w, r, jwtSecret, revoked)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches the caller's identity when a token is present and lets anonymous
// requests through.
func OptionalAuth(jwtSecret string, revoked RevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := authenticate(w, r, jwtSecret, revoked)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin checks the caller's stored role, so a demotion takes effect before the
// token expires. It must run after Auth.
func RequireAdmin(users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			u, err := users.UserByID(r.Context(), id)
			if err != nil {
				logging.Error().Err(err).Msg("admin check: load user")
				writeError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if !u.IsAdmin() {
				writeError(w, "admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

func UserIDFromContext(ctx context.Context) (primitive.ObjectID, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(c.UserID)
	return id, err == nil
}

func RoleFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Role
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Email
	}
	return ""
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
