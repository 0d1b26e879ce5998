package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smartbook/backend/middleware"
	"github.com/smartbook/backend/service"
)

// Revocations stores logged-out token ids.
type Revocations interface {
	TokenRevoker
	middleware.RevocationChecker
}

// Deps are the collaborators the HTTP API is built from. Optional ones may be nil.
type Deps struct {
	Library     *service.Library
	Store       service.Store
	Revocations Revocations

	Storage    service.FileStorage
	Mailer     service.Mailer
	Identity   service.IdentityVerifier
	Metadata   MetadataFetcher
	Summarizer service.Summarizer

	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
	// AuthRateLimit caps login and password reset requests per IP per minute. Zero disables it.
	AuthRateLimit int
	// Ping reports store health for /health. May be nil.
	Ping func(ctx context.Context) error
}

// NewRouter wires every route of the API.
func NewRouter(d Deps) chi.Router {
	auth := &AuthHandler{
		Store:     d.Store,
		JWTSecret: d.JWTSecret,
		TokenTTL:  d.TokenTTL,
		Mailer:    d.Mailer,
		Identity:  d.Identity,
	}
	var checker middleware.RevocationChecker
	if d.Revocations != nil {
		auth.Revoker = d.Revocations
		checker = d.Revocations
	}
	books := &BooksHandler{Library: d.Library, Storage: d.Storage}
	upload := &UploadHandler{
		Library:    d.Library,
		Storage:    d.Storage,
		Metadata:   d.Metadata,
		Summarizer: d.Summarizer,
		MaxBytes:   d.MaxUploadBytes,
	}
	stats := &MetricsHandler{Library: d.Library}
	users := &UsersHandler{Library: d.Library, Store: d.Store, Storage: d.Storage}
	admin := &AdminHandler{Library: d.Library, Storage: d.Storage}

	requireAuth := middleware.Auth(d.JWTSecret, checker)
	optionalAuth := middleware.OptionalAuth(d.JWTSecret, checker)
	limited := func(r chi.Router) chi.Router {
		if d.AuthRateLimit <= 0 {
			return r
		}
		return r.With(httprate.LimitByIP(d.AuthRateLimit, time.Minute))
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", auth.Register)
			limited(r).Post("/login", auth.Login)
			r.Post("/google", auth.Google)
			limited(r).Post("/send-otp", auth.SendOTP)
			limited(r).Post("/reset-password", auth.ResetPassword)
			r.With(requireAuth).Post("/logout", auth.Logout)
		})

		r.Route("/books", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/public", books.Public)
				r.Get("/top", books.Top)
				r.Get("/search", books.Search)
				r.Get("/{id}/reviews", books.Reviews)
				r.Get("/{id}/cover", books.Cover)
			})
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/upload", upload.Upload)
				r.Get("/my", books.My)
				r.Get("/recent", books.Recent)
				r.Get("/recommendations", books.Recommendations)
				r.Post("/read/{id}", books.Read)
				r.Get("/{id}", books.Get)
				r.Put("/{id}", books.Edit)
				r.Delete("/{id}", books.Delete)
				r.Get("/{id}/download", books.Download)
				r.Post("/{id}/reviews", books.AddReview)
			})
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/popular", stats.Popular)
			r.Get("/leaderboard", stats.Leaderboard)
			r.With(requireAuth).Get("/analytics", stats.Analytics)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/user/profile", users.Profile)
			r.Put("/user/profile", users.UpdateProfile)
			r.Post("/user/change-password", users.ChangePassword)
			r.Get("/user/dashboard", users.Dashboard)
			r.Post("/upload/avatar", users.UploadAvatar)
		})
		r.Get("/users/{id}/avatar", users.Avatar)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireAdmin(d.Store))
			r.Get("/books", admin.Books)
			r.Get("/users", admin.Users)
			r.Get("/stats", admin.Stats)
			r.Put("/moderate/{id}", admin.Moderate)
			r.Put("/users/{id}", admin.SetRole)
			r.Delete("/users/{id}", admin.DeleteUser)
			r.Delete("/books/{id}", admin.DeleteBook)
		})
	})

	return r
}
