package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartbook/backend/config"
	"github.com/smartbook/backend/handlers"
	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/service"
	"github.com/smartbook/backend/store"
	"github.com/smartbook/backend/store/memstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	deps := handlers.Deps{
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.JWTTTL,
		MaxUploadBytes: cfg.MaxUploadMB * 1024 * 1024,
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.OTPRateLimit,
		Metadata:       service.NewMetadataClient(),
	}

	if cfg.UseMemoryStore() {
		logging.Warn().Msg("using in-memory store; data is lost on restart")
		deps.Store = memstore.New()
	} else {
		db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			logging.Fatal().Err(err).Msg("mongodb")
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				logging.Error().Err(err).Msg("mongodb disconnect")
			}
		}()
		if err := db.EnsureIndexes(ctx); err != nil {
			logging.Fatal().Err(err).Msg("mongodb indexes")
		}
		deps.Store = db
		deps.Ping = db.Ping
	}
	deps.Library = service.NewLibrary(deps.Store)

	if cfg.RedisAddr != "" {
		revocations, err := store.NewRevocations(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logging.Fatal().Err(err).Msg("redis")
		}
		defer revocations.Close()
		deps.Revocations = revocations
	} else {
		logging.Warn().Msg("REDIS_ADDR not set; logged-out tokens are tracked in memory")
		deps.Revocations = memstore.NewRevocations()
	}

	if cfg.S3Bucket != "" {
		s3Service, err := service.NewS3Service(ctx, service.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("s3")
		}
		deps.Storage = s3Service
	} else {
		logging.Warn().Msg("AWS_S3_BUCKET not set; uploads will fail")
	}

	if cfg.SMTPHost != "" {
		deps.Mailer = service.NewSMTPMailer(service.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logging.Warn().Msg("SMTP_HOST not set; password reset is disabled")
	}

	if cfg.GoogleClientID != "" {
		verifier, err := service.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			logging.Error().Err(err).Msg("google sign-in disabled")
		} else {
			deps.Identity = verifier
		}
	}

	if cfg.SummaryAPIURL != "" {
		deps.Summarizer = service.NewHTTPSummarizer(service.SummarizerConfig{
			URL:    cfg.SummaryAPIURL,
			APIKey: cfg.SummaryAPIKey,
			Model:  cfg.SummaryModel,
		})
	}

	if cfg.AdminEmail != "" {
		if err := handlers.EnsureAdmin(ctx, deps.Store, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logging.Fatal().Err(err).Msg("seed admin")
		}
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
	logging.Info().Msg("server stopped")
}
