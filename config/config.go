package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-in-production"

// MemoryURI selects the in-memory store instead of MongoDB.
const MemoryURI = "memory://"

type Config struct {
	Port        string
	Environment string

	MongoURI string
	DBName   string

	JWTSecret string
	JWTTTL    time.Duration

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	S3Endpoint    string
	MaxUploadMB   int64

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	GoogleClientID string

	SummaryAPIURL string
	SummaryAPIKey string
	SummaryModel  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string

	CORSOrigins []string

	AdminEmail    string
	AdminPassword string

	OTPRateLimit int // requests per IP per minute on OTP and login endpoints
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:         getEnv("MONGODB_DB", "smartbook"),
		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:         getDuration("JWT_TTL", 7*24*time.Hour, &errs),
		S3Bucket:       getEnv("AWS_S3_BUCKET", ""),
		S3Region:       getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:  getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:     getEnv("AWS_S3_ENDPOINT", ""),
		MaxUploadMB:    int64(getInt("MAX_UPLOAD_MB", 50, &errs)),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getInt("SMTP_PORT", 587, &errs),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", ""),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		SummaryAPIURL:  getEnv("SUMMARY_API_URL", ""),
		SummaryAPIKey:  getEnv("SUMMARY_API_KEY", ""),
		SummaryModel:   getEnv("SUMMARY_MODEL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getInt("REDIS_DB", 0, &errs),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		OTPRateLimit:   getInt("OTP_RATE_LIMIT", 5, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) UseMemoryStore() bool {
	return c.MongoURI == MemoryURI
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set to a strong secret in production"))
	}
	if c.IsProduction() && c.UseMemoryStore() {
		errs = append(errs, errors.New("MONGODB_URI=memory:// is for development only"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.OTPRateLimit <= 0 {
		errs = append(errs, errors.New("OTP_RATE_LIMIT must be positive"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if c.AdminPassword != "" && len(c.AdminPassword) < 6 {
		errs = append(errs, errors.New("ADMIN_PASSWORD must be at least 6 characters"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, v))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
