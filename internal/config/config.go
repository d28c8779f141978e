package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	PostgresURI         string
	MongoURI            string
	RedisURI            string
	Port                string
	Environment         string // ENV: production, development, etc.
	FrontendURL         string
	BackendHost         string   // optional Host header check in production
	AllowedOrigins      []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL
	JWTSecret           string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	OpenAIAPIKey        string
	OpenAIModel         string // main completion model
	OpenAITitleModel    string // cheap model for conversation titles
	OpenAITimeout       time.Duration
	InfobipBaseURL      string
	InfobipAPIKey       string
	InfobipSenderID     string
	InfobipFromEmail    string
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	AIWorkers           int // background task runner pool size
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		PostgresURI:         getEnv("POSTGRES_URI", "postgres://localhost:5432/rai?sslmode=disable"),
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/rai")),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:                getEnv("PORT", "8080"),
		Environment:         env,
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		BackendHost:         getEnv("BACKEND_HOST", ""),
		AllowedOrigins:      allowedOrigins,
		JWTSecret:           getEnv("JWT_SECRET", "change-me-in-production"),
		AccessTokenTTL:      getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:     getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITitleModel:    getEnv("OPENAI_TITLE_MODEL", "gpt-3.5-turbo"),
		OpenAITimeout:       getDuration("OPENAI_TIMEOUT", 45*time.Second),
		InfobipBaseURL:      strings.TrimRight(getEnv("INFOBIP_BASE_URL", ""), "/"),
		InfobipAPIKey:       getEnv("INFOBIP_API_KEY", ""),
		InfobipSenderID:     getEnv("INFOBIP_SENDER_ID", ""),
		InfobipFromEmail:    getEnv("INFOBIP_FROM_EMAIL", "no-reply@rai.app"),
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		AIWorkers:           getInt("AI_WORKERS", 4),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
