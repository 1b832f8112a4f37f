package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Address         string
	Password        string
	IssueLimitQueue string
	IssueDailyLimit int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type Config struct {
	Env          string
	Port         string
	FrontendURL  string
	CookieDomain string
	UploadDir    string
	Mongo        MongoConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cloudinary   CloudinaryConfig
	Admin        AdminConfig
}

// Load reads .env when present and builds the config from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:          getEnv("APP_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),
		CookieDomain: getEnv("COOKIE_DOMAIN", ""),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", ""),
			Database: getEnv("MONGODB_DATABASE", "civictrack"),
		},
		Redis: RedisConfig{
			Address:         getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			IssueLimitQueue: getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit"),
			IssueDailyLimit: getEnvInt("ISSUE_DAILY_LIMIT", 10),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvDuration("JWT_TTL", 72*time.Hour),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "Administrator"),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Mongo.URI == "" {
		return Config{}, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.JWT.Secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
