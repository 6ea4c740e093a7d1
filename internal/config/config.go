package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	AppEnv      string
	DatabaseURL string
	JWTSecret   string

	// StoreBackend is one of gorm, firebase or memory.
	StoreBackend string

	FirebaseCredentials   string
	FirebaseDatabaseURL   string
	FirebaseStorageBucket string
	FirebasePollInterval  time.Duration

	// RedisAddr enables cross-instance change notification for the gorm store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// UploadBackend is one of local, firebase or none.
	UploadBackend string
	UploadDir     string
	PublicBaseURL string

	CORSOrigins     string
	SuccessSoundURL string

	// WSWriteTimeout bounds one websocket write; a client slower than this is dropped.
	WSWriteTimeout time.Duration

	AdminUsername string
	AdminPassword string
}

func Load() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8080"),
		AppEnv:                getEnv("APP_ENV", "development"),
		DatabaseURL:           getEnv("DATABASE_URL", "achievements.db"),
		JWTSecret:             getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", "gorm")),
		FirebaseCredentials:   getEnv("FIREBASE_CREDENTIALS", ""),
		FirebaseDatabaseURL:   getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseStorageBucket: getEnv("FIREBASE_STORAGE_BUCKET", ""),
		FirebasePollInterval:  getDuration("FIREBASE_POLL_INTERVAL", 2*time.Second),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getInt("REDIS_DB", 0),
		UploadBackend:         strings.ToLower(getEnv("UPLOAD_BACKEND", "local")),
		UploadDir:             getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:         strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
		CORSOrigins:           getEnv("CORS_ORIGINS", "http://localhost:3000"),
		SuccessSoundURL:       getEnv("SUCCESS_SOUND_URL", "/sounds/success.mp3"),
		WSWriteTimeout:        getDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		AdminUsername:         getEnv("ADMIN_USERNAME", ""),
		AdminPassword:         getEnv("ADMIN_PASSWORD", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}
