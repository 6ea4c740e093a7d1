package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arnold/achievements-api/internal/config"
	"github.com/arnold/achievements-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrAdminExists = errors.New("admin already exists")

func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	// Use PostgreSQL if URL starts with postgres, otherwise SQLite
	if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.DatabaseURL)
	}

	level := logger.Info
	if cfg.IsProduction() {
		level = logger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.AdminUser{})
}

// CreateAdmin stores a new admin with a bcrypt hash of password.
func CreateAdmin(db *gorm.DB, username, password string) (*models.AdminUser, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	var existing models.AdminUser
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAdminExists, username)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := models.AdminUser{Username: username, Password: string(hashed)}
	if err := db.Create(&admin).Error; err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return &admin, nil
}

// EnsureAdmin creates the configured admin on first start. It reports whether
// an account was created.
func EnsureAdmin(db *gorm.DB, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	if _, err := CreateAdmin(db, username, password); err != nil {
		if errors.Is(err, ErrAdminExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Authenticate returns the admin whose password matches.
func Authenticate(db *gorm.DB, username, password string) (*models.AdminUser, bool) {
	var admin models.AdminUser
	if err := db.Where("username = ?", username).First(&admin).Error; err != nil {
		return nil, false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		return nil, false
	}
	return &admin, true
}
