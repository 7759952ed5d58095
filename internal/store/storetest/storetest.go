// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a gorm connection to an empty SQLite file in t.TempDir().
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// New returns a store over a fully migrated SQLite schema.
func New(t testing.TB) *store.Gorm {
	t.Helper()

	db := Open(t)
	if err := db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.AuthIdentity{},
		&models.UserSetting{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return store.New(db)
}

// NewLegacy returns a store whose users table predates the onboarding columns.
func NewLegacy(t testing.TB) *store.Gorm {
	t.Helper()

	db := Open(t)
	err := db.Exec(`CREATE TABLE users (
		id varchar(64) PRIMARY KEY,
		email text NOT NULL UNIQUE,
		name text NOT NULL DEFAULT '',
		password_hash text,
		role text NOT NULL DEFAULT 'user',
		subscription_status text NOT NULL DEFAULT 'free',
		stripe_customer_id text,
		monthly_feature_usage integer NOT NULL DEFAULT 0,
		usage_reset_date date,
		last_login_at datetime,
		created_at datetime,
		updated_at datetime
	)`).Error
	if err != nil {
		t.Fatalf("create legacy users: %v", err)
	}
	if err := db.AutoMigrate(&models.PasswordResetToken{}, &models.UserSetting{}, &models.AuthIdentity{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return store.New(db)
}
