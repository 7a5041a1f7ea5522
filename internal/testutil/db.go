// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/waste3d/cardvault-api/internal/domain"
	"github.com/waste3d/cardvault-api/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the schema migrated.
// The pool is capped at one connection so transactions queue instead of
// failing with SQLITE_BUSY.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedCollectible inserts c with a fresh id and returns it.
func SeedCollectible(t testing.TB, db *gorm.DB, c domain.Collectible) domain.Collectible {
	t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Name == "" {
		c.Name = c.Code
	}
	if c.Rarity == "" {
		c.Rarity = domain.RarityCommon
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed collectible %s: %v", c.Code, err)
	}
	return c
}

func IntPtr(v int) *int {
	return &v
}
