package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/MarcoPoloResearchLab/stoa/internal/messages"
	"github.com/MarcoPoloResearchLab/stoa/internal/profiles"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// Schema setup happens exactly once, here at startup; request handlers never
// touch the schema.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&feed.Post{}, &feed.Media{}, &feed.Like{}, &feed.Comment{},
		&profiles.Profile{}, &profiles.Follow{},
		&messages.Message{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
