package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lshigami/iqtester/config"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the client-local sqlite database that holds the session
// tokens and migrates its schema.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	path := cfg.Database.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Session database ready")
	return db, nil
}

// Open opens the sqlite file at path and runs migrations.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	if err := db.AutoMigrate(&model.StoredToken{}); err != nil {
		log.Error().Err(err).Msg("Session database migration failed")
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
