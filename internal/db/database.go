package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hoopsight/config"
	"hoopsight/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go SQLite Treiber
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open öffnet den Profilspeicher und führt die Migrationen aus.
// Das Verzeichnis der Datenbankdatei wird bei Bedarf angelegt.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("database file is not configured")
	}

	// Sicherstellen, dass das Verzeichnis für die Datenbankdatei existiert
	dbDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		log.Errorf("Failed to create database directory '%s': %v", dbDir, err)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Konfiguration des GORM-Loggers
	gormLogger := logger.New(
		log.StandardLogger(), // Verwende den konfigurierten logrus-Logger
		logger.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Opening profile store: %s", cfg.File)

	db, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Errorf("Failed to open profile store: %v", err)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	// SQLite verträgt nur einen Schreiber gleichzeitig
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Profile{}); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Profile store ready")
	return db, nil
}

// Close schließt die zugrunde liegende Verbindung
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
