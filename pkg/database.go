package pkg

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/config"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
)

// InitDatabase opens the Postgres connection and migrates the schema.
// TranslateError is required so unique index conflicts surface as
// gorm.ErrDuplicatedKey.
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogLevel := logger.Warn
	if !cfg.IsProduction() {
		gormLogLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.Subject{},
		&models.Question{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.ExamResult{},
		&models.VideoWatchSession{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}
