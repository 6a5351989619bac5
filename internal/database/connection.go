package database

import (
	"fmt"
	"time"

	"github.com/saburov/quizbot/internal/config"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		// Driver unique-violation errors surface as gorm.ErrDuplicatedKey,
		// which the answer-fact write relies on to detect replays.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected successfully")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Theme{},
		&models.Question{},
		&models.Answer{},
		&models.Game{},
		&models.Player{},
		&models.PlayerAnswer{},
		&models.Admin{},
	)

	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// SeedCatalog creates a default theme with a few questions so a fresh
// install can play immediately. Quiz questions carry weighted answers that
// sum to 100; blitz-friendly questions work the same way with one answer.
func SeedCatalog(db *gorm.DB) error {
	var count int64
	db.Model(&models.Theme{}).Count(&count)
	if count > 0 {
		return nil
	}

	logger.Info("Seeding default theme and questions...")

	theme := models.Theme{
		Title:       "General knowledge",
		Description: "Default starter theme",
		Questions: []models.Question{
			{
				Title: "Name a domestic animal",
				Answers: []models.Answer{
					{Title: "Cat", Score: 43},
					{Title: "Dog", Score: 39},
					{Title: "Hamster", Score: 10},
					{Title: "Parrot", Score: 8},
				},
			},
			{
				Title: "Name something people forget at home",
				Answers: []models.Answer{
					{Title: "Phone", Score: 48},
					{Title: "Keys", Score: 32},
					{Title: "Wallet", Score: 12},
					{Title: "Umbrella", Score: 8},
				},
			},
			{
				Title: "What is the capital of France?",
				Answers: []models.Answer{
					{Title: "Paris", Score: 100},
				},
			},
			{
				Title: "Which planet is known as the red planet?",
				Answers: []models.Answer{
					{Title: "Mars", Score: 100},
				},
			},
		},
	}

	if err := db.Create(&theme).Error; err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	return nil
}
