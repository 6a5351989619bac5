package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/saburov/quizbot/internal/admin"
	"github.com/saburov/quizbot/internal/config"
	"github.com/saburov/quizbot/internal/database"
	"github.com/saburov/quizbot/internal/game"
	"github.com/saburov/quizbot/internal/orchestrator"
	"github.com/saburov/quizbot/internal/repositories"
	"github.com/saburov/quizbot/internal/security"
	"github.com/saburov/quizbot/pkg/logger"
	"github.com/saburov/quizbot/telegram"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	logger.Info("Starting quiz bot...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	// Run GORM auto-migration
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed the starter question set
	if err := database.SeedCatalog(db); err != nil {
		logger.Warn("Failed to seed catalog", "error", err)
	}

	quizRepo := repositories.NewQuizRepository(db)
	gameRepo := repositories.NewGameRepository(db)
	adminRepo := repositories.NewAdminRepository(db)

	if err := adminRepo.EnsureAdmin(cfg.AdminEmail, security.HashPassword(cfg.AdminPassword)); err != nil {
		logger.Fatal("Failed to ensure admin account", err)
	}

	api, err := telegram.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram API", err)
	}
	notifier := telegram.NewNotifier(api)

	settings := game.Settings{
		RegistrationWindow: cfg.RegistrationWindow(),
		AnswerWindow:       cfg.AnswerWindow(),
		MinPlayers:         cfg.MinPlayers,
		MaxPlayers:         cfg.MaxPlayers,
		BlitzQuestionCount: cfg.BlitzQuestionCount,
	}
	orch := orchestrator.New(quizRepo, gameRepo, notifier, settings, cfg.DefaultThemeID)

	bot := telegram.NewBot(api, cfg, orch)

	// Recover interrupted games before accepting new events
	if err := orch.Bootstrap(); err != nil {
		logger.Fatal("Failed to restore active games", err)
	}

	bot.Start()
	logger.Info("Bot started successfully", "env", cfg.AppEnv)

	adminServer := admin.NewServer(cfg, quizRepo, gameRepo, adminRepo, orch)
	go func() {
		if err := adminServer.Run(); err != nil {
			logger.Error("Admin API stopped", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")

	bot.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(ctx); err != nil {
		logger.Error("Admin API shutdown failed", "error", err)
	}

	logger.Info("Bot stopped")
}
