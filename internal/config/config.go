package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Telegram
	BotToken string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Admin API
	JWTSecret     string
	AdminEmail    string
	AdminPassword string
	AdminPort     string

	// Application
	AppEnv   string
	LogLevel string

	// Game
	RegistrationSeconds int
	AnswerSeconds       int
	MinPlayers          int
	MaxPlayers          int
	BlitzQuestionCount  int
	DefaultThemeID      uint
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		BotToken:   getEnv("BOT_TOKEN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "quizbot"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "quizbot_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:     getEnv("JWT_SECRET_KEY", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@admin.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminPort:     getEnv("ADMIN_PORT", "8080"),

		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RegistrationSeconds: getEnvInt("GAME_REGISTRATION_SECONDS", 30),
		AnswerSeconds:       getEnvInt("GAME_ANSWER_SECONDS", 20),
		MinPlayers:          getEnvInt("GAME_MIN_PLAYERS", 2),
		MaxPlayers:          getEnvInt("GAME_MAX_PLAYERS", 6),
		BlitzQuestionCount:  getEnvInt("BLITZ_QUESTION_COUNT", 10),
		DefaultThemeID:      uint(getEnvInt("DEFAULT_THEME_ID", 1)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if c.MinPlayers < 1 {
		return fmt.Errorf("GAME_MIN_PLAYERS must be at least 1")
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("GAME_MAX_PLAYERS must be >= GAME_MIN_PLAYERS")
	}
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) RegistrationWindow() time.Duration {
	return time.Duration(c.RegistrationSeconds) * time.Second
}

func (c *Config) AnswerWindow() time.Duration {
	return time.Duration(c.AnswerSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
