package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/opsconsole/config"
)

var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger. The level starts at info and
// can be changed with SetLogLevel once configuration is loaded.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel adjusts the level of loggers created by InitLogger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// LoadConfig loads server configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	var cfg config.AppConfig
	if err := parseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Sanitize()
	return cfg, nil
}

// LoadConsoleConfig loads opsctl configuration from environment variables.
func LoadConsoleConfig() (config.ConsoleConfig, error) {
	var cfg config.ConsoleConfig
	if err := parseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Sanitize()
	return cfg, nil
}

func parseEnv(dst any) error {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}

	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
