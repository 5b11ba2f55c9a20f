package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-essam23/go-collab/internal/auth"
	"github.com/a-essam23/go-collab/internal/server"
	"github.com/a-essam23/go-collab/pkg/config"
	"github.com/a-essam23/go-collab/pkg/directory"
	"github.com/a-essam23/go-collab/pkg/logging"
	"github.com/joho/godotenv"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to read .env file", slog.Any("error", err))
	}

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("Unknown log level, keeping info", slog.String("level", cfg.Log.Level))
		level = logging.LevelInfo
	}
	logger = logging.New(level)
	slog.SetDefault(logger)

	// `go-collab token <userID>` mints a short-lived token for local testing.
	if len(os.Args) == 3 && os.Args[1] == "token" {
		tok, err := auth.Sign(cfg.Auth.JWTSecret, os.Args[2], 24*time.Hour)
		if err != nil {
			logger.Error("Failed to sign token", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, closeDir, err := openDirectory(ctx, logger, cfg.Directory)
	if err != nil {
		logger.Error("Failed to open directory", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDir()

	app := server.NewApp(logger, ctx, cfg, dir)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func openDirectory(ctx context.Context, logger *slog.Logger, cfg config.DirectoryConfig) (directory.Directory, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := directory.OpenPostgres(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				logger.Warn("Failed to close directory", slog.Any("error", err))
			}
		}, nil
	default:
		logger.Info("Using in-memory directory", slog.Int("users", len(cfg.Users)), slog.Int("spaces", len(cfg.Spaces)))
		return directory.NewMemory(cfg.Users, cfg.Spaces), func() {}, nil
	}
}
