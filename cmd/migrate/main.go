package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/utafrali/identity-service/internal/config"
	"github.com/utafrali/identity-service/migrations"
	"github.com/utafrali/identity-service/pkg/database"
	"github.com/utafrali/identity-service/pkg/logger"
)

const usage = `Usage: migrate <command>

Commands:
  up             apply all pending migrations
  up-to <ver>    apply migrations up to and including <ver>
  down           roll back the most recent migration
  status         print the status of every known migration
  version        print the current schema version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("identity-migrate", cfg.LogLevel)

	migrator, err := database.NewMigrator(cfg.PostgresDSN(), migrations.FS, log)
	if err != nil {
		log.Error("failed to open migrator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer migrator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, migrator, os.Args[1:], log); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, migrator *database.Migrator, args []string, log *slog.Logger) error {
	switch args[0] {
	case "up":
		return migrator.Up(ctx)
	case "up-to":
		if len(args) < 2 {
			return fmt.Errorf("up-to requires a version argument")
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse version %q: %w", args[1], err)
		}
		return migrator.UpTo(ctx, version)
	case "down":
		return migrator.Down(ctx)
	case "status":
		return migrator.Status(ctx)
	case "version":
		version, err := migrator.Version(ctx)
		if err != nil {
			return err
		}
		log.Info("current schema version", slog.Int64("version", version))
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
