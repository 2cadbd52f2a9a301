package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const serviceKind = "migrate"

func main() {
	_ = godotenv.Load()

	inv := invocation{
		out: func(format string, args ...any) { fmt.Fprintf(os.Stdout, format, args...) },
	}
	name := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	flag.StringVar(&inv.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&inv.name, "name", "", "migration name (for create)")
	flag.StringVar(&inv.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&inv.force, "force", false, "allow destructive commands in production")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	inv.env = cfg.App.Env

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *name, "dir": inv.dir})

	if err := run(ctx, cfg, logg, *name, inv); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command finished")
}

// run resolves the command and opens the database only when it needs one.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, name string, inv invocation) error {
	cmd, err := lookupCommand(name, inv)
	if err != nil {
		return err
	}
	if !cmd.needsDB {
		return cmd.run(ctx, nil, inv)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return cmd.run(ctx, sqlDB, inv)
}
